package main

import (
	"os"

	"github.com/homegrid/battsitter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

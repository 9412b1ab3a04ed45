package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/homegrid/battsitter/app"
	"github.com/homegrid/battsitter/config"
	"github.com/homegrid/battsitter/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "battsitter",
	Short: "Keep the home battery from draining into the EV",
	Long: "battsitter watches a Zappi EV charger and, while it draws power, forces the\n" +
		"Sigenergy battery to charge from the grid so EV charging never depletes it.\n" +
		"Overrides initiated by the battery's own AI or timers are left alone.",
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

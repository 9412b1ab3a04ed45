package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/homegrid/battsitter/config"
	"github.com/homegrid/battsitter/infra/sigenergy"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Disable the instant manual charge now",
	Long: "Disables the battery's instant manual charge regardless of who enabled it.\n" +
		"Operator escape hatch for when a crashed process left an override behind.",
	RunE: runRelease,
}

func init() {
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sigen := sigenergy.NewClient(cfg.Sigenergy.APIURL, cfg.Sigenergy.Region,
		cfg.Sigenergy.Username, cfg.Sigenergy.Password,
		time.Duration(cfg.Sigenergy.TimeoutSeconds)*time.Second)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	if err := sigen.DisableManualCharge(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "manual charge disabled")
	return nil
}

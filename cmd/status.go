package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/homegrid/battsitter/config"
	"github.com/homegrid/battsitter/infra/myenergi"
	"github.com/homegrid/battsitter/infra/sigenergy"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Fetch both device statuses once and print them",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	zappi := myenergi.NewClient(cfg.Zappi.APIURL, cfg.Zappi.HubSerial, cfg.Zappi.APIKey,
		cfg.Zappi.Serial, time.Duration(cfg.Zappi.TimeoutSeconds)*time.Second)
	sigen := sigenergy.NewClient(cfg.Sigenergy.APIURL, cfg.Sigenergy.Region,
		cfg.Sigenergy.Username, cfg.Sigenergy.Password,
		time.Duration(cfg.Sigenergy.TimeoutSeconds)*time.Second)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	charger, err := zappi.FetchStatus(ctx)
	if err != nil {
		return err
	}
	battery, err := sigen.FetchStatus(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "charger: connected=%t state=%s drawing_power=%t\n",
		charger.CarConnected, charger.ChargingState, charger.DrawingPower())
	fmt.Fprintf(out, "battery: charging=%t soc=%.1f%% power=%.0fW mode=%s\n",
		battery.IsCharging, battery.StateOfCharge, battery.PowerW, battery.Mode)
	return nil
}

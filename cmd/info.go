package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skarlso/drone-pilot/internal/config"
	"github.com/Skarlso/drone-pilot/internal/device"
)

var infoWait time.Duration

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Connect to the drone and print its battery and flight state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runInfo(cmd.Context(), cfg, infoWait)
	},
}

func init() {
	infoCmd.Flags().DurationVar(&infoWait, "wait", 5*time.Second, "How long to wait for flight data after connecting")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(ctx context.Context, c *config.Config, wait time.Duration) error {
	tello := device.NewTello(device.TelloOptions{Port: c.Drone.Port, FastSpeed: c.Drone.FastSpeed, Logger: logger})
	session, err := device.Connect(ctx, tello, time.Duration(c.Drone.ConnectTimeout))
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if tm, ok := tello.Telemetry(); ok {
			fmt.Printf("battery: %d%%\nbattery low: %t\nheight: %d dm\nflying: %t\n",
				tm.BatteryPercentage, tm.BatteryLow, tm.Height, tm.Flying)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no flight data received within %s", wait)
		case <-ticker.C:
		}
	}
}

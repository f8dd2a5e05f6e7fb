package cmd

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skarlso/drone-pilot/internal/config"
	"github.com/Skarlso/drone-pilot/internal/control"
	"github.com/Skarlso/drone-pilot/internal/device"
	"github.com/Skarlso/drone-pilot/internal/dispatch"
	"github.com/Skarlso/drone-pilot/internal/input"
	"github.com/Skarlso/drone-pilot/internal/manual"
)

type controlOptions struct {
	controller string
	cadence    float64
	dryRun     bool
}

var controlOpts controlOptions

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Fly the drone with a gamepad or the keyboard",
	Long: `Fly the drone with a gamepad or the keyboard.

Keyboard: w/s forward and back, a/d left and right, arrow up/down climb and descend,
arrow left/right turn, h recentres the sticks, Enter takes off, Space lands, Esc stops,
1-4 flip, ] and [ change speed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		applyControlFlags(cmd, cfg, controlOpts)
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runControl(cmd.Context(), cfg, controlOpts.dryRun)
	},
}

func init() {
	bindControlFlags(controlCmd, &controlOpts)
	rootCmd.AddCommand(controlCmd)
}

func bindControlFlags(cmd *cobra.Command, o *controlOptions) {
	names := make([]string, 0, len(input.ControllerTypes))
	for _, t := range input.ControllerTypes {
		if t != input.None {
			names = append(names, string(t))
		}
	}
	cmd.Flags().StringVar(&o.controller, "controller", "keyboard", "Controller: "+strings.Join(names, ", "))
	cmd.Flags().Float64Var(&o.cadence, "cadence", 0.1, "Seconds between controller polls")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Log drone commands instead of flying")
}

// applyControlFlags copies explicitly set flags over the file configuration.
func applyControlFlags(cmd *cobra.Command, c *config.Config, o controlOptions) {
	if cmd.Flags().Changed("controller") {
		c.Control.Controller = o.controller
	}
	if cmd.Flags().Changed("cadence") {
		c.Control.Cadence = config.Duration(time.Duration(o.cadence * float64(time.Second)))
	}
}

func runControl(ctx context.Context, c *config.Config, dryRun bool) error {
	kind, err := input.ParseControllerType(c.Control.Controller)
	if err != nil {
		return err
	}
	if kind == input.None {
		return errors.New("manual control needs a controller")
	}
	if kind == input.Auto {
		kind = device.DetectController(logger)
	}
	controller, err := device.NewController(kind, c.Control.KeyStep, logger.With("component", "input"))
	if err != nil {
		return err
	}
	logger.Info("using controller", "controller", string(kind))

	var drone dispatch.Drone
	if dryRun {
		drone = dispatch.LogDrone{Logger: logger.With("component", "drone")}
		session, err := device.StartInputs(controller.Inputs)
		if err != nil {
			return err
		}
		defer session.Close()
	} else {
		tello := device.NewTello(device.TelloOptions{Port: c.Drone.Port, FastSpeed: c.Drone.FastSpeed, Logger: logger})
		session, err := device.Connect(ctx, tello, time.Duration(c.Drone.ConnectTimeout), controller.Inputs)
		if err != nil {
			return err
		}
		defer session.Close()
		tello.ReportTelemetry(ctx, 10*time.Second)
		drone = tello
	}

	dispatcher, err := dispatch.New(drone, logger.With("component", "dispatch"), dispatch.Options{
		InitialSpeed: c.Drone.InitialSpeed,
		SpeedStep:    c.Drone.SpeedStep,
	})
	if err != nil {
		return err
	}

	pilot := &manual.Pilot{
		Controller: controller.Controller,
		Sender:     dispatcher,
		Cadence:    time.Duration(c.Control.Cadence),
		Logger:     logger.With("component", "manual"),
	}
	err = pilot.Run(ctx)

	// Interrupted while flying: bring it down.
	if landErr := dispatcher.Send(control.Neutral(control.Land)); landErr != nil {
		logger.Error("landing on exit", "error", landErr)
	}
	return err
}

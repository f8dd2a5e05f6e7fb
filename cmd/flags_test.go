package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skarlso/drone-pilot/internal/config"
)

// fileConfig is what a config file with non-default values loads to.
func fileConfig() *config.Config {
	c := config.DefaultConfig()
	c.Video.Source = "webcam"
	c.Video.CameraID = 2
	c.Detector.Kind = "dnn"
	c.Display.Headless = true
	c.Display.StreamAddr = ":9000"
	c.Display.Record = "file.avi"
	c.Control.Controller = "dualshock4"
	c.Control.Cadence = config.Duration(250 * time.Millisecond)
	return c
}

func TestApplyFollowFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, c *config.Config)
	}{
		{
			name: "No flags keep the file values",
			args: nil,
			check: func(t *testing.T, c *config.Config) {
				if got, want := *c, *fileConfig(); got != want {
					t.Errorf("config = %+v, want %+v", got, want)
				}
			},
		},
		{
			name: "Set flags override the file",
			args: []string{"--source", "tello", "--camera", "1", "--detector", "haar", "--headless=false",
				"--stream-addr", ":8080", "--record", "flight.mp4", "--controller", "none"},
			check: func(t *testing.T, c *config.Config) {
				if c.Video.Source != "tello" || c.Video.CameraID != 1 {
					t.Errorf("video = %+v", c.Video)
				}
				if c.Detector.Kind != "haar" {
					t.Errorf("detector kind = %q", c.Detector.Kind)
				}
				if c.Display.Headless || c.Display.StreamAddr != ":8080" || c.Display.Record != "flight.mp4" {
					t.Errorf("display = %+v", c.Display)
				}
				if c.Control.Controller != "none" {
					t.Errorf("controller = %q", c.Control.Controller)
				}
			},
		},
		{
			name: "A flag set to its default still overrides",
			args: []string{"--camera", "0"},
			check: func(t *testing.T, c *config.Config) {
				if c.Video.CameraID != 0 {
					t.Errorf("camera = %d, want 0", c.Video.CameraID)
				}
				if c.Video.Source != "webcam" {
					t.Errorf("source = %q, want file value webcam", c.Video.Source)
				}
			},
		},
		{
			name: "Run-only flags leave the config alone",
			args: []string{"--dry-run", "--no-takeoff"},
			check: func(t *testing.T, c *config.Config) {
				if got, want := *c, *fileConfig(); got != want {
					t.Errorf("config = %+v, want %+v", got, want)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "follow"}
			var o followOptions
			bindFollowFlags(cmd, &o)
			if err := cmd.Flags().Parse(tt.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}
			c := fileConfig()
			applyFollowFlags(cmd, c, o)
			tt.check(t, c)
		})
	}
}

func TestApplyControlFlags(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		wantController string
		wantCadence    time.Duration
	}{
		{"No flags keep the file values", nil, "dualshock4", 250 * time.Millisecond},
		{"Controller flag", []string{"--controller", "xbox360"}, "xbox360", 250 * time.Millisecond},
		{"Cadence in seconds", []string{"--cadence", "0.5"}, "dualshock4", 500 * time.Millisecond},
		{"Dry run only", []string{"--dry-run"}, "dualshock4", 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "control"}
			var o controlOptions
			bindControlFlags(cmd, &o)
			if err := cmd.Flags().Parse(tt.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}
			c := fileConfig()
			applyControlFlags(cmd, c, o)
			if c.Control.Controller != tt.wantController {
				t.Errorf("controller = %q, want %q", c.Control.Controller, tt.wantController)
			}
			if got := time.Duration(c.Control.Cadence); got != tt.wantCadence {
				t.Errorf("cadence = %v, want %v", got, tt.wantCadence)
			}
		})
	}
}

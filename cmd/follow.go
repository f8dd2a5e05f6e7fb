package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hybridgroup/mjpeg"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Skarlso/drone-pilot/internal/config"
	"github.com/Skarlso/drone-pilot/internal/control"
	"github.com/Skarlso/drone-pilot/internal/device"
	"github.com/Skarlso/drone-pilot/internal/dispatch"
	"github.com/Skarlso/drone-pilot/internal/follow"
	"github.com/Skarlso/drone-pilot/internal/input"
	"github.com/Skarlso/drone-pilot/internal/tracking"
	"github.com/Skarlso/drone-pilot/internal/vision"
)

type followOptions struct {
	source     string
	camera     int
	detector   string
	headless   bool
	streamAddr string
	record     string
	dryRun     bool
	noTakeoff  bool
	controller string
}

var followOpts followOptions

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Take off and keep the closest face centred in the camera",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		applyFollowFlags(cmd, cfg, followOpts)
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runFollow(cmd.Context(), cfg, followOpts)
	},
}

func init() {
	bindFollowFlags(followCmd, &followOpts)
	rootCmd.AddCommand(followCmd)
}

func bindFollowFlags(cmd *cobra.Command, o *followOptions) {
	flags := cmd.Flags()
	flags.StringVar(&o.source, "source", "tello", "Frame source: tello or webcam")
	flags.IntVar(&o.camera, "camera", 0, "Webcam device id")
	flags.StringVar(&o.detector, "detector", "haar", "Face detector: haar or dnn")
	flags.BoolVar(&o.headless, "headless", false, "Do not open the overlay window")
	flags.StringVar(&o.streamAddr, "stream-addr", "", "Serve the overlay as MJPEG on this address, e.g. :8080")
	flags.StringVar(&o.record, "record", "", "Record the camera feed to this .avi, .mp4 or .mkv file")
	flags.BoolVar(&o.dryRun, "dry-run", false, "Log drone commands instead of flying")
	flags.BoolVar(&o.noTakeoff, "no-takeoff", false, "Do not take off automatically")
	flags.StringVar(&o.controller, "controller", "keyboard", "Companion device for discrete actions: keyboard, xbox360, xboxone, dualshock4, auto or none")
}

// applyFollowFlags copies explicitly set flags over the file configuration.
func applyFollowFlags(cmd *cobra.Command, c *config.Config, o followOptions) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		c.Video.Source = o.source
	}
	if flags.Changed("camera") {
		c.Video.CameraID = o.camera
	}
	if flags.Changed("detector") {
		c.Detector.Kind = o.detector
	}
	if flags.Changed("headless") {
		c.Display.Headless = o.headless
	}
	if flags.Changed("stream-addr") {
		c.Display.StreamAddr = o.streamAddr
	}
	if flags.Changed("record") {
		c.Display.Record = o.record
	}
	if flags.Changed("controller") {
		c.Control.Controller = o.controller
	}
}

func runFollow(ctx context.Context, c *config.Config, o followOptions) (err error) {
	if c.Video.Source == "tello" && o.dryRun {
		return errors.New("the tello video feed needs a drone connection; use --source webcam with --dry-run")
	}

	detector, err := newDetector(c.Detector)
	if err != nil {
		return err
	}
	defer detector.Close()

	companion, err := newCompanion(c)
	if err != nil {
		return err
	}

	var (
		drone   dispatch.Drone
		battery func() (int, bool)
		source  follow.FrameSource[vision.Frame]
		inputs  []device.Inputs
	)
	if companion != nil {
		inputs = append(inputs, companion.Inputs)
	}

	if o.dryRun {
		drone = dispatch.LogDrone{Logger: logger.With("component", "drone")}
		if len(inputs) > 0 {
			session, err := device.StartInputs(inputs...)
			if err != nil {
				return err
			}
			defer session.Close()
		}
	} else {
		tello := device.NewTello(device.TelloOptions{Port: c.Drone.Port, FastSpeed: c.Drone.FastSpeed, Logger: logger})
		var video *device.VideoSource
		if c.Video.Source == "tello" {
			video, err = device.NewVideoSource(c.Video.Width, c.Video.Height, logger)
			if err != nil {
				return err
			}
			if err := video.Attach(tello); err != nil {
				return err
			}
			defer video.Close()
			source = video
		}
		session, err := device.Connect(ctx, tello, time.Duration(c.Drone.ConnectTimeout), inputs...)
		if err != nil {
			return err
		}
		defer session.Close()
		if video != nil {
			keepAlive, err := tello.StartVideo()
			if err != nil {
				logger.Warn("starting video", "error", err)
			}
			defer keepAlive.Stop()
		}
		tello.ReportTelemetry(ctx, 10*time.Second)
		drone = tello
		battery = tello.Battery
	}

	if c.Video.Source == "webcam" {
		webcam, err := vision.OpenWebcam(c.Video.CameraID)
		if err != nil {
			return err
		}
		defer webcam.Close()
		source = webcam
	}

	dispatcher, err := dispatch.New(drone, logger.With("component", "dispatch"), dispatch.Options{
		InitialSpeed: c.Drone.InitialSpeed,
		SpeedStep:    c.Drone.SpeedStep,
	})
	if err != nil {
		return err
	}

	var stream *mjpeg.Stream
	if c.Display.StreamAddr != "" {
		stream = mjpeg.NewStream()
	}
	var recorder *vision.Recorder
	if c.Display.Record != "" {
		recorder, err = vision.NewRecorder(c.Display.Record, c.Display.RecordFPS)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := recorder.Close(); cerr != nil {
				err = multierror.Append(err, fmt.Errorf("close recording: %w", cerr))
			}
			logger.Info("recording saved", "path", c.Display.Record, "frames", recorder.Frames())
		}()
	}
	overlayOpts := vision.OverlayOptions{
		Stream:      stream,
		Recorder:    recorder,
		SnapshotDir: c.Display.SnapshotDir,
		Battery:     battery,
		Logger:      logger,
	}
	if !c.Display.Headless {
		overlayOpts.Window = c.Display.Window
	}
	if companion != nil && companion.Keys != nil {
		overlayOpts.Keys = companion.Keys
	}
	overlay := vision.NewOverlay(overlayOpts)
	defer overlay.Close()

	loop := &follow.Loop[vision.Frame]{
		Source:    source,
		Detector:  detector,
		Sender:    dispatcher,
		Presenter: overlay,
		Normalizer: control.Normalizer{
			MaxVelocity: c.Tracking.MaxVelocity,
			DeadZone:    c.Tracking.DeadZone,
			DepthScale:  c.Tracking.DepthScale,
		},
		Space:         tracking.Space{ZeroDepthBoxSize: c.Tracking.ZeroDepthBoxSize},
		TargetBoxSize: c.Tracking.TargetBoxSize,
		FrameTimeout:  time.Duration(c.Video.FrameTimeout),
		PollDelay:     time.Duration(c.Control.Cadence),
		Logger:        logger.With("component", "follow"),
	}
	if companion != nil {
		loop.Events = companion.Events
	}

	if !o.noTakeoff {
		if !countdown(ctx, time.Duration(c.Drone.StartDelay)) {
			return nil
		}
		if err := dispatcher.Send(control.Neutral(control.TakeOff)); err != nil {
			return fmt.Errorf("take off: %w", err)
		}
	}
	defer func() {
		logger.Info("landing")
		if landErr := dispatcher.Send(control.Neutral(control.Land)); landErr != nil {
			err = multierror.Append(err, fmt.Errorf("land: %w", landErr))
		}
	}()

	return runWithStream(ctx, c.Display.StreamAddr, stream, loop.Run)
}

// runWithStream runs fn on the calling goroutine, which OpenCV windows require on
// some platforms, and serves the MJPEG stream next to it until fn returns.
func runWithStream(ctx context.Context, addr string, stream *mjpeg.Stream, fn func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if stream != nil {
		mux := http.NewServeMux()
		mux.Handle("/", stream)
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("serving overlay stream", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("stream server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := fn(gctx)
	cancel()
	if werr := g.Wait(); werr != nil {
		err = multierror.Append(err, werr)
	}
	return err
}

// countdown logs the seconds left before take off. It returns false when ctx is
// cancelled first.
func countdown(ctx context.Context, d time.Duration) bool {
	for left := d; left > 0; left -= time.Second {
		logger.Info("taking off", "in", left)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(min(time.Second, left)):
		}
	}
	return ctx.Err() == nil
}

type closableDetector interface {
	follow.Detector[vision.Frame]
	Close() error
}

func newDetector(c config.DetectorConfig) (closableDetector, error) {
	switch c.Kind {
	case "dnn":
		return vision.NewNetDetector(c.Model, c.Proto, c.Backend, c.Target, c.Confidence)
	default:
		return vision.NewCascadeDetector(c.CascadeFile, c.Compression)
	}
}

// newCompanion builds the input device whose discrete actions ride along with the
// follow commands. It returns nil for "none".
func newCompanion(c *config.Config) (*device.Controller, error) {
	kind, err := input.ParseControllerType(c.Control.Controller)
	if err != nil {
		return nil, err
	}
	switch kind {
	case input.None:
		return nil, nil
	case input.Auto:
		kind = device.DetectController(logger)
	}
	return device.NewController(kind, c.Control.KeyStep, logger.With("component", "input"))
}

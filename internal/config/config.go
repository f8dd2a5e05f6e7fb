package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration is a time.Duration that reads and writes as a Go duration string ("200ms").
type Duration time.Duration

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts either a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or seconds: %w", err)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// TrackingConfig tunes the closest-face selector and the velocity normalizer.
type TrackingConfig struct {
	DeadZone    int     `json:"dead_zone"`
	MaxVelocity int     `json:"max_velocity"`
	DepthScale  float64 `json:"depth_scale"`
	// ZeroDepthBoxSize is the mean box side (px) that sits at proxy depth 0.
	ZeroDepthBoxSize int `json:"zero_depth_box_size"`
	// TargetBoxSize is the mean box side (px) the follower tries to hold.
	TargetBoxSize int `json:"target_box_size"`
}

// DetectorConfig selects and tunes the face detector.
type DetectorConfig struct {
	Kind        string  `json:"kind"` // haar or dnn
	CascadeFile string  `json:"cascade_file"`
	Model       string  `json:"model"`
	Proto       string  `json:"proto"`
	Confidence  float64 `json:"confidence"`
	Compression int     `json:"compression"`
	// Backend and Target pick the OpenCV dnn backend, e.g. "openvino" and "fp16".
	Backend string `json:"backend,omitempty"`
	Target  string `json:"target,omitempty"`
}

// VideoConfig describes the frame source.
type VideoConfig struct {
	Source       string   `json:"source"` // tello or webcam
	CameraID     int      `json:"camera_id"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	FrameTimeout Duration `json:"frame_timeout"`
}

// DroneConfig holds connection and speed settings for the Tello.
type DroneConfig struct {
	Port           string   `json:"port"`
	ConnectTimeout Duration `json:"connect_timeout"`
	StartDelay     Duration `json:"start_delay"`
	InitialSpeed   int      `json:"initial_speed"`
	SpeedStep      int      `json:"speed_step"`
	FastSpeed      int      `json:"fast_speed"`
}

// DisplayConfig controls the debug window, the MJPEG stream, snapshots and the flight
// recording. An empty Record disables recording.
type DisplayConfig struct {
	Headless    bool    `json:"headless"`
	Window      string  `json:"window"`
	StreamAddr  string  `json:"stream_addr"`
	SnapshotDir string  `json:"snapshot_dir"`
	Record      string  `json:"record,omitempty"`
	RecordFPS   float64 `json:"record_fps"`
}

// ControlConfig configures manual piloting.
type ControlConfig struct {
	Controller string   `json:"controller"`
	Cadence    Duration `json:"cadence"`
	KeyStep    int      `json:"key_step"`
}

// Config aggregates all configuration sections.
type Config struct {
	Tracking TrackingConfig `json:"tracking"`
	Detector DetectorConfig `json:"detector"`
	Video    VideoConfig    `json:"video"`
	Drone    DroneConfig    `json:"drone"`
	Display  DisplayConfig  `json:"display"`
	Control  ControlConfig  `json:"control"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			DeadZone:         10,
			MaxVelocity:      100,
			DepthScale:       10,
			ZeroDepthBoxSize: 400,
			TargetBoxSize:    200,
		},
		Detector: DetectorConfig{
			Kind:        "haar",
			CascadeFile: "haarcascade_frontalface_default.xml",
			Model:       "res10_300x300_ssd_iter_140000.caffemodel",
			Proto:       "deploy.prototxt",
			Confidence:  0.5,
			Compression: 4,
		},
		Video: VideoConfig{
			Source:       "tello",
			CameraID:     0,
			Width:        960,
			Height:       720,
			FrameTimeout: Duration(2 * time.Second),
		},
		Drone: DroneConfig{
			Port:           "8890",
			ConnectTimeout: Duration(10 * time.Second),
			StartDelay:     Duration(3 * time.Second),
			InitialSpeed:   10,
			SpeedStep:      10,
			FastSpeed:      50,
		},
		Display: DisplayConfig{
			Window:      "Tello",
			SnapshotDir: "snapshots",
			RecordFPS:   30,
		},
		Control: ControlConfig{
			Controller: "keyboard",
			Cadence:    Duration(100 * time.Millisecond),
			KeyStep:    10,
		},
	}
}

// Validate clamps/normalizes values to safe ranges. It only fails for values that
// cannot be repaired, such as an unknown detector kind.
func (c *Config) Validate() error {
	d := DefaultConfig()

	if c.Tracking.MaxVelocity <= 0 || c.Tracking.MaxVelocity > 100 {
		c.Tracking.MaxVelocity = d.Tracking.MaxVelocity
	}
	if c.Tracking.DeadZone < 0 {
		c.Tracking.DeadZone = d.Tracking.DeadZone
	}
	// A dead zone as wide as the velocity range would swallow every command.
	if c.Tracking.DeadZone >= c.Tracking.MaxVelocity {
		c.Tracking.DeadZone = min(d.Tracking.DeadZone, c.Tracking.MaxVelocity-1)
	}
	if c.Tracking.DepthScale <= 0 {
		c.Tracking.DepthScale = d.Tracking.DepthScale
	}
	if c.Tracking.ZeroDepthBoxSize <= 0 {
		c.Tracking.ZeroDepthBoxSize = d.Tracking.ZeroDepthBoxSize
	}
	if c.Tracking.TargetBoxSize <= 0 {
		c.Tracking.TargetBoxSize = d.Tracking.TargetBoxSize
	}

	switch c.Detector.Kind {
	case "haar", "dnn":
	case "":
		c.Detector.Kind = d.Detector.Kind
	default:
		return fmt.Errorf("unknown detector kind %q (want haar or dnn)", c.Detector.Kind)
	}
	if c.Detector.Confidence <= 0 || c.Detector.Confidence > 1 {
		c.Detector.Confidence = d.Detector.Confidence
	}
	if c.Detector.Compression < 1 {
		c.Detector.Compression = 1
	}

	switch c.Video.Source {
	case "tello", "webcam":
	case "":
		c.Video.Source = d.Video.Source
	default:
		return fmt.Errorf("unknown video source %q (want tello or webcam)", c.Video.Source)
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		c.Video.Width, c.Video.Height = d.Video.Width, d.Video.Height
	}
	if c.Video.FrameTimeout <= 0 {
		c.Video.FrameTimeout = d.Video.FrameTimeout
	}

	if c.Drone.Port == "" {
		c.Drone.Port = d.Drone.Port
	}
	if c.Drone.ConnectTimeout <= 0 {
		c.Drone.ConnectTimeout = d.Drone.ConnectTimeout
	}
	if c.Drone.StartDelay < 0 {
		c.Drone.StartDelay = 0
	}
	if c.Drone.InitialSpeed < 10 || c.Drone.InitialSpeed > 100 {
		c.Drone.InitialSpeed = d.Drone.InitialSpeed
	}
	if c.Drone.SpeedStep <= 0 {
		c.Drone.SpeedStep = d.Drone.SpeedStep
	}
	if c.Drone.FastSpeed < 10 || c.Drone.FastSpeed > 100 {
		c.Drone.FastSpeed = d.Drone.FastSpeed
	}

	if c.Display.Window == "" {
		c.Display.Window = d.Display.Window
	}
	if c.Display.SnapshotDir == "" {
		c.Display.SnapshotDir = d.Display.SnapshotDir
	}
	if c.Display.RecordFPS <= 0 {
		c.Display.RecordFPS = d.Display.RecordFPS
	}

	if c.Control.Controller == "" {
		c.Control.Controller = d.Control.Controller
	}
	if c.Control.Cadence <= 0 {
		c.Control.Cadence = d.Control.Cadence
	}
	if c.Control.KeyStep <= 0 || c.Control.KeyStep > 100 {
		c.Control.KeyStep = d.Control.KeyStep
	}
	return nil
}

// Load reads configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

package vision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// codecs maps a recording file extension to its FourCC.
var codecs = map[string]string{
	".avi": "MJPG",
	".mp4": "mp4v",
	".mkv": "X264",
}

func codecFor(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	codec, ok := codecs[ext]
	if !ok {
		return "", fmt.Errorf("unsupported recording format %q (want .avi, .mp4 or .mkv)", ext)
	}
	return codec, nil
}

// Recorder writes raw camera frames to a video file. The file is created on the
// first frame, once the frame size is known.
type Recorder struct {
	path   string
	codec  string
	fps    float64
	writer *gocv.VideoWriter
	width  int
	height int
	frames int
}

// NewRecorder checks the output format and creates the parent directory.
func NewRecorder(path string, fps float64) (*Recorder, error) {
	codec, err := codecFor(path)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create recording directory: %w", err)
		}
	}
	return &Recorder{path: path, codec: codec, fps: fps}, nil
}

// Write appends frame to the recording. Frames whose size differs from the first
// one are skipped; a video file has a single frame size.
func (r *Recorder) Write(frame Frame) error {
	w, h := frame.Size()
	if w == 0 || h == 0 {
		return nil
	}
	if r.writer == nil {
		writer, err := gocv.VideoWriterFile(r.path, r.codec, r.fps, w, h, true)
		if err != nil {
			return fmt.Errorf("open recording %s: %w", r.path, err)
		}
		r.writer, r.width, r.height = writer, w, h
	}
	if w != r.width || h != r.height {
		return nil
	}
	if err := r.writer.Write(frame.Mat); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	r.frames++
	return nil
}

// Frames returns how many frames were written.
func (r *Recorder) Frames() int {
	return r.frames
}

// Close finalises the file.
func (r *Recorder) Close() error {
	if r.writer == nil {
		return nil
	}
	return r.writer.Close()
}

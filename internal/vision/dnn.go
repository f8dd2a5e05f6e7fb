package vision

import (
	"fmt"
	"image"
	"math"

	"github.com/hashicorp/go-multierror"
	"gocv.io/x/gocv"

	"github.com/Skarlso/drone-pilot/internal/tracking"
)

// NetDetector runs the res10 SSD face model through the OpenCV dnn module.
type NetDetector struct {
	net        gocv.Net
	confidence float32
}

// NewNetDetector loads a Caffe model. backend and target accept the names gocv
// parses ("default", "openvino", "cpu", "fp16", ...); empty picks the defaults.
func NewNetDetector(model, proto, backend, target string, confidence float64) (*NetDetector, error) {
	net := gocv.ReadNet(model, proto)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("error reading network model from: %v %v", model, proto)
	}
	b := gocv.NetBackendDefault
	if backend != "" {
		b = gocv.ParseNetBackend(backend)
	}
	t := gocv.NetTargetCPU
	if target != "" {
		t = gocv.ParseNetTarget(target)
	}
	if err := preferBackend(&net, b, t); err != nil {
		net.Close()
		return nil, err
	}
	return &NetDetector{net: net, confidence: float32(confidence)}, nil
}

// Detect implements follow.Detector.
func (d *NetDetector) Detect(frame Frame) ([]tracking.BoundingBox, error) {
	if frame.Mat.Empty() {
		return nil, nil
	}
	w := float64(frame.Mat.Cols())
	h := float64(frame.Mat.Rows())

	blob := gocv.BlobFromImage(frame.Mat, 1.0, image.Pt(300, 300), gocv.NewScalar(104, 177, 123, 0), false, false)
	defer blob.Close()
	d.net.SetInput(blob, "data")

	detBlob := d.net.Forward("detection_out")
	defer detBlob.Close()
	detections := gocv.GetBlobChannel(detBlob, 0, 0)
	defer detections.Close()

	var boxes []tracking.BoundingBox
	for r := 0; r < detections.Rows(); r++ {
		if detections.GetFloatAt(r, 2) < d.confidence {
			continue
		}
		left := clampCoord(float64(detections.GetFloatAt(r, 3))*w, w)
		top := clampCoord(float64(detections.GetFloatAt(r, 4))*h, h)
		right := clampCoord(float64(detections.GetFloatAt(r, 5))*w, w)
		bottom := clampCoord(float64(detections.GetFloatAt(r, 6))*h, h)
		b := tracking.BoundingBox{Top: int(top), Right: int(right), Bottom: int(bottom), Left: int(left)}
		if b.Valid() {
			boxes = append(boxes, b)
		}
	}
	return boxes, nil
}

// Close releases the network.
func (d *NetDetector) Close() error {
	return d.net.Close()
}

// preferrer is the part of gocv.Net that selects where inference runs.
type preferrer interface {
	SetPreferableBackend(gocv.NetBackendType) error
	SetPreferableTarget(gocv.NetTargetType) error
}

func preferBackend(net preferrer, backend gocv.NetBackendType, target gocv.NetTargetType) error {
	var result error
	if err := net.SetPreferableBackend(backend); err != nil {
		result = multierror.Append(result, fmt.Errorf("set backend %v: %w", backend, err))
	}
	if err := net.SetPreferableTarget(target); err != nil {
		result = multierror.Append(result, fmt.Errorf("set target %v: %w", target, err))
	}
	return result
}

func clampCoord(v, limit float64) float64 {
	return math.Min(math.Max(0, v), limit-1)
}

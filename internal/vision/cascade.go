package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/Skarlso/drone-pilot/internal/tracking"
)

// CascadeDetector finds frontal faces with a Haar cascade. Detection runs on a copy
// shrunk by the compression factor; boxes are scaled back to source pixels.
type CascadeDetector struct {
	classifier  gocv.CascadeClassifier
	compression int
}

// NewCascadeDetector loads the cascade XML file.
func NewCascadeDetector(cascadeFile string, compression int) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadeFile) {
		classifier.Close()
		return nil, fmt.Errorf("error reading cascade file: %v", cascadeFile)
	}
	if compression < 1 {
		compression = 1
	}
	return &CascadeDetector{classifier: classifier, compression: compression}, nil
}

// Detect implements follow.Detector.
func (d *CascadeDetector) Detect(frame Frame) ([]tracking.BoundingBox, error) {
	if frame.Mat.Empty() {
		return nil, nil
	}
	small := gocv.NewMat()
	defer small.Close()
	scale := 1 / float64(d.compression)
	gocv.Resize(frame.Mat, &small, image.Point{}, scale, scale, gocv.InterpolationLinear)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(small, &gray, gocv.ColorBGRToGray)

	rects := d.classifier.DetectMultiScale(gray)
	boxes := make([]tracking.BoundingBox, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, boxFromRect(r).Scale(d.compression))
	}
	return boxes, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}

func boxFromRect(r image.Rectangle) tracking.BoundingBox {
	return tracking.BoundingBox{Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y, Left: r.Min.X}
}

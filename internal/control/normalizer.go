package control

import (
	"math"

	"github.com/golang/geo/r3"
)

// Normalizer converts a displacement (target minus frame centre) into RC velocities.
//
// The axis with the largest magnitude saturates at MaxVelocity and the others scale
// proportionally. Lateral velocity is never commanded: the drone turns towards the
// face instead of strafing.
type Normalizer struct {
	MaxVelocity int
	// DeadZone zeroes scaled velocities whose magnitude is <= DeadZone.
	DeadZone int
	// DepthScale divides dz before normalization so depth error is comparable to pixels.
	DepthScale float64
}

// DefaultNormalizer returns the normalizer with the stock tuning.
func DefaultNormalizer() Normalizer {
	return Normalizer{MaxVelocity: 100, DeadZone: 10, DepthScale: 10}
}

// Normalize maps d onto a ControlState. x drives yaw, y drives altitude (inverted
// because image y grows downward) and z drives forward speed.
func (n Normalizer) Normalize(d r3.Vector) (ControlState, error) {
	dz := d.Z
	if n.DepthScale != 0 {
		dz /= n.DepthScale
	}
	m := math.Max(math.Abs(d.X), math.Max(math.Abs(d.Y), math.Abs(dz)))

	yaw := n.axis(d.X, m)
	up := -n.axis(d.Y, m)
	forward := n.axis(dz, m)
	return NewControlState(0, forward, up, yaw)
}

func (n Normalizer) axis(v, m float64) int {
	if m == 0 {
		return 0
	}
	ratio := v / m
	if math.IsNaN(ratio) {
		return 0
	}
	ratio = math.Max(math.Min(ratio, 1), -1)
	scaled := int(ratio * float64(n.MaxVelocity))
	if abs(scaled) <= n.DeadZone {
		return 0
	}
	return scaled
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

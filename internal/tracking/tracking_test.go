package tracking

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
)

var space = Space{ZeroDepthBoxSize: 400}

func TestBoxCenter(t *testing.T) {
	b := BoundingBox{Top: 10, Right: 111, Bottom: 61, Left: 10}
	got := space.BoxCenter(b)
	// w=101, h=51 -> cx = 10+50, cy = 10+25, z = 400 - 76
	want := r3.Vector{X: 60, Y: 35, Z: 324}
	if got != want {
		t.Errorf("BoxCenter = %v, want %v", got, want)
	}
}

func TestBiggerBoxIsCloser(t *testing.T) {
	small := BoundingBox{Top: 0, Right: 50, Bottom: 50, Left: 0}
	big := BoundingBox{Top: 0, Right: 200, Bottom: 200, Left: 0}
	if space.BoxCenter(big).Z >= space.BoxCenter(small).Z {
		t.Error("expected bigger box to have smaller proxy depth")
	}
}

func TestSelectClosestEmpty(t *testing.T) {
	if _, ok := space.SelectClosest(nil, r3.Vector{}); ok {
		t.Fatal("expected ok == false for empty input")
	}
}

func TestSelectClosestSingleBox(t *testing.T) {
	box := BoundingBox{Top: 5, Right: 40, Bottom: 30, Left: 20}
	refs := []r3.Vector{{}, {X: 1000, Y: -1000, Z: 3}, {X: 480, Y: 360, Z: 200}}
	for _, ref := range refs {
		got, ok := space.SelectClosest([]BoundingBox{box}, ref)
		if !ok || got.Box != box {
			t.Errorf("ref %v: got %v (ok=%v), want %v", ref, got.Box, ok, box)
		}
	}
}

func TestSelectClosestIgnoresOrder(t *testing.T) {
	ref := space.Reference(960, 720, 200)
	near := BoundingBox{Top: 260, Right: 580, Bottom: 460, Left: 380} // centred, 200px
	far := BoundingBox{Top: 0, Right: 100, Bottom: 100, Left: 0}

	for _, boxes := range [][]BoundingBox{{near, far}, {far, near}} {
		got, ok := space.SelectClosest(boxes, ref)
		if !ok {
			t.Fatal("expected a target")
		}
		if got.Box != near {
			t.Errorf("order %v: picked %v, want %v", boxes, got.Box, near)
		}
	}
}

func TestSelectClosestTieGoesToFirst(t *testing.T) {
	ref := r3.Vector{X: 100, Y: 100, Z: 350}
	left := BoundingBox{Top: 75, Right: 75, Bottom: 125, Left: 25}   // centre (50,100)
	right := BoundingBox{Top: 75, Right: 175, Bottom: 125, Left: 125} // centre (150,100)

	got, _ := space.SelectClosest([]BoundingBox{left, right}, ref)
	if got.Box != left {
		t.Errorf("tie: got %v, want first box %v", got.Box, left)
	}
	got, _ = space.SelectClosest([]BoundingBox{right, left}, ref)
	if got.Box != right {
		t.Errorf("tie: got %v, want first box %v", got.Box, right)
	}
}

func TestSelectClosestIsMinimal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ref := space.Reference(960, 720, 200)
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(6)
		boxes := make([]BoundingBox, n)
		for j := range boxes {
			l, tp := rng.Intn(900), rng.Intn(650)
			boxes[j] = BoundingBox{Left: l, Top: tp, Right: l + rng.Intn(300), Bottom: tp + rng.Intn(300)}
		}
		got, ok := space.SelectClosest(boxes, ref)
		if !ok {
			t.Fatal("expected a target")
		}
		found := false
		for _, b := range boxes {
			if b == got.Box {
				found = true
			}
			if d := space.BoxCenter(b).Distance(ref); d < got.Distance {
				t.Fatalf("box %v at %.2f is closer than selected %v at %.2f", b, d, got.Box, got.Distance)
			}
		}
		if !found {
			t.Fatalf("selected box %v is not part of the input", got.Box)
		}
		if got.Displacement != got.Center.Sub(ref) {
			t.Fatalf("displacement %v does not match centre - ref", got.Displacement)
		}
	}
}

func TestScale(t *testing.T) {
	b := BoundingBox{Top: 1, Right: 4, Bottom: 3, Left: 2}.Scale(4)
	want := BoundingBox{Top: 4, Right: 16, Bottom: 12, Left: 8}
	if b != want {
		t.Errorf("Scale = %v, want %v", b, want)
	}
	if !b.Valid() {
		t.Error("scaled box should stay valid")
	}
}

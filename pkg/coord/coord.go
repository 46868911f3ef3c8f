// Package coord maps positions in the chart's logical play-field onto
// device pixels using four calibrated corners.
//
// The play-field is a quadrilateral on the physical screen which may be
// rotated or skewed. A logical point is located by bilinear interpolation:
// first along the bottom and top edges, then between those two points.
package coord

import (
	"errors"
	"math"

	"github.com/autotap/autotap/pkg/touch"
)

// ErrDegenerateCorners is returned when the corners do not describe a
// quadrilateral (repeated corners or three corners on one line).
var ErrDegenerateCorners = errors.New("coord: corners must be 4 distinct, non-collinear points")

// Logical is a position in play-field space. X runs from the left edge (0)
// to the right edge (1); Y from the bottom edge (0) to the top edge (1).
// Values outside [0,1] extrapolate past the edges.
type Logical struct {
	X float64
	Y float64
}

// Corners holds the calibrated device pixel corners of the play-field.
type Corners struct {
	BottomLeft  touch.Point
	TopLeft     touch.Point
	TopRight    touch.Point
	BottomRight touch.Point
}

// Converter is stateless after construction and safe for concurrent use.
type Converter struct {
	c Corners
}

// New validates the corners and returns a Converter.
func New(bottomLeft, topLeft, topRight, bottomRight touch.Point) (*Converter, error) {
	return FromCorners(Corners{
		BottomLeft:  bottomLeft,
		TopLeft:     topLeft,
		TopRight:    topRight,
		BottomRight: bottomRight,
	})
}

// FromCorners is New taking a Corners value.
func FromCorners(c Corners) (*Converter, error) {
	pts := []touch.Point{c.BottomLeft, c.TopLeft, c.TopRight, c.BottomRight}
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			if pts[i] == pts[j] {
				return nil, ErrDegenerateCorners
			}
		}
	}
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				if collinear(pts[i], pts[j], pts[k]) {
					return nil, ErrDegenerateCorners
				}
			}
		}
	}
	return &Converter{c: c}, nil
}

// Corners returns the corners the converter was built from.
func (cv *Converter) Corners() Corners {
	return cv.c
}

// Convert maps a logical position to the nearest device pixel.
func (cv *Converter) Convert(p Logical) touch.Point {
	bx, by := lerp(cv.c.BottomLeft, cv.c.BottomRight, p.X)
	tx, ty := lerp(cv.c.TopLeft, cv.c.TopRight, p.X)
	x := bx + (tx-bx)*p.Y
	y := by + (ty-by)*p.Y
	return touch.Point{X: int(math.Round(x)), Y: int(math.Round(y))}
}

// Center is the device pixel at the middle of the play-field.
func (cv *Converter) Center() touch.Point {
	return cv.Convert(Logical{X: 0.5, Y: 0.5})
}

// LanePoint returns the logical position of the centre of a ground lane,
// lanes numbered from 1 on the left.
func LanePoint(lane, lanes int) Logical {
	if lanes <= 0 {
		return Logical{}
	}
	return Logical{X: (float64(lane) - 0.5) / float64(lanes), Y: 0}
}

func lerp(a, b touch.Point, t float64) (float64, float64) {
	return float64(a.X) + float64(b.X-a.X)*t, float64(a.Y) + float64(b.Y-a.Y)*t
}

func collinear(a, b, c touch.Point) bool {
	cross := int64(b.X-a.X)*int64(c.Y-a.Y) - int64(b.Y-a.Y)*int64(c.X-a.X)
	return cross == 0
}

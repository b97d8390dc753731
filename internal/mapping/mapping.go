// Package mapping converts fingertip pixel positions into rotation angles and
// zoom values.
package mapping

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptyRange is returned when a range has identical endpoints on its input side.
var ErrEmptyRange = errors.New("range has zero width")

// Range maps the interval [In0, In1] onto [Out0, Out1].
type Range struct {
	In0  float64 `mapstructure:"in0" json:"in0"`
	In1  float64 `mapstructure:"in1" json:"in1"`
	Out0 float64 `mapstructure:"out0" json:"out0"`
	Out1 float64 `mapstructure:"out1" json:"out1"`
}

// Validate reports whether the input side of r can be divided by.
func (r Range) Validate() error {
	if r.In0 == r.In1 {
		return fmt.Errorf("%w: [%g, %g]", ErrEmptyRange, r.In0, r.In1)
	}
	return nil
}

// Affine maps v linearly without clamping, extrapolating outside the input range.
func (r Range) Affine(v float64) float64 {
	return Affine(v, r.In0, r.In1, r.Out0, r.Out1)
}

// Clamped maps v linearly and holds the end values outside the input range.
func (r Range) Clamped(v float64) float64 {
	return Interp(v, r.In0, r.In1, r.Out0, r.Out1)
}

// Affine evaluates the line through (in0, out0) and (in1, out1) at v.
func Affine(v, in0, in1, out0, out1 float64) float64 {
	return (v-in0)*(out1-out0)/(in1-in0) + out0
}

// Interp is two-point linear interpolation with the same edge behaviour as
// numpy.interp: values at or beyond the ends of the domain return the end values.
// The domain must be increasing (in0 < in1); the range may decrease.
func Interp(v, in0, in1, out0, out1 float64) float64 {
	switch {
	case math.IsNaN(v):
		return math.NaN()
	case v <= in0:
		return out0
	case v >= in1:
		return out1
	}
	return Affine(v, in0, in1, out0, out1)
}

// Calibration holds the pixel-space ranges used by the tracker.
type Calibration struct {
	// X maps index fingertip x pixels to the vertical-axis rotation in degrees.
	X Range `mapstructure:"x" json:"x"`
	// Y maps index fingertip y pixels to the horizontal-axis rotation in degrees.
	Y Range `mapstructure:"y" json:"y"`
	// Span maps the thumb-to-pinky pixel distance to a zoom scale.
	Span Range `mapstructure:"span" json:"span"`
}

// DefaultCalibration returns the ranges tuned for a 640x480 webcam.
func DefaultCalibration() Calibration {
	return Calibration{
		X:    Range{In0: 140, In1: 500, Out0: 0, Out1: 360},
		Y:    Range{In0: 50, In1: 390, Out0: 0, Out1: 360},
		Span: Range{In0: 0, In1: 200, Out0: 0, Out1: 10},
	}
}

// Validate checks every range.
func (c Calibration) Validate() error {
	if err := c.X.Validate(); err != nil {
		return fmt.Errorf("x: %w", err)
	}
	if err := c.Y.Validate(); err != nil {
		return fmt.Errorf("y: %w", err)
	}
	if err := c.Span.Validate(); err != nil {
		return fmt.Errorf("span: %w", err)
	}
	if c.Span.In0 > c.Span.In1 {
		return fmt.Errorf("span: domain must be increasing, got [%g, %g]", c.Span.In0, c.Span.In1)
	}
	return nil
}

// XToAngle converts an x pixel to degrees. There is no bounds check.
func (c Calibration) XToAngle(x float64) float64 {
	return c.X.Affine(x)
}

// YToAngle converts a y pixel to degrees. There is no bounds check.
func (c Calibration) YToAngle(y float64) float64 {
	return c.Y.Affine(y)
}

// DistanceToScale converts a pixel distance to a zoom scale, clamped to the span output.
func (c Calibration) DistanceToScale(length float64) float64 {
	return c.Span.Clamped(length)
}

// Zoom maps the received scale onto a camera distance. Larger scales bring the
// camera closer.
type Zoom struct {
	Range `mapstructure:",squash"`
}

// DefaultZoom maps scale [0, 10] to distance [10, 2].
func DefaultZoom() Zoom {
	return Zoom{Range{In0: 0, In1: 10, Out0: 10, Out1: 2}}
}

// Distance returns the camera distance for scale, clamped to the zoom output.
func (z Zoom) Distance(scale float64) float64 {
	return z.Clamped(scale)
}

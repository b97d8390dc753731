package mapping

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestCalibration_XToAngle(t *testing.T) {
	c := DefaultCalibration()

	tests := []struct {
		x    float64
		want float64
	}{
		{140, 0},
		{500, 360},
		{320, 180},
		{230, 90},
		{0, -140},  // extrapolates left
		{640, 500}, // extrapolates right
	}

	for _, tt := range tests {
		if got := c.XToAngle(tt.x); !approx(got, tt.want) {
			t.Errorf("XToAngle(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestCalibration_XToAngle_Affine(t *testing.T) {
	c := DefaultCalibration()

	// f(a) + f(b) == 2 f((a+b)/2) for any affine f
	pairs := [][2]float64{{140, 500}, {0, 640}, {201, 333}, {-50, 12}}
	for _, p := range pairs {
		lhs := c.XToAngle(p[0]) + c.XToAngle(p[1])
		rhs := 2 * c.XToAngle((p[0]+p[1])/2)
		if !approx(lhs, rhs) {
			t.Errorf("XToAngle not affine for %v: %v != %v", p, lhs, rhs)
		}
	}
}

func TestCalibration_YToAngle(t *testing.T) {
	c := DefaultCalibration()

	tests := []struct {
		y    float64
		want float64
	}{
		{50, 0},
		{390, 360},
		{220, 180},
		{480, 360 + 90*360.0/340.0},
	}

	for _, tt := range tests {
		if got := c.YToAngle(tt.y); !approx(got, tt.want) {
			t.Errorf("YToAngle(%v) = %v, want %v", tt.y, got, tt.want)
		}
	}
}

func TestCalibration_DistanceToScale(t *testing.T) {
	c := DefaultCalibration()

	tests := []struct {
		name   string
		length float64
		want   float64
	}{
		{"zero", 0, 0},
		{"full span", 200, 10},
		{"half span", 100, 5},
		{"below domain clamps", -20, 0},
		{"above domain clamps", 450, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.DistanceToScale(tt.length); !approx(got, tt.want) {
				t.Errorf("DistanceToScale(%v) = %v, want %v", tt.length, got, tt.want)
			}
		})
	}
}

func TestZoom_Distance(t *testing.T) {
	z := DefaultZoom()

	if got := z.Distance(0); !approx(got, 10) {
		t.Errorf("Distance(0) = %v, want 10", got)
	}
	if got := z.Distance(10); !approx(got, 2) {
		t.Errorf("Distance(10) = %v, want 2", got)
	}
	if got := z.Distance(5); !approx(got, 6) {
		t.Errorf("Distance(5) = %v, want 6", got)
	}
	if got := z.Distance(-1); !approx(got, 10) {
		t.Errorf("Distance(-1) = %v, want 10 (clamped)", got)
	}
	if got := z.Distance(12); !approx(got, 2) {
		t.Errorf("Distance(12) = %v, want 2 (clamped)", got)
	}
}

func TestZoom_Distance_MonotonicallyDecreasing(t *testing.T) {
	z := DefaultZoom()

	prev := z.Distance(0)
	for s := 0.25; s <= 10; s += 0.25 {
		d := z.Distance(s)
		if d >= prev {
			t.Fatalf("Distance(%v) = %v, not below Distance(%v) = %v", s, d, s-0.25, prev)
		}
		prev = d
	}
}

func TestInterp_NaN(t *testing.T) {
	if got := Interp(math.NaN(), 0, 1, 0, 1); !math.IsNaN(got) {
		t.Errorf("Interp(NaN) = %v, want NaN", got)
	}
}

func TestCalibration_Validate(t *testing.T) {
	t.Run("default is valid", func(t *testing.T) {
		if err := DefaultCalibration().Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	t.Run("zero width x", func(t *testing.T) {
		c := DefaultCalibration()
		c.X.In1 = c.X.In0
		if err := c.Validate(); !errors.Is(err, ErrEmptyRange) {
			t.Errorf("Validate() = %v, want ErrEmptyRange", err)
		}
	})

	t.Run("decreasing span", func(t *testing.T) {
		c := DefaultCalibration()
		c.Span.In0, c.Span.In1 = 200, 0
		if err := c.Validate(); err == nil {
			t.Error("Validate() should reject a decreasing span domain")
		}
	})
}

package render

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestToRL_Translation(t *testing.T) {
	m := toRL(mgl32.Translate3D(1, 2, 3))

	if m.M12 != 1 || m.M13 != 2 || m.M14 != 3 {
		t.Errorf("translation = (%v, %v, %v), want (1, 2, 3)", m.M12, m.M13, m.M14)
	}
	if m.M0 != 1 || m.M5 != 1 || m.M10 != 1 || m.M15 != 1 {
		t.Errorf("diagonal = (%v, %v, %v, %v), want ones", m.M0, m.M5, m.M10, m.M15)
	}
}

func TestToRL_Layout(t *testing.T) {
	var src mgl32.Mat4
	for i := range src {
		src[i] = float32(i)
	}
	m := toRL(src)

	got := [16]float32{
		m.M0, m.M1, m.M2, m.M3,
		m.M4, m.M5, m.M6, m.M7,
		m.M8, m.M9, m.M10, m.M11,
		m.M12, m.M13, m.M14, m.M15,
	}
	for i, v := range got {
		if v != float32(i) {
			t.Errorf("M%d = %v, want %v", i, v, i)
		}
	}
}

// Package scene holds the renderer's geometry, transforms and control state.
// It has no graphics dependencies so the transform math can be tested headless.
package scene

import "github.com/go-gl/mathgl/mgl32"

// Face is a quad given by four vertex indices, each with its own RGB color.
type Face struct {
	Indices [4]int
	Colors  [4]mgl32.Vec3
}

// Edge joins two vertex indices.
type Edge [2]int

// Solid is an immutable polyhedron.
type Solid struct {
	Vertices []mgl32.Vec3
	Faces    []Face
	Edges    []Edge
}

// TrapezoidalPrism returns the solid drawn by the renderer: a wide bottom
// trapezoid at z=-1 joined to a smaller top trapezoid at z=1.
func TrapezoidalPrism() Solid {
	return Solid{
		Vertices: []mgl32.Vec3{
			{1, -1, -1},     // 0 bottom back right
			{2, 1, -1},      // 1 bottom front right
			{-2, 1, -1},     // 2 bottom front left
			{-1, -1, -1},    // 3 bottom back left
			{0.5, -0.5, 1},  // 4 top back right
			{1, 0.5, 1},     // 5 top front right
			{-1, 0.5, 1},    // 6 top front left
			{-0.5, -0.5, 1}, // 7 top back left
		},
		Faces: []Face{
			{ // right, red
				Indices: [4]int{0, 1, 5, 4},
				Colors:  [4]mgl32.Vec3{{1, 0, 0}, {1, 0.5, 0}, {1, 0.5, 0.5}, {1, 0, 0.5}},
			},
			{ // left, green
				Indices: [4]int{2, 3, 7, 6},
				Colors:  [4]mgl32.Vec3{{0, 1, 0}, {0, 1, 0.5}, {0, 0.5, 1}, {0, 0.5, 0.5}},
			},
			{ // front, blue
				Indices: [4]int{1, 2, 6, 5},
				Colors:  [4]mgl32.Vec3{{0, 0, 1}, {0, 0.5, 1}, {0, 0.5, 0.5}, {0, 0, 0.5}},
			},
			{ // back, yellow
				Indices: [4]int{3, 0, 4, 7},
				Colors:  [4]mgl32.Vec3{{1, 1, 0}, {1, 1, 0.5}, {1, 0.5, 1}, {1, 0.5, 0.5}},
			},
			{ // top, magenta
				Indices: [4]int{4, 5, 6, 7},
				Colors:  [4]mgl32.Vec3{{1, 0, 1}, {1, 0.5, 1}, {0.5, 0, 1}, {0.5, 0.5, 1}},
			},
			{ // bottom, cyan
				Indices: [4]int{0, 1, 2, 3},
				Colors:  [4]mgl32.Vec3{{0, 1, 1}, {0.5, 1, 1}, {0.5, 1, 0.5}, {0, 1, 0.5}},
			},
		},
		Edges: []Edge{
			{0, 1}, {1, 2}, {2, 3}, {3, 0},
			{4, 5}, {5, 6}, {6, 7}, {7, 4},
			{0, 4}, {1, 5}, {2, 6}, {3, 7},
		},
	}
}

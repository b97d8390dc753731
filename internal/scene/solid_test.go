package scene

import "testing"

func TestTrapezoidalPrism_Topology(t *testing.T) {
	s := TrapezoidalPrism()

	if len(s.Vertices) != 8 {
		t.Fatalf("len(Vertices) = %d, want 8", len(s.Vertices))
	}
	if len(s.Faces) != 6 {
		t.Fatalf("len(Faces) = %d, want 6", len(s.Faces))
	}
	if len(s.Edges) != 12 {
		t.Fatalf("len(Edges) = %d, want 12", len(s.Edges))
	}

	for i, f := range s.Faces {
		for _, idx := range f.Indices {
			if idx < 0 || idx >= len(s.Vertices) {
				t.Errorf("face %d: index %d out of range", i, idx)
			}
		}
	}

	// Every vertex of a closed quad mesh with 8 vertices has degree 3.
	degree := make([]int, len(s.Vertices))
	seen := make(map[[2]int]bool)
	for _, e := range s.Edges {
		a, b := e[0], e[1]
		if a > b {
			a, b = b, a
		}
		if seen[[2]int{a, b}] {
			t.Errorf("duplicate edge %v", e)
		}
		seen[[2]int{a, b}] = true
		degree[e[0]]++
		degree[e[1]]++
	}
	for v, d := range degree {
		if d != 3 {
			t.Errorf("vertex %d degree = %d, want 3", v, d)
		}
	}
}

func TestTrapezoidalPrism_Layout(t *testing.T) {
	s := TrapezoidalPrism()

	for i := 0; i < 4; i++ {
		if s.Vertices[i].Z() != -1 {
			t.Errorf("vertex %d z = %v, want -1", i, s.Vertices[i].Z())
		}
		if s.Vertices[i+4].Z() != 1 {
			t.Errorf("vertex %d z = %v, want 1", i+4, s.Vertices[i+4].Z())
		}
	}

	if got := s.Vertices[1].X(); got != 2 {
		t.Errorf("vertex 1 x = %v, want 2", got)
	}
	if got := s.Faces[0].Colors[0]; got.X() != 1 || got.Y() != 0 || got.Z() != 0 {
		t.Errorf("first face first color = %v, want red", got)
	}
}

func TestTrapezoidalPrism_Independent(t *testing.T) {
	a := TrapezoidalPrism()
	a.Vertices[0][0] = 99

	b := TrapezoidalPrism()
	if b.Vertices[0].X() != 1 {
		t.Errorf("mutating one solid changed another: x = %v", b.Vertices[0].X())
	}
}

package layout

import "testing"

func TestDemo(t *testing.T) {
	y, err := InitDemo()
	if err != nil {
		t.Fatal(err)
	}
	// every governed segment of SW1 and SW2 is reachable from one of the two entries
	seen := map[string]bool{}
	var walk func(s Segment)
	walk = func(s Segment) {
		if seen[s.ID] {
			return
		}
		seen[s.ID] = true
		for _, next := range y.Outgoing(s) {
			walk(next)
		}
	}
	walk(y.MustLookup("track-1"))
	walk(y.MustLookup("track-0-horizontal"))
	for _, s := range y.Segments() {
		if !seen[s.ID] {
			t.Errorf("%s not reachable", s)
		}
	}
}

func TestDemoStraight(t *testing.T) {
	y, err := InitDemo()
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range y.Segments() {
		if s.Kind != KindStraight || s.ControlPoint != nil {
			t.Errorf("%s: expected a straight segment, got %s", s.ID, s.Kind)
		}
	}
	b := y.MustLookup("track-3-branch-1")
	if b.End.X <= b.Start.X || b.End.Y <= b.Start.Y {
		t.Fatalf("SW2 branch does not head south-east: %v → %v", b.Start, b.End)
	}
}

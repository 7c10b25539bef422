package tal

import (
	"testing"

	"nyiyui.ca/hato/senro/tal/layout"
)

func demoInterlock(t *testing.T, y *layout.Graph) *Interlock {
	t.Helper()
	il, err := NewInterlock(y, []Switch{
		{ID: "SW1", Position: layout.Point{X: 300, Y: 200}, Active: layout.RouteMain, MainSegment: "track-2-main", BranchSegment: "track-2-branch-1"},
		{ID: "SW2", Position: layout.Point{X: 600, Y: 200}, Active: layout.RouteBranch, MainSegment: "track-3-main", BranchSegment: "track-3-branch-1"},
	}, []Signal{
		{ID: "S1", Segment: "track-1", Position: layout.Point{X: 150, Y: 190}, Aspect: AspectGreen},
		{ID: "S2", Segment: "track-2-main", Position: layout.Point{X: 450, Y: 190}, Aspect: AspectRed},
		{ID: "S3", Segment: "track-3-main", Position: layout.Point{X: 750, Y: 190}, Aspect: AspectGreen},
	})
	if err != nil {
		t.Fatalf("NewInterlock: %s", err)
	}
	return il
}

func demoGraph(t *testing.T) *layout.Graph {
	t.Helper()
	y, err := layout.InitDemo()
	if err != nil {
		t.Fatalf("InitDemo: %s", err)
	}
	return y
}

// junction is A feeding C and D at (100, 0).
func junction(t *testing.T, c, d layout.Segment) *layout.Graph {
	t.Helper()
	y, err := layout.NewGraph([]layout.Segment{
		{ID: "A", Start: layout.Point{X: 0, Y: 0}, End: layout.Point{X: 100, Y: 0}, Kind: layout.KindStraight},
		c,
		d,
	})
	if err != nil {
		t.Fatalf("NewGraph: %s", err)
	}
	return y
}

func governed(id string, end layout.Point, sw string, r layout.Route) layout.Segment {
	return layout.Segment{
		ID:       id,
		Start:    layout.Point{X: 100, Y: 0},
		End:      end,
		Kind:     layout.KindStraight,
		SwitchID: sw,
		Route:    r,
	}
}

func movingAt(id, segment string, progress float64, y *layout.Graph) Train {
	return Train{
		ID:       id,
		Segment:  segment,
		Progress: progress,
		Position: layout.PointAt(y.MustLookup(segment), progress),
		Speed:    DefaultSpeed,
		State:    TrainStateMoving,
	}
}

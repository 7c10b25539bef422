package tal

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"nyiyui.ca/hato/senro/tal/layout"
)

func demoGuide(t *testing.T) *Guide {
	t.Helper()
	y := demoGraph(t)
	g, err := NewGuide(GuideConf{
		Layout:    y,
		Interlock: demoInterlock(t, y),
		Trains: []TrainConf{
			{ID: "T1", Segment: "track-1", Position: &layout.Point{X: 50, Y: 200}, FrameStep: 0.01},
			{ID: "T2", Segment: "track-0-horizontal", Position: &layout.Point{X: 60, Y: 280}, FrameStep: 0.01},
		},
	})
	if err != nil {
		t.Fatalf("NewGuide: %s", err)
	}
	return g
}

func TestGuideStartStop(t *testing.T) {
	g := demoGuide(t)
	ts, err := g.Start("T1")
	if err != nil {
		t.Fatal(err)
	}
	if !ts.IsMoving || !ts.Run.Running || ts.RunID == uuid.Nil {
		t.Fatalf("unexpected %+v", ts)
	}
	firstRun := ts.RunID
	for i := 0; i < 5; i++ {
		if ts, err = g.Tick("T1", frame); err != nil {
			t.Fatal(err)
		}
	}
	if !near(ts.Progress, 0.05, 1e-9) {
		t.Fatalf("expected 0.05, got %g", ts.Progress)
	}
	ts, _ = g.Stop("T1")
	if ts.IsMoving || ts.Run.Running || !near(ts.Progress, 0.05, 1e-9) {
		t.Fatalf("unexpected after stop: %+v", ts)
	}
	// ticks after stop don't move the train
	after, _ := g.Tick("T1", frame)
	if after.Progress != ts.Progress {
		t.Fatalf("moved after stop: %g → %g", ts.Progress, after.Progress)
	}
	ts, _ = g.Start("T1")
	if ts.RunID == firstRun {
		t.Fatal("run id reused")
	}
	// other trains are untouched
	t2, _ := g.Train("T2")
	if t2.IsMoving || t2.Progress != 0 {
		t.Fatalf("T2 changed: %+v", t2)
	}
}

func TestGuideReset(t *testing.T) {
	g := demoGuide(t)
	initial, _ := g.Train("T1")
	g.Start("T1")
	g.SetSpeedMultiplier("T1", 1.5)
	for i := 0; i < 150; i++ {
		g.Tick("T1", frame)
	}
	moved, _ := g.Train("T1")
	if moved.Segment == initial.Segment {
		t.Fatalf("expected T1 to leave %s", initial.Segment)
	}
	ts, err := g.Reset("T1")
	if err != nil {
		t.Fatal(err)
	}
	if ts.Position != initial.Position || ts.Segment != initial.Segment || ts.Progress != initial.Progress {
		t.Fatalf("reset diff: %s", cmp.Diff(initial, ts))
	}
	if ts.IsMoving || ts.Run.Running || ts.Run.SpeedMultiplier != DefaultSpeedMultiplier {
		t.Fatalf("unexpected run state after reset: %+v", ts.Run)
	}
}

func TestGuideEndOfLineEndsRun(t *testing.T) {
	y := demoGraph(t)
	g, err := NewGuide(GuideConf{
		Layout:    y,
		Interlock: demoInterlock(t, y),
		Trains:    []TrainConf{{ID: "T", Segment: "track-3-main", Progress: 0.9, FrameStep: 0.05}},
	})
	if err != nil {
		t.Fatal(err)
	}
	g.Start("T")
	var ts TrainSnapshot
	for i := 0; i < 3; i++ {
		ts, _ = g.Tick("T", frame)
	}
	if ts.State != TrainStateStopped || ts.Run.Running || ts.Progress != 1 {
		t.Fatalf("unexpected %+v", ts)
	}
}

func TestGuideSpeedMultiplier(t *testing.T) {
	g := demoGuide(t)
	for _, c := range []struct {
		in, expected float64
	}{
		{1.5, 1.5},
		{5, MaxSpeedMultiplier},
		{0.01, MinSpeedMultiplier},
	} {
		ts, err := g.SetSpeedMultiplier("T1", c.in)
		if err != nil {
			t.Fatal(err)
		}
		if ts.Run.SpeedMultiplier != c.expected {
			t.Fatalf("%g: expected %g, got %g", c.in, c.expected, ts.Run.SpeedMultiplier)
		}
	}
	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := g.SetSpeedMultiplier("T1", v); !errors.Is(err, ErrInvalidMultiplier) {
			t.Fatalf("%g: expected ErrInvalidMultiplier, got %v", v, err)
		}
	}
}

func TestGuideUnknown(t *testing.T) {
	g := demoGuide(t)
	for name, f := range map[string]func() error{
		"start": func() error { _, err := g.Start("T9"); return err },
		"stop":  func() error { _, err := g.Stop("T9"); return err },
		"reset": func() error { _, err := g.Reset("T9"); return err },
		"speed": func() error { _, err := g.SetSpeedMultiplier("T9", 1); return err },
		"tick":  func() error { _, err := g.Tick("T9", frame); return err },
		"train": func() error { _, err := g.Train("T9"); return err },
	} {
		if err := f(); !errors.Is(err, ErrUnknownTrain) {
			t.Errorf("%s: expected ErrUnknownTrain, got %v", name, err)
		}
	}
	if _, err := g.ToggleSwitch("SW9"); !errors.Is(err, ErrUnknownSwitch) {
		t.Errorf("expected ErrUnknownSwitch, got %v", err)
	}
	if _, err := g.ToggleSignal("S9"); !errors.Is(err, ErrUnknownSignal) {
		t.Errorf("expected ErrUnknownSignal, got %v", err)
	}
}

func TestGuideEvents(t *testing.T) {
	g := demoGuide(t)
	ch := make(chan Event, 8)
	g.EventMux.Subscribe("test", ch)
	defer g.EventMux.Unsubscribe(ch)
	if _, err := g.ToggleSwitch("SW1"); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-ch:
		if ev.Time().IsZero() {
			t.Fatal("event not stamped")
		}
		expected := EventSwitch{Stamp: Stamp{At: ev.Time()}, Switch: "SW1", Route: layout.RouteBranch}
		if ev != expected {
			t.Fatalf("expected %v, got %v", expected, ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestGuideEventOrder(t *testing.T) {
	const n = 200
	g := demoGuide(t)
	ch := make(chan Event, n)
	g.EventMux.Subscribe("test", ch)
	defer g.EventMux.Unsubscribe(ch)
	routes := make([]layout.Route, 0, n)
	for i := 0; i < n; i++ {
		r, err := g.ToggleSwitch("SW1")
		if err != nil {
			t.Fatal(err)
		}
		routes = append(routes, r)
	}
	var last time.Time
	for i := 0; i < n; i++ {
		select {
		case ev := <-ch:
			es, ok := ev.(EventSwitch)
			if !ok {
				t.Fatalf("%d: unexpected %T", i, ev)
			}
			if es.Route != routes[i] {
				t.Fatalf("%d: expected %s, got %s", i, routes[i], es.Route)
			}
			if es.At.Before(last) {
				t.Fatalf("%d: stamped %s before the previous event (%s)", i, es.At, last)
			}
			last = es.At
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d events arrived", i, n)
		}
	}
	gs, _ := g.SnapshotMux.Current()
	if gs.Switches[0].Active != routes[n-1] {
		t.Fatalf("current snapshot is stale: %s", gs.Switches[0].Active)
	}
}

func TestGuideSnapshot(t *testing.T) {
	g := demoGuide(t)
	first, ok := g.SnapshotMux.Current()
	if !ok {
		t.Fatal("no snapshot published on creation")
	}
	g.ToggleSignal("S2")
	second, _ := g.SnapshotMux.Current()
	if second.Seq <= first.Seq {
		t.Fatalf("seq did not increase: %d → %d", first.Seq, second.Seq)
	}
	gs := g.Snapshot()
	if len(gs.Segments) != 10 || len(gs.Switches) != 2 || len(gs.Signals) != 3 || len(gs.Trains) != 2 {
		t.Fatalf("unexpected snapshot sizes: %d %d %d %d", len(gs.Segments), len(gs.Switches), len(gs.Signals), len(gs.Trains))
	}
	if gs.Trains[0].ID != "T1" || gs.Trains[1].ID != "T2" {
		t.Fatal("trains out of order")
	}
	s2, _ := g.Interlock.Signal("S2")
	if s2.Aspect != AspectGreen {
		t.Fatalf("expected S2 green, got %s", s2.Aspect)
	}
	ts, ok := gs.Train("T2")
	if !ok || ts.Position != (layout.Point{X: 60, Y: 280}) {
		t.Fatalf("unexpected T2 %+v", ts)
	}

	b, err := json.Marshal(ts)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"position", "currentSegmentId", "isMoving", "isWaitingAtSignal", "state"} {
		if _, ok := m[key]; !ok {
			t.Errorf("%s missing from %s", key, b)
		}
	}
	if m["state"] != "stopped" {
		t.Errorf("expected state stopped, got %v", m["state"])
	}
}

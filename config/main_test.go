package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"nyiyui.ca/hato/senro/tal"
	"nyiyui.ca/hato/senro/tal/layout"
)

func TestDemo(t *testing.T) {
	c := Demo()
	if diff := cmp.Diff(layout.DemoSegments(), c.Segments); diff != "" {
		t.Fatalf("demo segments differ from layout.DemoSegments: %s", diff)
	}
	g, err := c.Build(false)
	if err != nil {
		t.Fatalf("Build: %s", err)
	}
	gs := g.Snapshot()
	if len(gs.Switches) != 2 || len(gs.Signals) != 3 || len(gs.Trains) != 2 {
		t.Fatalf("unexpected demo sizes: %d %d %d", len(gs.Switches), len(gs.Signals), len(gs.Trains))
	}
	s2, _ := g.Interlock.Signal("S2")
	if s2.Aspect != tal.AspectRed {
		t.Fatalf("expected S2 red, got %s", s2.Aspect)
	}
	if r, _ := g.Interlock.ActiveRoute("SW2"); r != layout.RouteBranch {
		t.Fatalf("expected SW2 branch, got %s", r)
	}
	t2, err := g.Train("T2")
	if err != nil {
		t.Fatal(err)
	}
	if t2.Position != (layout.Point{X: 60, Y: 280}) || t2.Segment != "track-0-horizontal" {
		t.Fatalf("unexpected T2 %+v", t2.Train)
	}
}

func TestLoadRejects(t *testing.T) {
	for name, c := range map[string]struct {
		json     string
		contains string
	}{
		"unknown field": {`{"segments": [], "colour": "red"}`, "unknown field"},
		"bad json":      {`{"segments": [`, "decode layout"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(c.json))
			if err == nil || !strings.Contains(err.Error(), c.contains) {
				t.Fatalf("expected error containing %q, got %v", c.contains, err)
			}
		})
	}
}

func TestBuildRejects(t *testing.T) {
	c := Demo()
	c.Trains = append(c.Trains, tal.TrainConf{ID: "T3", Segment: "track-9"})
	if _, err := c.Build(false); err == nil || !strings.Contains(err.Error(), "trains") {
		t.Fatalf("expected trains error, got %v", err)
	}
	c = Demo()
	c.Signals[0].Segment = "track-9"
	if _, err := c.Build(false); err == nil || !strings.Contains(err.Error(), "interlock") {
		t.Fatalf("expected interlock error, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	if err := os.WriteFile(path, demoJSON, 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(c, Demo()) {
		t.Fatalf("diff: %s", cmp.Diff(Demo(), c))
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SENRO_NATS_URL=nats://localhost:4222\nSENRO_FRAME_MS=20\nSENRO_ALLOWED_ORIGINS=http://localhost:5173, http://example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SENRO_LISTEN", ":8080")
	// godotenv never overrides variables that are set, even if empty
	for _, key := range []string{"SENRO_LAYOUT", "SENRO_NATS_URL", "SENRO_NATS_PREFIX", "SENRO_FRAME_MS", "SENRO_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	env, err := LoadEnv(path)
	if err != nil {
		t.Fatal(err)
	}
	expected := Env{
		Listen:         ":8080",
		NATSURL:        "nats://localhost:4222",
		NATSPrefix:     "senro",
		Frame:          20 * time.Millisecond,
		AllowedOrigins: []string{"http://localhost:5173", "http://example.com"},
	}
	if diff := cmp.Diff(expected, env); diff != "" {
		t.Fatalf("diff: %s", diff)
	}
	if _, err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored, got %s", err)
	}
}

package ui

import (
	"fmt"
	"math"

	"nyiyui.ca/hato/senro/tal"
)

func cycle(i, n int) int {
	if n == 0 {
		return 0
	}
	return (i + 1) % n
}

// roundStep rounds v to one decimal place, keeping it at or above the minimum multiplier.
func roundStep(v float64) float64 {
	return math.Max(tal.MinSpeedMultiplier, math.Round(v*10)/10)
}

func (s selection) clamp(gs tal.GuideSnapshot) selection {
	fix := func(i, n int) int {
		if i >= n {
			return 0
		}
		return i
	}
	return selection{
		train: fix(s.train, len(gs.Trains)),
		sw:    fix(s.sw, len(gs.Switches)),
		sig:   fix(s.sig, len(gs.Signals)),
	}
}

func marker(selected bool) string {
	if selected {
		return ">"
	}
	return " "
}

func trainRows(gs tal.GuideSnapshot, selected int) [][]string {
	rows := [][]string{{"", "train", "segment", "progress", "position", "state", "speed"}}
	for i, t := range gs.Trains {
		state := t.State.String()
		if t.IsWaitingAtSignal {
			state = fmt.Sprintf("waiting (%s)", t.WaitingFor)
		}
		if t.Run.Running {
			state += " ▶"
		}
		rows = append(rows, []string{
			marker(i == selected),
			t.ID,
			t.Segment,
			fmt.Sprintf("%3.0f%%", math.Floor(t.Progress*100)),
			fmt.Sprintf("%.0f,%.0f", t.Position.X, t.Position.Y),
			state,
			fmt.Sprintf("×%.1f", t.Run.SpeedMultiplier),
		})
	}
	return rows
}

func switchRows(gs tal.GuideSnapshot, selected int) [][]string {
	rows := [][]string{{"", "switch", "route", "main", "branch"}}
	for i, sw := range gs.Switches {
		rows = append(rows, []string{
			marker(i == selected),
			sw.ID,
			string(sw.Active),
			sw.MainSegment,
			sw.BranchSegment,
		})
	}
	return rows
}

func signalRows(gs tal.GuideSnapshot, selected int) [][]string {
	rows := [][]string{{"", "signal", "aspect", "segment"}}
	for i, sig := range gs.Signals {
		rows = append(rows, []string{
			marker(i == selected),
			sig.ID,
			string(sig.Aspect),
			sig.Segment,
		})
	}
	return rows
}

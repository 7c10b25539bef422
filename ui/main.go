// Package ui is a terminal dashboard for a running simulation.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"nyiyui.ca/hato/senro/notify"
	"nyiyui.ca/hato/senro/tal"
	"nyiyui.ca/hato/senro/tal/layout"
)

// renderInterval caps how often the screen is redrawn; snapshots arrive every frame for every train.
const renderInterval = 50 * time.Millisecond

const speedStep = 0.1

const helpText = "[t]rain [w]switch [g]signal: select  [s]tart  [x]stop  [r]eset  [+/-] speed  [W] toggle switch  [G] toggle signal  [q]uit"

// Controller is what the dashboard drives. *sim.Simulation implements it.
type Controller interface {
	Snapshot() tal.GuideSnapshot
	Snapshots() *notify.Multiplexer[tal.GuideSnapshot]
	ToggleSwitch(id string) (layout.Route, error)
	ToggleSignal(id string) (tal.Aspect, error)
	Start(id string) (tal.TrainSnapshot, error)
	Stop(id string) (tal.TrainSnapshot, error)
	Reset(id string) (tal.TrainSnapshot, error)
	SetSpeedMultiplier(id string, v float64) (tal.TrainSnapshot, error)
}

type selection struct {
	train, sw, sig int
}

type Dashboard struct {
	c        Controller
	sel      selection
	gs       tal.GuideSnapshot
	status   string
	trains   *widgets.Table
	switches *widgets.Table
	signals  *widgets.Table
	footer   *widgets.Paragraph
}

func NewDashboard(c Controller) *Dashboard {
	d := &Dashboard{
		c:        c,
		gs:       c.Snapshot(),
		trains:   widgets.NewTable(),
		switches: widgets.NewTable(),
		signals:  widgets.NewTable(),
		footer:   widgets.NewParagraph(),
	}
	d.trains.Title = "trains"
	d.switches.Title = "switches"
	d.signals.Title = "signals"
	d.footer.Title = "keys"
	for _, t := range []*widgets.Table{d.trains, d.switches, d.signals} {
		t.TextAlignment = termui.AlignLeft
		t.RowSeparator = false
	}
	d.update()
	return d
}

// Main runs the dashboard until q or Ctrl-C is pressed or ctx is done.
func Main(ctx context.Context, c Controller) error {
	err := termui.Init()
	if err != nil {
		return fmt.Errorf("termui init: %s", err)
	}
	defer termui.Close()

	d := NewDashboard(c)
	d.resize(termui.TerminalDimensions())
	termui.Render(d.drawables()...)

	snapshots := make(chan tal.GuideSnapshot, 1)
	c.Snapshots().Subscribe("ui", snapshots)
	defer c.Snapshots().Unsubscribe(snapshots)
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()
	events := termui.PollEvents()
	dirty := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			switch {
			case e.ID == "q" || e.ID == "<C-c>":
				return nil
			case e.ID == "<Resize>":
				payload := e.Payload.(termui.Resize)
				d.resize(payload.Width, payload.Height)
				termui.Clear()
			case e.Type == termui.KeyboardEvent:
				d.HandleKey(e.ID)
			}
			dirty = true
		case gs := <-snapshots:
			if gs.Seq > d.gs.Seq {
				d.gs = gs
				dirty = true
			}
		case <-ticker.C:
			if dirty {
				d.update()
				termui.Render(d.drawables()...)
				dirty = false
			}
		}
	}
}

func (d *Dashboard) drawables() []termui.Drawable {
	return []termui.Drawable{d.trains, d.switches, d.signals, d.footer}
}

func (d *Dashboard) resize(w, h int) {
	trainsH := len(d.gs.Trains) + 3
	d.trains.SetRect(0, 0, w, trainsH)
	interlockH := max(len(d.gs.Switches), len(d.gs.Signals)) + 3
	d.switches.SetRect(0, trainsH, w/2, trainsH+interlockH)
	d.signals.SetRect(w/2, trainsH, w, trainsH+interlockH)
	d.footer.SetRect(0, trainsH+interlockH, w, min(h, trainsH+interlockH+4))
}

// update refreshes the widgets from the latest snapshot.
func (d *Dashboard) update() {
	d.sel = d.sel.clamp(d.gs)
	d.trains.Rows = trainRows(d.gs, d.sel.train)
	d.switches.Rows = switchRows(d.gs, d.sel.sw)
	d.signals.Rows = signalRows(d.gs, d.sel.sig)
	d.footer.Text = helpText
	if d.status != "" {
		d.footer.Text += "\n" + d.status
	}
}

// HandleKey applies one key press and returns the resulting status line.
func (d *Dashboard) HandleKey(key string) string {
	d.status = d.apply(key)
	d.gs = d.c.Snapshot()
	d.update()
	return d.status
}

func (d *Dashboard) apply(key string) string {
	gs := d.gs
	switch key {
	case "t":
		d.sel.train = cycle(d.sel.train, len(gs.Trains))
		return ""
	case "w":
		d.sel.sw = cycle(d.sel.sw, len(gs.Switches))
		return ""
	case "g":
		d.sel.sig = cycle(d.sel.sig, len(gs.Signals))
		return ""
	case "W":
		if len(gs.Switches) == 0 {
			return "no switches"
		}
		id := gs.Switches[d.sel.sw].ID
		r, err := d.c.ToggleSwitch(id)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%s → %s", id, r)
	case "G":
		if len(gs.Signals) == 0 {
			return "no signals"
		}
		id := gs.Signals[d.sel.sig].ID
		a, err := d.c.ToggleSignal(id)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%s → %s", id, a)
	}
	if len(gs.Trains) == 0 {
		return "no trains"
	}
	t := gs.Trains[d.sel.train]
	var (
		ts  tal.TrainSnapshot
		err error
	)
	switch key {
	case "s":
		ts, err = d.c.Start(t.ID)
	case "x":
		ts, err = d.c.Stop(t.ID)
	case "r":
		ts, err = d.c.Reset(t.ID)
	case "+", "=":
		ts, err = d.c.SetSpeedMultiplier(t.ID, roundStep(t.Run.SpeedMultiplier+speedStep))
	case "-":
		ts, err = d.c.SetSpeedMultiplier(t.ID, roundStep(t.Run.SpeedMultiplier-speedStep))
	default:
		return ""
	}
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%s %s ×%.1f", ts.ID, ts.State, ts.Run.SpeedMultiplier)
}

package tal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"nyiyui.ca/hato/senro/tal/layout"
)

// Event is something that happened on the layout.
// Kind is a short dot-free name used for event streams and message subjects.
type Event interface {
	fmt.Stringer
	Kind() string
	// Time is when the event was published; zero before that.
	Time() time.Time
	stamped(at time.Time) Event
}

// Stamp is embedded in every event.
type Stamp struct {
	At time.Time `json:"at"`
}

func (s Stamp) Time() time.Time { return s.At }

type EventSwitch struct {
	Stamp
	Switch string       `json:"switch"`
	Route  layout.Route `json:"route"`
}

func (EventSwitch) Kind() string { return "switch" }

func (es EventSwitch) stamped(at time.Time) Event {
	es.At = at
	return es
}

func (es EventSwitch) String() string {
	return fmt.Sprintf("switch %s set to %s", es.Switch, es.Route)
}

type EventSignal struct {
	Stamp
	Signal string `json:"signal"`
	Aspect Aspect `json:"aspect"`
}

func (EventSignal) Kind() string { return "signal" }

func (es EventSignal) stamped(at time.Time) Event {
	es.At = at
	return es
}

func (es EventSignal) String() string {
	return fmt.Sprintf("signal %s shows %s", es.Signal, es.Aspect)
}

// EventRun is a start, stop, reset or speed change of a train's run.
type EventRun struct {
	Stamp
	Train   string    `json:"train"`
	Command string    `json:"command"`
	RunID   uuid.UUID `json:"runId"`
	Run     RunState  `json:"run"`
}

func (EventRun) Kind() string { return "run" }

func (er EventRun) stamped(at time.Time) Event {
	er.At = at
	return er
}

func (er EventRun) String() string {
	return fmt.Sprintf("train %s %s (running=%t ×%.1f)", er.Train, er.Command, er.Run.Running, er.Run.SpeedMultiplier)
}

// EventTransition is a train moving from one segment onto the next.
type EventTransition struct {
	Stamp
	Train string `json:"train"`
	From  string `json:"from"`
	To    string `json:"to"`
	Rule  Rule   `json:"rule"`
}

func (EventTransition) Kind() string { return "transition" }

func (et EventTransition) stamped(at time.Time) Event {
	et.At = at
	return et
}

func (et EventTransition) String() string {
	return fmt.Sprintf("train %s %s → %s (%s)", et.Train, et.From, et.To, et.Rule)
}

type EventWaiting struct {
	Stamp
	Train    string       `json:"train"`
	Signal   string       `json:"signal"`
	Segment  string       `json:"segment"`
	Progress float64      `json:"progress"`
	Position layout.Point `json:"position"`
}

func (EventWaiting) Kind() string { return "waiting" }

func (ew EventWaiting) stamped(at time.Time) Event {
	ew.At = at
	return ew
}

func (ew EventWaiting) String() string {
	return fmt.Sprintf("train %s waiting at %s on %s (%.3f)", ew.Train, ew.Signal, ew.Segment, ew.Progress)
}

type EventResume struct {
	Stamp
	Train  string `json:"train"`
	Signal string `json:"signal"`
}

func (EventResume) Kind() string { return "resume" }

func (er EventResume) stamped(at time.Time) Event {
	er.At = at
	return er
}

func (er EventResume) String() string {
	return fmt.Sprintf("train %s resumes past %s", er.Train, er.Signal)
}

type EventEndOfLine struct {
	Stamp
	Train   string `json:"train"`
	Segment string `json:"segment"`
}

func (EventEndOfLine) Kind() string { return "endofline" }

func (ee EventEndOfLine) stamped(at time.Time) Event {
	ee.At = at
	return ee
}

func (ee EventEndOfLine) String() string {
	return fmt.Sprintf("train %s reached the end of %s", ee.Train, ee.Segment)
}

type DiagnosticKind string

const (
	DiagnosticUnknownSegment   DiagnosticKind = "unknown-segment"
	DiagnosticResolverFallback DiagnosticKind = "resolver-fallback"
)

// EventDiagnostic reports a layout or state inconsistency found while moving a train.
type EventDiagnostic struct {
	Stamp
	Train   string         `json:"train"`
	Type    DiagnosticKind `json:"type"`
	Segment string         `json:"segment"`
	Detail  string         `json:"detail"`
}

func (EventDiagnostic) Kind() string { return "diagnostic" }

func (ed EventDiagnostic) stamped(at time.Time) Event {
	ed.At = at
	return ed
}

func (ed EventDiagnostic) String() string {
	return fmt.Sprintf("train %s: %s on %s: %s", ed.Train, ed.Type, ed.Segment, ed.Detail)
}

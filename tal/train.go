package tal

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/tal/layout"
)

// SignalProximity is how far (in layout units, along the track) before a red signal a train stops.
const SignalProximity = 30.0

// DefaultSpeed is in progress per millisecond.
const DefaultSpeed = 0.00125

var ErrUnknownSegment = errors.New("unknown segment")

type TrainState int

const (
	TrainStateStopped TrainState = iota
	TrainStateMoving
	TrainStateWaiting
)

func (s TrainState) String() string {
	switch s {
	case TrainStateStopped:
		return "stopped"
	case TrainStateMoving:
		return "moving"
	case TrainStateWaiting:
		return "waiting"
	default:
		return fmt.Sprintf("state%d", int(s))
	}
}

func (s TrainState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TrainState) UnmarshalText(text []byte) error {
	for _, c := range []TrainState{TrainStateStopped, TrainStateMoving, TrainStateWaiting} {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown train state %q", text)
}

type Train struct {
	ID       string       `json:"id"`
	Position layout.Point `json:"position"`
	Segment  string       `json:"currentSegmentId"`
	// Progress is in [0, 1] along Segment.
	Progress float64 `json:"progress"`
	// Speed is in progress per millisecond.
	Speed float64    `json:"speed"`
	State TrainState `json:"state"`
	// WaitingFor is the signal held at, only set when State is TrainStateWaiting.
	WaitingFor string `json:"waitingFor,omitempty"`
	// RunID changes every time the train is started.
	RunID uuid.UUID `json:"runId"`
}

func (t Train) IsMoving() bool          { return t.State == TrainStateMoving }
func (t Train) IsWaitingAtSignal() bool { return t.State == TrainStateWaiting }

func (t Train) String() string {
	return fmt.Sprintf("train(%s@%s:%.3f-%s)", t.ID, t.Segment, t.Progress, t.State)
}

// TrainConf is the initial placement of a train.
type TrainConf struct {
	ID       string  `json:"id"`
	Segment  string  `json:"segment"`
	Progress float64 `json:"progress,omitempty"`
	// Position overrides the position derived from Segment and Progress.
	Position *layout.Point `json:"position,omitempty"`
	// Speed is in progress per millisecond. Zero means DefaultSpeed.
	Speed float64 `json:"speed,omitempty"`
	// FrameStep, when non-zero, makes every tick advance by FrameStep×multiplier regardless of elapsed time.
	FrameStep float64 `json:"frameStep,omitempty"`
}

func (c TrainConf) initial(y *layout.Graph) (Train, error) {
	if c.ID == "" {
		return Train{}, errors.New("empty id")
	}
	seg, ok := y.Segment(c.Segment)
	if !ok {
		return Train{}, fmt.Errorf("train %s: segment %q: %w", c.ID, c.Segment, ErrUnknownSegment)
	}
	if c.Progress < 0 || c.Progress >= 1 || math.IsNaN(c.Progress) {
		return Train{}, fmt.Errorf("train %s: progress %g out of [0, 1)", c.ID, c.Progress)
	}
	if c.Speed < 0 || c.FrameStep < 0 {
		return Train{}, fmt.Errorf("train %s: negative speed", c.ID)
	}
	t := Train{
		ID:       c.ID,
		Segment:  c.Segment,
		Progress: c.Progress,
		Position: layout.PointAt(seg, c.Progress),
		Speed:    c.Speed,
		State:    TrainStateStopped,
	}
	if c.Position != nil {
		t.Position = *c.Position
	}
	if t.Speed == 0 {
		t.Speed = DefaultSpeed
	}
	return t, nil
}

// Kinematics advances one train along the layout.
// It is not safe for concurrent use; the owner of the train serializes calls.
type Kinematics struct {
	conf  TrainConf
	y     *layout.Graph
	il    *Interlock
	carry bool
	// params caches where each signal projects onto its segment.
	params map[string]float64
}

func newKinematics(conf TrainConf, y *layout.Graph, il *Interlock, carry bool) *Kinematics {
	return &Kinematics{
		conf:   conf,
		y:      y,
		il:     il,
		carry:  carry,
		params: map[string]float64{},
	}
}

func (k *Kinematics) signalParam(seg layout.Segment, sig Signal) float64 {
	if p, ok := k.params[sig.ID]; ok {
		return p
	}
	p := layout.Project(seg, sig.Position)
	k.params[sig.ID] = p
	return p
}

func (k *Kinematics) delta(t Train, dt time.Duration, multiplier float64) float64 {
	if k.conf.FrameStep > 0 {
		return k.conf.FrameStep * multiplier
	}
	ms := float64(dt) / float64(time.Millisecond)
	return t.Speed * ms * multiplier
}

// blocking returns a red signal on seg that is ahead of progress and within SignalProximity.
func (k *Kinematics) blocking(seg layout.Segment, progress float64) (Signal, bool) {
	for _, sig := range k.il.SignalsOn(seg.ID) {
		if !sig.Aspect.Blocking() {
			continue
		}
		d := layout.ArcLength(seg, progress, k.signalParam(seg, sig))
		if d >= 0 && d < SignalProximity {
			return sig, true
		}
	}
	return Signal{}, false
}

// guard returns the nearest point a move from p0 to p1 on seg must stop at because of a red signal.
func (k *Kinematics) guard(seg layout.Segment, p0, p1 float64) (Signal, float64, bool) {
	var (
		hit    Signal
		stopAt = math.Inf(1)
		found  bool
	)
	for _, sig := range k.il.SignalsOn(seg.ID) {
		if !sig.Aspect.Blocking() {
			continue
		}
		d := layout.ArcLength(seg, p0, k.signalParam(seg, sig))
		if d < 0 {
			// already passed
			continue
		}
		limit := p0
		if d >= SignalProximity {
			limit = layout.ParamAfter(seg, p0, d-SignalProximity)
		}
		if p1 > limit && limit < stopAt {
			hit, stopAt, found = sig, limit, true
		}
	}
	return hit, stopAt, found
}

func (k *Kinematics) wait(t Train, seg layout.Segment, sig Signal, progress float64) (Train, Event) {
	t.Progress = progress
	t.Position = layout.PointAt(seg, progress)
	t.State = TrainStateWaiting
	t.WaitingFor = sig.ID
	return t, EventWaiting{
		Train:    t.ID,
		Signal:   sig.ID,
		Segment:  seg.ID,
		Progress: progress,
		Position: t.Position,
	}
}

// Step advances t by one tick of dt at the given speed multiplier and returns the new state and
// what happened on the way. A stopped train is returned unchanged.
func (k *Kinematics) Step(t Train, dt time.Duration, multiplier float64) (Train, []Event, error) {
	if t.State == TrainStateStopped {
		return t, nil, nil
	}
	seg, ok := k.y.Segment(t.Segment)
	if !ok {
		t.State = TrainStateStopped
		t.WaitingFor = ""
		ev := EventDiagnostic{
			Train:   t.ID,
			Type:    DiagnosticUnknownSegment,
			Segment: t.Segment,
			Detail:  "train is on a segment not in the layout",
		}
		return t, []Event{ev}, fmt.Errorf("train %s: segment %q: %w", t.ID, t.Segment, ErrUnknownSegment)
	}

	var evs []Event
	if t.State == TrainStateWaiting {
		sig, ok := k.il.Signal(t.WaitingFor)
		if ok && sig.Aspect.Blocking() {
			return t, nil, nil
		}
		evs = append(evs, EventResume{Train: t.ID, Signal: t.WaitingFor})
		t.State = TrainStateMoving
		t.WaitingFor = ""
	} else if sig, ok := k.blocking(seg, t.Progress); ok {
		t, ev := k.wait(t, seg, sig, t.Progress)
		return t, []Event{ev}, nil
	}

	next := t.Progress + k.delta(t, dt, multiplier)
	if sig, stopAt, ok := k.guard(seg, t.Progress, next); ok {
		t, ev := k.wait(t, seg, sig, stopAt)
		return t, append(evs, ev), nil
	}
	if next < 1 {
		t.Progress = next
		t.Position = layout.PointAt(seg, next)
		return t, evs, nil
	}

	res := Resolve(seg, k.y, k.il)
	if res.Rule == RuleFallback {
		zap.S().Warnw("no active route at junction, taking first candidate",
			"train", t.ID,
			"segment", seg.ID,
			"candidates", len(res.Candidates),
			"next", res.Next.ID)
		evs = append(evs, EventDiagnostic{
			Train:   t.ID,
			Type:    DiagnosticResolverFallback,
			Segment: seg.ID,
			Detail:  fmt.Sprintf("took %s out of %d candidates", res.Next.ID, len(res.Candidates)),
		})
	}
	if !res.Found {
		t.State = TrainStateStopped
		t.WaitingFor = ""
		t.Progress = 1
		t.Position = layout.PointAt(seg, 1)
		return t, append(evs, EventEndOfLine{Train: t.ID, Segment: seg.ID}), nil
	}

	evs = append(evs, EventTransition{Train: t.ID, From: seg.ID, To: res.Next.ID, Rule: res.Rule})
	t.Segment = res.Next.ID
	t.Progress = 0
	t.Position = res.Next.Start
	t.WaitingFor = ""
	if !k.carry {
		return t, evs, nil
	}
	over := (next - 1) * layout.Length(seg)
	p := layout.ParamAfter(res.Next, 0, over)
	if p >= 1 {
		p = math.Nextafter(1, 0)
	}
	if sig, stopAt, ok := k.guard(res.Next, 0, p); ok {
		t, ev := k.wait(t, res.Next, sig, stopAt)
		return t, append(evs, ev), nil
	}
	t.Progress = p
	t.Position = layout.PointAt(res.Next, p)
	return t, evs, nil
}

package tal

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/metrics"
	"nyiyui.ca/hato/senro/notify"
	"nyiyui.ca/hato/senro/tal/layout"
)

const (
	MinSpeedMultiplier     = 0.1
	MaxSpeedMultiplier     = 2.0
	DefaultSpeedMultiplier = 1.0
)

var (
	ErrUnknownTrain      = errors.New("unknown train")
	ErrInvalidMultiplier = errors.New("invalid speed multiplier")
)

// RunState is the run control of one train.
type RunState struct {
	Running         bool    `json:"isRunning"`
	SpeedMultiplier float64 `json:"speedMultiplier"`
}

type GuideConf struct {
	Layout    *layout.Graph
	Interlock *Interlock
	Trains    []TrainConf
	// CarryOverflow carries progress past the end of a segment onto the next one instead of discarding it.
	CarryOverflow bool
}

// TrainSnapshot is a train as seen from outside.
type TrainSnapshot struct {
	Train
	IsMoving          bool     `json:"isMoving"`
	IsWaitingAtSignal bool     `json:"isWaitingAtSignal"`
	Run               RunState `json:"run"`
}

// GuideSnapshot is a consistent-per-train view of the whole layout.
type GuideSnapshot struct {
	// Seq increases with every published snapshot.
	Seq      uint64           `json:"seq"`
	Time     time.Time        `json:"time"`
	Segments []layout.Segment `json:"segments"`
	Switches []Switch         `json:"switches"`
	Signals  []Signal         `json:"signals"`
	Trains   []TrainSnapshot  `json:"trains"`
}

// Train looks up a train in the snapshot.
func (gs GuideSnapshot) Train(id string) (TrainSnapshot, bool) {
	for _, t := range gs.Trains {
		if t.ID == id {
			return t, true
		}
	}
	return TrainSnapshot{}, false
}

type trainEntry struct {
	lock    sync.Mutex
	initial Train
	train   Train
	run     RunState
	kin     *Kinematics
	history History
}

func (e *trainEntry) snapshot() TrainSnapshot {
	return TrainSnapshot{
		Train:             e.train,
		IsMoving:          e.train.IsMoving(),
		IsWaitingAtSignal: e.train.IsWaitingAtSignal(),
		Run:               e.run,
	}
}

// Guide owns the layout, the interlocking, and every train on it.
// Commands and ticks on different trains run in parallel; those on one train are serialized.
type Guide struct {
	Layout      *layout.Graph
	Interlock   *Interlock
	order       []string
	trains      map[string]*trainEntry
	seq         atomic.Uint64
	publishLock sync.Mutex

	SnapshotMux *notify.Multiplexer[GuideSnapshot]
	snapshotS   *notify.MultiplexerSender[GuideSnapshot]
	EventMux    *notify.Multiplexer[Event]
	eventS      *notify.MultiplexerSender[Event]
}

func NewGuide(conf GuideConf) (*Guide, error) {
	if conf.Layout == nil {
		return nil, errors.New("nil layout")
	}
	if conf.Interlock == nil {
		return nil, errors.New("nil interlock")
	}
	g := &Guide{
		Layout:    conf.Layout,
		Interlock: conf.Interlock,
		trains:    make(map[string]*trainEntry, len(conf.Trains)),
	}
	for i, tc := range conf.Trains {
		t, err := tc.initial(conf.Layout)
		if err != nil {
			return nil, fmt.Errorf("train %d: %w", i, err)
		}
		if _, ok := g.trains[t.ID]; ok {
			return nil, fmt.Errorf("train %d: duplicate id %q", i, t.ID)
		}
		g.order = append(g.order, t.ID)
		e := &trainEntry{
			initial: t,
			train:   t,
			run:     RunState{SpeedMultiplier: DefaultSpeedMultiplier},
			kin:     newKinematics(tc, conf.Layout, conf.Interlock, conf.CarryOverflow),
		}
		e.history.AddSpan(spanOf(t, "init", time.Now()))
		g.trains[t.ID] = e
	}
	g.snapshotS, g.SnapshotMux = notify.NewMultiplexerSender[GuideSnapshot]("guide snapshots")
	g.eventS, g.EventMux = notify.NewMultiplexerSender[Event]("guide events")
	g.publish()
	return g, nil
}

// TrainIDs returns the train ids in configuration order.
func (g *Guide) TrainIDs() []string {
	res := make([]string, len(g.order))
	copy(res, g.order)
	return res
}

func (g *Guide) entry(id string) (*trainEntry, error) {
	e, ok := g.trains[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrUnknownTrain)
	}
	return e, nil
}

// Snapshot returns the current state. Each train is read under its own lock.
func (g *Guide) Snapshot() GuideSnapshot {
	gs := GuideSnapshot{
		Time:     time.Now(),
		Segments: g.Layout.Segments(),
		Switches: g.Interlock.Switches(),
		Signals:  g.Interlock.Signals(),
		Trains:   make([]TrainSnapshot, 0, len(g.order)),
	}
	for _, id := range g.order {
		e := g.trains[id]
		e.lock.Lock()
		gs.Trains = append(gs.Trains, e.snapshot())
		e.lock.Unlock()
	}
	return gs
}

func (g *Guide) Train(id string) (TrainSnapshot, error) {
	e, err := g.entry(id)
	if err != nil {
		return TrainSnapshot{}, err
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.snapshot(), nil
}

// History returns the recent course of train id.
func (g *Guide) History(id string) (History, error) {
	e, err := g.entry(id)
	if err != nil {
		return History{}, err
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.history.Clone(), nil
}

// publish stamps and sends evs, then a fresh snapshot.
// Everything one call sends reaches subscribers before anything a later call sends.
func (g *Guide) publish(evs ...Event) {
	g.publishLock.Lock()
	defer g.publishLock.Unlock()
	now := time.Now()
	for _, ev := range evs {
		ev = ev.stamped(now)
		g.observe(ev)
		g.eventS.Send(ev)
	}
	gs := g.Snapshot()
	gs.Seq = g.seq.Add(1)
	g.snapshotS.Send(gs)
}

func (g *Guide) observe(ev Event) {
	switch ev := ev.(type) {
	case EventSwitch:
		metrics.SwitchTogglesTotal.WithLabelValues(ev.Switch).Inc()
		zap.S().Infow("switch", "switch", ev.Switch, "route", ev.Route)
	case EventSignal:
		metrics.SignalTogglesTotal.WithLabelValues(ev.Signal).Inc()
		zap.S().Infow("signal", "signal", ev.Signal, "aspect", ev.Aspect)
	case EventRun:
		zap.S().Infow("run", "train", ev.Train, "command", ev.Command, "runID", ev.RunID, "running", ev.Run.Running, "multiplier", ev.Run.SpeedMultiplier)
	case EventTransition:
		metrics.TransitionsTotal.WithLabelValues(ev.Train, ev.Rule.String()).Inc()
		zap.S().Debugw("transition", "train", ev.Train, "from", ev.From, "to", ev.To, "rule", ev.Rule)
	case EventWaiting:
		metrics.SignalWaitsTotal.WithLabelValues(ev.Train, ev.Signal).Inc()
		zap.S().Infow("waiting at signal", "train", ev.Train, "signal", ev.Signal, "segment", ev.Segment, "progress", ev.Progress)
	case EventResume:
		zap.S().Infow("resume", "train", ev.Train, "signal", ev.Signal)
	case EventEndOfLine:
		metrics.EndOfLineTotal.WithLabelValues(ev.Train).Inc()
		zap.S().Infow("end of line", "train", ev.Train, "segment", ev.Segment)
	case EventDiagnostic:
		metrics.DiagnosticsTotal.WithLabelValues(string(ev.Type)).Inc()
		zap.S().Warnw("diagnostic", "train", ev.Train, "type", ev.Type, "segment", ev.Segment, "detail", ev.Detail)
	}
}

func (g *Guide) updateRunning() {
	n := 0
	for _, id := range g.order {
		e := g.trains[id]
		e.lock.Lock()
		if e.run.Running {
			n++
		}
		e.lock.Unlock()
	}
	metrics.RunningTrains.Set(float64(n))
}

// ToggleSwitch flips a switch. Trains already past the junction are unaffected.
func (g *Guide) ToggleSwitch(id string) (layout.Route, error) {
	r, err := g.Interlock.ToggleSwitch(id)
	if err != nil {
		return r, err
	}
	g.publish(EventSwitch{Switch: id, Route: r})
	return r, nil
}

// ToggleSignal flips a signal. A train waiting at it resumes on its next tick.
func (g *Guide) ToggleSignal(id string) (Aspect, error) {
	a, err := g.Interlock.ToggleSignal(id)
	if err != nil {
		return a, err
	}
	g.publish(EventSignal{Signal: id, Aspect: a})
	return a, nil
}

func (g *Guide) SetAspect(id string, a Aspect) error {
	if err := g.Interlock.SetAspect(id, a); err != nil {
		return err
	}
	g.publish(EventSignal{Signal: id, Aspect: a})
	return nil
}

// command runs f on train id under its lock and publishes the result.
func (g *Guide) command(id, name string, f func(e *trainEntry)) (TrainSnapshot, error) {
	e, err := g.entry(id)
	if err != nil {
		return TrainSnapshot{}, err
	}
	ts := func() TrainSnapshot {
		e.lock.Lock()
		defer e.lock.Unlock()
		f(e)
		e.history.AddSpan(spanOf(e.train, name, time.Now()))
		return e.snapshot()
	}()
	g.updateRunning()
	g.publish(EventRun{Train: id, Command: name, RunID: ts.RunID, Run: ts.Run})
	return ts, nil
}

// Start begins a run. A stopped train starts moving; a waiting train keeps waiting.
func (g *Guide) Start(id string) (TrainSnapshot, error) {
	return g.command(id, "start", func(e *trainEntry) {
		e.run.Running = true
		e.train.RunID = uuid.New()
		if e.train.State == TrainStateStopped {
			e.train.State = TrainStateMoving
		}
	})
}

// Stop halts a train where it is. Progress is kept.
func (g *Guide) Stop(id string) (TrainSnapshot, error) {
	return g.command(id, "stop", func(e *trainEntry) {
		e.run.Running = false
		e.train.State = TrainStateStopped
		e.train.WaitingFor = ""
	})
}

// Reset puts a train back to where it was configured and stops its run.
func (g *Guide) Reset(id string) (TrainSnapshot, error) {
	return g.command(id, "reset", func(e *trainEntry) {
		e.train = e.initial
		e.run = RunState{SpeedMultiplier: DefaultSpeedMultiplier}
	})
}

// SetSpeedMultiplier sets the speed multiplier of a train, clamped to [MinSpeedMultiplier, MaxSpeedMultiplier].
// Non-positive and non-finite values are rejected.
func (g *Guide) SetSpeedMultiplier(id string, v float64) (TrainSnapshot, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return TrainSnapshot{}, fmt.Errorf("%g: %w", v, ErrInvalidMultiplier)
	}
	v = math.Max(MinSpeedMultiplier, math.Min(MaxSpeedMultiplier, v))
	return g.command(id, "speed", func(e *trainEntry) {
		e.run.SpeedMultiplier = v
	})
}

// Tick advances train id by dt if its run is active. A run ends when the train stops by itself.
func (g *Guide) Tick(id string, dt time.Duration) (TrainSnapshot, error) {
	e, err := g.entry(id)
	if err != nil {
		return TrainSnapshot{}, err
	}
	start := time.Now()
	var (
		ts      TrainSnapshot
		evs     []Event
		stepErr error
		ended   bool
	)
	func() {
		e.lock.Lock()
		defer e.lock.Unlock()
		if !e.run.Running {
			ts = e.snapshot()
			return
		}
		e.train, evs, stepErr = e.kin.Step(e.train, dt, e.run.SpeedMultiplier)
		now := time.Now()
		for _, ev := range evs {
			e.history.AddSpan(spanOf(e.train, ev.Kind(), now))
		}
		if e.train.State == TrainStateStopped {
			e.run.Running = false
			ended = true
		}
		ts = e.snapshot()
	}()
	metrics.TicksTotal.WithLabelValues(id).Inc()
	metrics.TickDuration.Observe(time.Since(start).Seconds())
	if ended {
		g.updateRunning()
	}
	if stepErr != nil {
		zap.S().Errorw("tick failed", "train", id, "err", stepErr)
	}
	g.publish(evs...)
	return ts, stepErr
}

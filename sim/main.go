// Package sim drives trains on a tal.Guide in real time, one tick loop per running train.
package sim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/notify"
	"nyiyui.ca/hato/senro/tal"
	"nyiyui.ca/hato/senro/tal/layout"
)

// DefaultFrame is about one display frame at 60Hz.
const DefaultFrame = 16 * time.Millisecond

type SimulationConf struct {
	Guide *tal.Guide
	// Frame is the interval between ticks. Zero means DefaultFrame.
	Frame time.Duration
	// NewTicker makes the tick source of each loop. Nil means NewTimeTicker.
	NewTicker TickerFunc
}

type Simulation struct {
	conf   SimulationConf
	ctx    context.Context
	cancel context.CancelFunc
	lock   sync.Mutex
	loops  map[string]*loop
	wg     sync.WaitGroup
}

type loop struct {
	cancel context.CancelFunc
}

func New(ctx context.Context, conf SimulationConf) *Simulation {
	if conf.Frame == 0 {
		conf.Frame = DefaultFrame
	}
	if conf.NewTicker == nil {
		conf.NewTicker = NewTimeTicker
	}
	s := &Simulation{
		conf:  conf,
		loops: map[string]*loop{},
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	return s
}

func (s *Simulation) Guide() *tal.Guide { return s.conf.Guide }

func (s *Simulation) Snapshots() *notify.Multiplexer[tal.GuideSnapshot] {
	return s.conf.Guide.SnapshotMux
}

func (s *Simulation) Events() *notify.Multiplexer[tal.Event] {
	return s.conf.Guide.EventMux
}

func (s *Simulation) Snapshot() tal.GuideSnapshot {
	return s.conf.Guide.Snapshot()
}

func (s *Simulation) Train(id string) (tal.TrainSnapshot, error) {
	return s.conf.Guide.Train(id)
}

func (s *Simulation) History(id string) (tal.History, error) {
	return s.conf.Guide.History(id)
}

func (s *Simulation) ToggleSwitch(id string) (layout.Route, error) {
	return s.conf.Guide.ToggleSwitch(id)
}

func (s *Simulation) ToggleSignal(id string) (tal.Aspect, error) {
	return s.conf.Guide.ToggleSignal(id)
}

func (s *Simulation) SetSpeedMultiplier(id string, v float64) (tal.TrainSnapshot, error) {
	return s.conf.Guide.SetSpeedMultiplier(id, v)
}

// Start starts a train and (re)starts its tick loop.
func (s *Simulation) Start(id string) (tal.TrainSnapshot, error) {
	ts, err := s.conf.Guide.Start(id)
	if err != nil {
		return ts, err
	}
	s.startLoop(id)
	return ts, nil
}

// Stop stops a train and cancels its tick loop. Other trains' loops are unaffected.
func (s *Simulation) Stop(id string) (tal.TrainSnapshot, error) {
	ts, err := s.conf.Guide.Stop(id)
	if err != nil {
		return ts, err
	}
	s.stopLoop(id)
	return ts, nil
}

func (s *Simulation) Reset(id string) (tal.TrainSnapshot, error) {
	s.stopLoop(id)
	return s.conf.Guide.Reset(id)
}

// Running returns whether train id has a live tick loop.
func (s *Simulation) Running(id string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.loops[id]
	return ok
}

func (s *Simulation) startLoop(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if l, ok := s.loops[id]; ok {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	l := &loop{cancel: cancel}
	s.loops[id] = l
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forget(id, l)
		s.run(ctx, id)
	}()
}

func (s *Simulation) stopLoop(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if l, ok := s.loops[id]; ok {
		l.cancel()
		delete(s.loops, id)
	}
}

func (s *Simulation) forget(id string, l *loop) {
	s.lock.Lock()
	defer s.lock.Unlock()
	l.cancel()
	if s.loops[id] == l {
		delete(s.loops, id)
	}
}

func (s *Simulation) run(ctx context.Context, id string) {
	t := s.conf.NewTicker(s.conf.Frame)
	defer t.Stop()
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C():
			// a cancelled loop must not tick even if a tick is ready
			if ctx.Err() != nil {
				return
			}
			dt := s.conf.Frame
			if !last.IsZero() {
				dt = now.Sub(last)
			}
			last = now
			ts, err := s.conf.Guide.Tick(id, dt)
			if err != nil {
				zap.S().Errorw("tick loop ended", "train", id, "err", err)
				return
			}
			if !ts.Run.Running {
				zap.S().Debugw("tick loop ended", "train", id, "state", ts.State)
				return
			}
		}
	}
}

// Close stops every tick loop and waits for them to exit.
func (s *Simulation) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

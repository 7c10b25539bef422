package tal

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/senro/tal/layout"
)

var (
	ErrUnknownSwitch = errors.New("unknown switch")
	ErrUnknownSignal = errors.New("unknown signal")
)

// Interlock holds the switch and signal registries.
// Both registries share one lock; every method is safe for concurrent use.
type Interlock struct {
	lock        sync.RWMutex
	switches    []Switch
	switchIndex map[string]int
	signals     []Signal
	signalIndex map[string]int
}

// NewInterlock checks switches and signals against y and returns an Interlock holding copies of them.
func NewInterlock(y *layout.Graph, switches []Switch, signals []Signal) (*Interlock, error) {
	il := &Interlock{
		switches:    slices.Clone(switches),
		switchIndex: make(map[string]int, len(switches)),
		signals:     slices.Clone(signals),
		signalIndex: make(map[string]int, len(signals)),
	}
	for i, sw := range il.switches {
		if sw.ID == "" {
			return nil, fmt.Errorf("switch %d: empty id", i)
		}
		if _, ok := il.switchIndex[sw.ID]; ok {
			return nil, fmt.Errorf("switch %d: duplicate id %q", i, sw.ID)
		}
		if !sw.Active.Valid() {
			return nil, fmt.Errorf("switch %s: invalid route %q", sw.ID, sw.Active)
		}
		for _, id := range []string{sw.MainSegment, sw.BranchSegment} {
			if id == "" {
				continue
			}
			if _, ok := y.Segment(id); !ok {
				return nil, fmt.Errorf("switch %s: segment %q not in layout", sw.ID, id)
			}
		}
		il.switchIndex[sw.ID] = i
	}
	for i, sig := range il.signals {
		if sig.ID == "" {
			return nil, fmt.Errorf("signal %d: empty id", i)
		}
		if _, ok := il.signalIndex[sig.ID]; ok {
			return nil, fmt.Errorf("signal %d: duplicate id %q", i, sig.ID)
		}
		if !sig.Aspect.Valid() {
			return nil, fmt.Errorf("signal %s: invalid aspect %q", sig.ID, sig.Aspect)
		}
		if _, ok := y.Segment(sig.Segment); !ok {
			return nil, fmt.Errorf("signal %s: governed segment %q not in layout", sig.ID, sig.Segment)
		}
		il.signalIndex[sig.ID] = i
	}
	for _, s := range y.Segments() {
		if s.SwitchID == "" {
			continue
		}
		if _, ok := il.switchIndex[s.SwitchID]; !ok {
			// not fatal: the segment is just never eligible at a junction
			zap.S().Warnw("segment refers to unknown switch",
				"segment", s.ID,
				"switch", s.SwitchID)
		}
	}
	return il, nil
}

// ActiveRoute returns the route switch id is set to.
func (il *Interlock) ActiveRoute(id string) (layout.Route, bool) {
	il.lock.RLock()
	defer il.lock.RUnlock()
	i, ok := il.switchIndex[id]
	if !ok {
		return layout.RouteNone, false
	}
	return il.switches[i].Active, true
}

// ToggleSwitch flips a switch between main and branch and returns the new route.
func (il *Interlock) ToggleSwitch(id string) (layout.Route, error) {
	il.lock.Lock()
	defer il.lock.Unlock()
	i, ok := il.switchIndex[id]
	if !ok {
		return layout.RouteNone, fmt.Errorf("toggle %q: %w", id, ErrUnknownSwitch)
	}
	il.switches[i].Active = il.switches[i].Active.Other()
	return il.switches[i].Active, nil
}

// SetRoute sets a switch to r.
func (il *Interlock) SetRoute(id string, r layout.Route) error {
	if !r.Valid() {
		return fmt.Errorf("set %q: invalid route %q", id, r)
	}
	il.lock.Lock()
	defer il.lock.Unlock()
	i, ok := il.switchIndex[id]
	if !ok {
		return fmt.Errorf("set %q: %w", id, ErrUnknownSwitch)
	}
	il.switches[i].Active = r
	return nil
}

// ToggleSignal flips a signal between red and green and returns the new aspect.
// A yellow signal becomes red.
func (il *Interlock) ToggleSignal(id string) (Aspect, error) {
	il.lock.Lock()
	defer il.lock.Unlock()
	i, ok := il.signalIndex[id]
	if !ok {
		return "", fmt.Errorf("toggle %q: %w", id, ErrUnknownSignal)
	}
	il.signals[i].Aspect = il.signals[i].Aspect.toggled()
	return il.signals[i].Aspect, nil
}

// SetAspect sets a signal to a.
func (il *Interlock) SetAspect(id string, a Aspect) error {
	if !a.Valid() {
		return fmt.Errorf("set %q: invalid aspect %q", id, a)
	}
	il.lock.Lock()
	defer il.lock.Unlock()
	i, ok := il.signalIndex[id]
	if !ok {
		return fmt.Errorf("set %q: %w", id, ErrUnknownSignal)
	}
	il.signals[i].Aspect = a
	return nil
}

func (il *Interlock) Signal(id string) (Signal, bool) {
	il.lock.RLock()
	defer il.lock.RUnlock()
	i, ok := il.signalIndex[id]
	if !ok {
		return Signal{}, false
	}
	return il.signals[i], true
}

// SignalsOn returns the signals governing segment id, in configuration order.
func (il *Interlock) SignalsOn(id string) []Signal {
	il.lock.RLock()
	defer il.lock.RUnlock()
	var res []Signal
	for _, sig := range il.signals {
		if sig.Segment == id {
			res = append(res, sig)
		}
	}
	return res
}

func (il *Interlock) Switches() []Switch {
	il.lock.RLock()
	defer il.lock.RUnlock()
	return slices.Clone(il.switches)
}

func (il *Interlock) Signals() []Signal {
	il.lock.RLock()
	defer il.lock.RUnlock()
	return slices.Clone(il.signals)
}

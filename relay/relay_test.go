package relay

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nyiyui.ca/hato/senro/config"
	"nyiyui.ca/hato/senro/tal"
)

type message struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	lock sync.Mutex
	msgs []message
	err  error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.msgs = append(f.msgs, message{subject, data})
	return f.err
}

func (f *fakePublisher) find(subject string) (message, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for _, m := range f.msgs {
		if m.subject == subject {
			return m, true
		}
	}
	return message{}, false
}

func newTestRelay(t *testing.T, p Publisher) (*Relay, *tal.Guide) {
	t.Helper()
	g, err := config.Demo().Build(false)
	require.NoError(t, err)
	r := New(Conf{
		Publisher: p,
		Prefix:    "senro.test",
		Snapshots: g.SnapshotMux,
		Events:    g.EventMux,
	})
	t.Cleanup(r.Close)
	return r, g
}

func TestRelayEvents(t *testing.T) {
	p := new(fakePublisher)
	_, g := newTestRelay(t, p)
	_, err := g.ToggleSignal("S2")
	require.NoError(t, err)

	var m message
	require.Eventually(t, func() bool {
		var ok bool
		m, ok = p.find("senro.test.event.signal")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	var ev tal.EventSignal
	require.NoError(t, json.Unmarshal(m.data, &ev))
	assert.Equal(t, "S2", ev.Signal)
	assert.Equal(t, tal.AspectGreen, ev.Aspect)
	assert.False(t, ev.At.IsZero())

	require.Eventually(t, func() bool {
		_, ok := p.find("senro.test.snapshot")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	m, _ = p.find("senro.test.snapshot")
	var gs tal.GuideSnapshot
	require.NoError(t, json.Unmarshal(m.data, &gs))
	assert.Len(t, gs.Trains, 2)
}

func TestRelaySubjects(t *testing.T) {
	r, _ := newTestRelay(t, new(fakePublisher))
	assert.Equal(t, "senro.test.snapshot", r.SnapshotSubject())
	for _, ev := range []tal.Event{
		tal.EventSwitch{}, tal.EventSignal{}, tal.EventRun{}, tal.EventTransition{},
		tal.EventWaiting{}, tal.EventResume{}, tal.EventEndOfLine{}, tal.EventDiagnostic{},
	} {
		subject := r.EventSubject(ev)
		assert.True(t, strings.HasPrefix(subject, "senro.test.event."), subject)
		// NATS subject tokens are dot-separated
		assert.Equal(t, 3, strings.Count(subject, "."), subject)
	}
}

func TestRelayPublishError(t *testing.T) {
	p := &fakePublisher{err: errors.New("nats: connection closed")}
	_, g := newTestRelay(t, p)
	// errors are logged, not fatal; later messages are still attempted
	g.ToggleSwitch("SW1")
	g.ToggleSwitch("SW2")
	require.Eventually(t, func() bool {
		p.lock.Lock()
		defer p.lock.Unlock()
		n := 0
		for _, m := range p.msgs {
			if strings.HasPrefix(m.subject, "senro.test.event.switch") {
				n++
			}
		}
		return n == 2
	}, 2*time.Second, 5*time.Millisecond)
}

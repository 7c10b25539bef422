// Package notify fans values out to any number of subscribed channels.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const multiplexerTimeout = 200 * time.Millisecond

// queueLimit is how many values may wait for delivery; beyond it the oldest are dropped.
const queueLimit = 1024

type subscriber[E any] struct {
	ch      chan E
	comment string
}

type MultiplexerSender[E any] struct {
	m *Multiplexer[E]
}

// Send records e as the current value and queues it for subscribers.
// Values reach each subscriber in the order they were sent.
func (ms *MultiplexerSender[E]) Send(e E) {
	m := ms.m
	m.lock.Lock()
	defer m.lock.Unlock()
	m.current = e
	m.hasCurrent = true
	if len(m.queue) >= queueLimit {
		var zero E
		m.queue[0] = zero
		m.queue = m.queue[1:]
		m.dropped++
	}
	m.queue = append(m.queue, e)
	if !m.draining {
		m.draining = true
		go m.drain()
	}
}

func NewMultiplexerSender[E any](comment string) (*MultiplexerSender[E], *Multiplexer[E]) {
	m := &Multiplexer[E]{
		comment: comment,
	}
	return &MultiplexerSender[E]{m: m}, m
}

type Multiplexer[E any] struct {
	comment         string
	subscribersLock sync.Mutex
	subscribers     []subscriber[E]
	// lock guards everything below
	lock       sync.Mutex
	current    E
	hasCurrent bool
	queue      []E
	draining   bool
	dropped    int
}

// Current returns the value most recently sent, if any.
func (m *Multiplexer[E]) Current() (E, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.current, m.hasCurrent
}

func (m *Multiplexer[E]) Subscribe(comment string, c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	m.subscribers = append(m.subscribers, subscriber[E]{
		ch:      c,
		comment: comment,
	})
}

func (m *Multiplexer[E]) Unsubscribe(c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	i := slices.IndexFunc(m.subscribers, func(sub subscriber[E]) bool { return sub.ch == c })
	if i == -1 {
		panic("already unsubscribed")
	}
	m.subscribers = slices.Delete(m.subscribers, i, i+1)
}

// Len returns the number of subscribers.
func (m *Multiplexer[E]) Len() int {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	return len(m.subscribers)
}

// drain delivers queued values until the queue is empty. At most one drain runs at a time.
func (m *Multiplexer[E]) drain() {
	for {
		m.lock.Lock()
		if m.dropped > 0 {
			zap.S().Warnw("queue full, values dropped",
				"multiplexer", m.comment,
				"dropped", m.dropped)
			m.dropped = 0
		}
		if len(m.queue) == 0 {
			m.draining = false
			m.lock.Unlock()
			return
		}
		e := m.queue[0]
		var zero E
		m.queue[0] = zero
		m.queue = m.queue[1:]
		m.lock.Unlock()
		m.send(e)
	}
}

func (m *Multiplexer[E]) send(e E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	for _, sub := range m.subscribers {
		select {
		case sub.ch <- e:
		case <-time.After(multiplexerTimeout):
			m.timeout(sub)
		}
	}
}

func (m *Multiplexer[E]) timeout(sub subscriber[E]) {
	zap.S().Warnw("subscriber timed out, value dropped",
		"multiplexer", m.comment,
		"subscriber", sub.comment)
}

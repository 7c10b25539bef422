// Package relay publishes snapshots and events to a NATS server.
package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/notify"
	"nyiyui.ca/hato/senro/tal"
)

// Publisher sends one message. *nats.Conn implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Dial connects to a NATS server, reconnecting forever.
func Dial(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("senro"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.Timeout(10 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			zap.S().Warnw("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			zap.S().Infow("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	return nats.Connect(url, opts...)
}

type Conf struct {
	Publisher Publisher
	// Prefix is prepended to every subject. Snapshots go to <Prefix>.snapshot and events to
	// <Prefix>.event.<kind>.
	Prefix    string
	Snapshots *notify.Multiplexer[tal.GuideSnapshot]
	Events    *notify.Multiplexer[tal.Event]
	// SnapshotInterval is the minimum time between two published snapshots. Snapshots in between are dropped.
	SnapshotInterval time.Duration
}

type Relay struct {
	conf Conf
	done chan struct{}
	wg   sync.WaitGroup
}

func New(conf Conf) *Relay {
	r := &Relay{
		conf: conf,
		done: make(chan struct{}),
	}
	snapshots := make(chan tal.GuideSnapshot, 4)
	events := make(chan tal.Event, 64)
	conf.Snapshots.Subscribe("relay", snapshots)
	conf.Events.Subscribe("relay", events)
	r.wg.Add(2)
	go r.forwardSnapshots(snapshots)
	go r.forwardEvents(events)
	return r
}

func (r *Relay) SnapshotSubject() string { return r.conf.Prefix + ".snapshot" }

func (r *Relay) EventSubject(ev tal.Event) string { return r.conf.Prefix + ".event." + ev.Kind() }

func (r *Relay) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.S().Errorw("marshal", "subject", subject, "err", err)
		return
	}
	if err := r.conf.Publisher.Publish(subject, data); err != nil {
		zap.S().Warnw("publish", "subject", subject, "err", err)
	}
}

func (r *Relay) forwardSnapshots(ch chan tal.GuideSnapshot) {
	defer r.wg.Done()
	defer r.conf.Snapshots.Unsubscribe(ch)
	var last time.Time
	for {
		select {
		case <-r.done:
			return
		case gs := <-ch:
			if r.conf.SnapshotInterval > 0 && gs.Time.Sub(last) < r.conf.SnapshotInterval {
				continue
			}
			last = gs.Time
			r.publish(r.SnapshotSubject(), gs)
		}
	}
}

func (r *Relay) forwardEvents(ch chan tal.Event) {
	defer r.wg.Done()
	defer r.conf.Events.Unsubscribe(ch)
	for {
		select {
		case <-r.done:
			return
		case ev := <-ch:
			r.publish(r.EventSubject(ev), ev)
		}
	}
}

// Close stops publishing. The Publisher is left open.
func (r *Relay) Close() {
	close(r.done)
	r.wg.Wait()
}

// Package trace records events to a file, one JSON object per line.
package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/notify"
	"nyiyui.ca/hato/senro/tal"
)

// Record is one line of a trace.
type Record struct {
	// Time is when the event was published.
	Time time.Time `json:"time"`
	Kind string    `json:"kind"`
	// Preview is the human-readable form of the event.
	Preview string          `json:"preview"`
	Event   json.RawMessage `json:"event,omitempty"`
}

// serialize tries to serialize as much as it can of ev.
// Events that were never published are timed with now.
func serialize(ev tal.Event, now time.Time) Record {
	at := ev.Time()
	if at.IsZero() {
		at = now
	}
	r := Record{
		Time:    at,
		Kind:    ev.Kind(),
		Preview: ev.String(),
	}
	data, err := json.Marshal(ev)
	if err == nil {
		r.Event = data
	}
	return r
}

type Recorder struct {
	lock   sync.Mutex
	out    io.Writer
	closer io.Closer
	events *notify.Multiplexer[tal.Event]
	ch     chan tal.Event
	done   chan struct{}
	wg     sync.WaitGroup
}

// Create starts recording events to a new file at path.
func Create(path string, events *notify.Multiplexer[tal.Event]) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	r := New(f, events)
	r.closer = f
	return r, nil
}

// New starts recording events to out.
func New(out io.Writer, events *notify.Multiplexer[tal.Event]) *Recorder {
	r := &Recorder{
		out:    out,
		events: events,
		ch:     make(chan tal.Event, 64),
		done:   make(chan struct{}),
	}
	events.Subscribe("trace", r.ch)
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case ev := <-r.ch:
			r.record(ev)
		}
	}
}

func (r *Recorder) record(ev tal.Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(serialize(ev, time.Now())); err != nil {
		zap.S().Warnw("trace: encode", "event", ev, "err", err)
		return
	}
	if _, err := io.Copy(r.out, buf); err != nil {
		zap.S().Warnw("trace: write", "event", ev, "err", err)
	}
}

// Close stops recording and closes the file if Create opened it.
func (r *Recorder) Close() error {
	r.events.Unsubscribe(r.ch)
	close(r.done)
	r.wg.Wait()
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Read decodes a trace.
func Read(in io.Reader) ([]Record, error) {
	var res []Record
	dec := json.NewDecoder(in)
	for {
		var rec Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("trace: record %d: %w", len(res), err)
		}
		res = append(res, rec)
	}
}

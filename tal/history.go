package tal

import (
	"time"

	"nyiyui.ca/hato/senro/tal/layout"
)

// HistoryLimit is the number of spans kept per train; older spans are dropped first.
const HistoryLimit = 256

// History is the recent course of one train, one span per notable change.
type History struct {
	Spans []Span `json:"spans"`
}

// Span is where a train was when something happened to it.
type Span struct {
	Time     time.Time    `json:"time"`
	Segment  string       `json:"segment"`
	Progress float64      `json:"progress"`
	Position layout.Point `json:"position"`
	State    TrainState   `json:"state"`
	// Cause is the event kind or command that produced this span.
	Cause string `json:"cause"`
}

func spanOf(t Train, cause string, now time.Time) Span {
	return Span{
		Time:     now,
		Segment:  t.Segment,
		Progress: t.Progress,
		Position: t.Position,
		State:    t.State,
		Cause:    cause,
	}
}

func (h *History) AddSpan(s Span) {
	if len(h.Spans) >= HistoryLimit {
		n := copy(h.Spans, h.Spans[len(h.Spans)-HistoryLimit+1:])
		h.Spans = h.Spans[:n]
	}
	h.Spans = append(h.Spans, s)
}

// TimeRange returns the times of the first and last span. ok is false if there are none.
func (h *History) TimeRange() (start, end time.Time, ok bool) {
	if len(h.Spans) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return h.Spans[0].Time, h.Spans[len(h.Spans)-1].Time, true
}

// Segments returns the segments visited, in order, without consecutive repeats.
func (h *History) Segments() []string {
	res := make([]string, 0)
	for _, s := range h.Spans {
		if len(res) > 0 && res[len(res)-1] == s.Segment {
			continue
		}
		res = append(res, s.Segment)
	}
	return res
}

func (h *History) Clone() History {
	spans := make([]Span, len(h.Spans))
	copy(spans, h.Spans)
	return History{Spans: spans}
}

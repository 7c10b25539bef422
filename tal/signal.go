package tal

import (
	"fmt"

	"nyiyui.ca/hato/senro/tal/layout"
)

// Aspect is what a signal shows.
type Aspect string

const (
	AspectRed    Aspect = "red"
	AspectYellow Aspect = "yellow"
	AspectGreen  Aspect = "green"
)

func (a Aspect) Valid() bool {
	return a == AspectRed || a == AspectYellow || a == AspectGreen
}

// Blocking reports whether trains must stop for this aspect.
// Only red blocks; yellow is treated like green.
func (a Aspect) Blocking() bool {
	return a == AspectRed
}

// toggled returns the aspect after a toggle: red becomes green, anything else becomes red.
func (a Aspect) toggled() Aspect {
	if a == AspectRed {
		return AspectGreen
	}
	return AspectRed
}

// Signal gates movement on one segment.
type Signal struct {
	ID string `json:"id"`
	// Segment is the id of the governed segment.
	Segment string `json:"governedSegmentId"`
	// Position is where the signal stands. Trains stop relative to its projection onto Segment.
	Position layout.Point `json:"position"`
	Aspect   Aspect       `json:"aspect"`
}

func (s Signal) String() string {
	return fmt.Sprintf("signal(%s@%s-%s)", s.ID, s.Segment, s.Aspect)
}

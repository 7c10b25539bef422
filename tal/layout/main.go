package layout

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// Tolerance is the per-axis slack (in layout units) allowed between one segment's end and
// another segment's start for the two to be considered connected.
const Tolerance = 5

// Point is a coordinate on the layout plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// Near reports whether q lies within Tolerance of p on both axes.
func (p Point) Near(q Point) bool {
	return math.Abs(p.X-q.X) < Tolerance && math.Abs(p.Y-q.Y) < Tolerance
}

func (p Point) dist(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

type Kind string

const (
	KindStraight Kind = "straight"
	KindCurve    Kind = "curve"
)

// Route is the side of a junction a segment belongs to.
// The zero value is used for segments not governed by a switch.
type Route string

const (
	RouteNone   Route = ""
	RouteMain   Route = "main"
	RouteBranch Route = "branch"
)

// Other returns the opposite route. RouteNone has no opposite and is returned as is.
func (r Route) Other() Route {
	switch r {
	case RouteMain:
		return RouteBranch
	case RouteBranch:
		return RouteMain
	default:
		return r
	}
}

func (r Route) Valid() bool {
	return r == RouteMain || r == RouteBranch
}

type SegmentID = string

// Segment is a single piece of track. Segments are directed from Start to End.
type Segment struct {
	ID    SegmentID `json:"id"`
	Start Point     `json:"start"`
	End   Point     `json:"end"`
	Kind  Kind      `json:"kind"`
	// ControlPoint is the quadratic Bézier control point. Required for curves.
	ControlPoint *Point `json:"controlPoint,omitempty"`
	// SwitchID is the junction controller this segment is subordinate to, if any.
	SwitchID string `json:"switchId,omitempty"`
	// Route is meaningful only when SwitchID is set.
	Route Route `json:"route,omitempty"`
}

func (s Segment) String() string {
	if s.SwitchID != "" {
		return fmt.Sprintf("%s[%s/%s]", s.ID, s.SwitchID, s.Route)
	}
	return s.ID
}

// Governed reports whether a switch decides whether this segment is traversable.
func (s Segment) Governed() bool { return s.SwitchID != "" }

func (s Segment) check() error {
	if s.ID == "" {
		return errors.New("empty id")
	}
	switch s.Kind {
	case KindStraight:
	case KindCurve:
		if s.ControlPoint == nil {
			return errors.New("curve without control point")
		}
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	if s.Route != RouteNone && !s.Route.Valid() {
		return fmt.Errorf("unknown route %q", s.Route)
	}
	if s.Route != RouteNone && s.SwitchID == "" {
		return fmt.Errorf("route %s without switch", s.Route)
	}
	if s.SwitchID != "" && s.Route == RouteNone {
		return fmt.Errorf("switch %s without route", s.SwitchID)
	}
	return nil
}

// Graph is the static set of segments of a layout.
// Adjacency is derived from endpoint coincidence; a Graph never changes after NewGraph.
type Graph struct {
	segments []Segment
	index    map[SegmentID]int
	outgoing [][]int
}

// NewGraph checks segments and precomputes adjacency.
// The order of segments is kept and is significant for navigation.
func NewGraph(segments []Segment) (*Graph, error) {
	g := &Graph{
		segments: slices.Clone(segments),
		index:    make(map[SegmentID]int, len(segments)),
	}
	for i, s := range g.segments {
		if err := s.check(); err != nil {
			return nil, fmt.Errorf("segment %d (%q): %w", i, s.ID, err)
		}
		if _, ok := g.index[s.ID]; ok {
			return nil, fmt.Errorf("segment %d: duplicate id %q", i, s.ID)
		}
		g.index[s.ID] = i
	}
	g.outgoing = make([][]int, len(g.segments))
	for i, s := range g.segments {
		for j, t := range g.segments {
			if i == j {
				continue
			}
			if s.End.Near(t.Start) {
				g.outgoing[i] = append(g.outgoing[i], j)
			}
		}
	}
	return g, nil
}

// Segment finds a segment by its id.
func (g *Graph) Segment(id SegmentID) (Segment, bool) {
	i, ok := g.index[id]
	if !ok {
		return Segment{}, false
	}
	return g.segments[i], true
}

// MustLookup is Segment but panics if the segment doesn't exist.
// This is for debugging/testing.
func (g *Graph) MustLookup(id SegmentID) Segment {
	s, ok := g.Segment(id)
	if !ok {
		panic(fmt.Sprintf("found nothing when looking up for %s", id))
	}
	return s
}

// Segments returns all segments in layout order.
func (g *Graph) Segments() []Segment {
	return slices.Clone(g.segments)
}

func (g *Graph) Len() int { return len(g.segments) }

// Outgoing returns every other segment whose start is within Tolerance of s's end, in layout order.
// s does not need to be part of g.
func (g *Graph) Outgoing(s Segment) []Segment {
	if i, ok := g.index[s.ID]; ok && g.segments[i] == s {
		res := make([]Segment, len(g.outgoing[i]))
		for k, j := range g.outgoing[i] {
			res[k] = g.segments[j]
		}
		return res
	}
	res := make([]Segment, 0)
	for _, t := range g.segments {
		if t.ID == s.ID {
			continue
		}
		if s.End.Near(t.Start) {
			res = append(res, t)
		}
	}
	return res
}

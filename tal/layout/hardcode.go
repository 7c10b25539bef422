package layout

// DemoSegments returns the segments of the demo layout: a main line from the west, a second
// entry joining it from the south-west, switch SW1 choosing between a straight main track and
// a three-piece bypass rejoining at (600, 200), and switch SW2 choosing between the eastern
// main track and a two-piece branch that drops south-east to y = 300 and runs east.
// Every segment is straight.
func DemoSegments() []Segment {
	straight := func(id string, x0, y0, x1, y1 float64) Segment {
		return Segment{
			ID:    id,
			Start: Point{x0, y0},
			End:   Point{x1, y1},
			Kind:  KindStraight,
		}
	}
	governed := func(s Segment, sw string, r Route) Segment {
		s.SwitchID = sw
		s.Route = r
		return s
	}
	return []Segment{
		straight("track-1", 50, 200, 300, 200),
		straight("track-0-horizontal", 60, 280, 266, 280),
		straight("track-0-diagonal", 266, 280, 300, 200),

		governed(straight("track-2-main", 300, 200, 600, 200), "SW1", RouteMain),
		governed(straight("track-2-branch-1", 300, 200, 450, 150), "SW1", RouteBranch),
		governed(straight("track-2-branch-2", 450, 150, 600, 150), "SW1", RouteBranch),
		governed(straight("track-2-branch-3", 600, 150, 600, 200), "SW1", RouteBranch),

		governed(straight("track-3-main", 600, 200, 800, 200), "SW2", RouteMain),
		governed(straight("track-3-branch-1", 600, 200, 750, 300), "SW2", RouteBranch),
		governed(straight("track-3-branch-2", 750, 300, 950, 300), "SW2", RouteBranch),
	}
}

// InitDemo builds the Graph of the demo layout.
func InitDemo() (*Graph, error) {
	return NewGraph(DemoSegments())
}

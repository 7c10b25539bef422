package layout

import "math"

// curveSamples is the number of chords used to approximate a curve.
const curveSamples = 64

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// PointAt returns the point at parameter t along s.
// Straight segments are interpolated linearly, curves as a quadratic Bézier through ControlPoint.
// t is clamped to [0, 1].
func PointAt(s Segment, t float64) Point {
	t = clamp01(t)
	switch {
	case s.Kind == KindCurve && s.ControlPoint != nil:
		c := *s.ControlPoint
		u := 1 - t
		return Point{
			X: u*u*s.Start.X + 2*u*t*c.X + t*t*s.End.X,
			Y: u*u*s.Start.Y + 2*u*t*c.Y + t*t*s.End.Y,
		}
	case s.Kind == KindStraight:
		return Point{
			X: s.Start.X + (s.End.X-s.Start.X)*t,
			Y: s.Start.Y + (s.End.Y-s.Start.Y)*t,
		}
	default:
		return s.Start
	}
}

// Length returns the length of s along the track.
func Length(s Segment) float64 {
	return ArcLength(s, 0, 1)
}

// ArcLength returns the distance along s between parameters t0 and t1.
// The result is negative if t1 < t0.
func ArcLength(s Segment, t0, t1 float64) float64 {
	t0, t1 = clamp01(t0), clamp01(t1)
	if t1 < t0 {
		return -ArcLength(s, t1, t0)
	}
	if s.Kind != KindCurve {
		return s.Start.dist(s.End) * (t1 - t0)
	}
	n := int(math.Ceil(curveSamples * (t1 - t0)))
	if n < 1 {
		n = 1
	}
	var sum float64
	prev := PointAt(s, t0)
	for i := 1; i <= n; i++ {
		p := PointAt(s, t0+(t1-t0)*float64(i)/float64(n))
		sum += prev.dist(p)
		prev = p
	}
	return sum
}

// Project returns the parameter of the point on s nearest to p.
func Project(s Segment, p Point) float64 {
	if s.Kind != KindCurve {
		dx, dy := s.End.X-s.Start.X, s.End.Y-s.Start.Y
		l2 := dx*dx + dy*dy
		if l2 == 0 {
			return 0
		}
		return clamp01(((p.X-s.Start.X)*dx + (p.Y-s.Start.Y)*dy) / l2)
	}
	best, bestD := 0.0, math.Inf(1)
	for i := 0; i <= curveSamples; i++ {
		t := float64(i) / curveSamples
		if d := PointAt(s, t).dist(p); d < bestD {
			best, bestD = t, d
		}
	}
	// refine within the neighbouring samples
	lo, hi := clamp01(best-1.0/curveSamples), clamp01(best+1.0/curveSamples)
	for i := 0; i < 32; i++ {
		m1 := lo + (hi-lo)/3
		m2 := hi - (hi-lo)/3
		if PointAt(s, m1).dist(p) < PointAt(s, m2).dist(p) {
			hi = m2
		} else {
			lo = m1
		}
	}
	return (lo + hi) / 2
}

// ParamAfter returns the parameter reached by travelling dist along s from t.
// The result is clamped to [0, 1].
func ParamAfter(s Segment, t, dist float64) float64 {
	total := Length(s)
	if total == 0 {
		return clamp01(t)
	}
	if s.Kind != KindCurve {
		return clamp01(t + dist/total)
	}
	// bisect on arc length; ArcLength is monotonic in its upper bound
	lo, hi := clamp01(t), 1.0
	if dist < 0 {
		lo, hi = 0, clamp01(t)
	}
	for i := 0; i < 40; i++ {
		m := (lo + hi) / 2
		if ArcLength(s, t, m) < dist {
			lo = m
		} else {
			hi = m
		}
	}
	return (lo + hi) / 2
}

package tal

import (
	"fmt"

	"nyiyui.ca/hato/senro/tal/layout"
)

// RouteSource tells the resolver which route a switch is set to.
// *Interlock implements it.
type RouteSource interface {
	ActiveRoute(switchID string) (layout.Route, bool)
}

// Rule is the rule that decided a Resolution.
type Rule int

const (
	// RuleEndOfLine: nothing starts where the segment ends.
	RuleEndOfLine Rule = iota
	// RuleOnly: exactly one continuation, switches not consulted.
	RuleOnly
	// RuleSwitch: the first candidate whose route is active on its switch.
	RuleSwitch
	// RuleCommon: no governed candidate is active; the first ungoverned candidate.
	RuleCommon
	// RuleFallback: neither of the above; the first candidate. Only reachable with malformed layouts.
	RuleFallback
)

func (r Rule) String() string {
	switch r {
	case RuleEndOfLine:
		return "end-of-line"
	case RuleOnly:
		return "only"
	case RuleSwitch:
		return "switch"
	case RuleCommon:
		return "common"
	case RuleFallback:
		return "fallback"
	default:
		return fmt.Sprintf("rule%d", int(r))
	}
}

func (r Rule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rule) UnmarshalText(text []byte) error {
	for c := RuleEndOfLine; c <= RuleFallback; c++ {
		if c.String() == string(text) {
			*r = c
			return nil
		}
	}
	return fmt.Errorf("unknown rule %q", text)
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Next  layout.Segment
	Found bool
	Rule  Rule
	// Candidates are all segments that were considered, in layout order.
	Candidates []layout.Segment
}

// Resolve picks the segment a train continues onto after current.
// It only reads y and routes, so equal inputs always give equal results.
func Resolve(current layout.Segment, y *layout.Graph, routes RouteSource) Resolution {
	candidates := y.Outgoing(current)
	switch len(candidates) {
	case 0:
		return Resolution{Rule: RuleEndOfLine, Candidates: candidates}
	case 1:
		return Resolution{Next: candidates[0], Found: true, Rule: RuleOnly, Candidates: candidates}
	}
	for _, c := range candidates {
		if !c.Governed() {
			continue
		}
		active, ok := routes.ActiveRoute(c.SwitchID)
		if !ok {
			continue
		}
		if c.Route == active {
			return Resolution{Next: c, Found: true, Rule: RuleSwitch, Candidates: candidates}
		}
	}
	for _, c := range candidates {
		if !c.Governed() {
			return Resolution{Next: c, Found: true, Rule: RuleCommon, Candidates: candidates}
		}
	}
	return Resolution{Next: candidates[0], Found: true, Rule: RuleFallback, Candidates: candidates}
}

package tal

import (
	"fmt"

	"nyiyui.ca/hato/senro/tal/layout"
)

// Switch is a junction controller. Segments with a matching SwitchID are traversable only while
// their Route equals Active.
type Switch struct {
	ID       string       `json:"id"`
	Position layout.Point `json:"position"`
	Active   layout.Route `json:"activeRoute"`
	// MainSegment and BranchSegment name the first segment of each route.
	// They are for display only; navigation never reads them.
	MainSegment   string `json:"mainSegment,omitempty"`
	BranchSegment string `json:"branchSegment,omitempty"`
}

func (s Switch) String() string {
	return fmt.Sprintf("switch(%s-%s)", s.ID, s.Active)
}

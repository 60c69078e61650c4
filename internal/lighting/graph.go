package lighting

import (
	"fmt"
	"sort"
	"strings"
)

type edge struct {
	from, to State
	label    string
}

// Graph renders the controller's reachable transitions in Graphviz DOT
// format. Edges are derived from Transition under every guard combination
// this controller can observe.
func (c *Controller) Graph() string {
	s := c.settings
	states := []State{StateIdle, StateDisabled, StateActiveTimer, StateActiveStayOn}
	triggers := []Trigger{
		TriggerDisable, TriggerEnable, TriggerSensorOn,
		TriggerSensorOff, TriggerSensorOffDuration, TriggerTimerExpires,
	}

	seen := make(map[edge]bool)
	for _, from := range states {
		for _, trig := range triggers {
			for mask := 0; mask < 8; mask++ {
				g := Guards{
					StayOn:          s.StayOn,
					SensorType:      s.SensorType,
					TimerExpired:    mask&1 != 0,
					SensorOn:        mask&2 != 0,
					StateEntitiesOn: mask&4 != 0,
				}
				st := Transition(from, trig, g)
				switch {
				case st.Changed:
					seen[edge{from, st.To, trig.String()}] = true
				case st.ResetTimer:
					seen[edge{from, from, trig.String() + " / reset timer"}] = true
				}
			}
		}
	}

	edges := make([]edge, 0, len(seen))
	for e := range seen {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		if edges[i].to != edges[j].to {
			return edges[i].to < edges[j].to
		}
		return edges[i].label < edges[j].label
	})

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", s.Name)
	b.WriteString("  rankdir=LR;\n")
	fmt.Fprintf(&b, "  %q [shape=doublecircle];\n", StateIdle.String())
	b.WriteString("  subgraph cluster_active {\n    label=\"active\";\n")
	fmt.Fprintf(&b, "    %q;\n    %q;\n  }\n", StateActiveTimer.String(), StateActiveStayOn.String())
	for _, e := range edges {
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", e.from.String(), e.to.String(), e.label)
	}
	b.WriteString("}\n")
	return b.String()
}

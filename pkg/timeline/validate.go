package timeline

import (
	"fmt"
	"sort"

	"github.com/autotap/autotap/pkg/touch"
)

// Warning points at an action that breaks the pointer slot lifecycle
// (down, then any number of moves, then up).
type Warning struct {
	Group     int
	InstantMS int64
	Action    touch.Action
	Problem   string
}

func (w Warning) String() string {
	return fmt.Sprintf("group %d at %dms: %s: %s", w.Group, w.InstantMS, w.Action, w.Problem)
}

// Validate reports slot lifecycle violations. The producer owns slot
// allocation, so these are advisory; playback proceeds regardless.
func (t *Timeline) Validate() []Warning {
	var warnings []Warning
	held := make(map[int]bool)
	for i, g := range t.groups {
		for _, a := range g.Actions {
			add := func(problem string) {
				warnings = append(warnings, Warning{Group: i, InstantMS: g.InstantMS, Action: a, Problem: problem})
			}
			if a.Pointer < 0 {
				add("negative pointer slot")
				continue
			}
			switch a.Kind {
			case touch.Down:
				if held[a.Pointer] {
					add("slot reused before up")
				}
				held[a.Pointer] = true
			case touch.Move:
				if !held[a.Pointer] {
					add("move on a released slot")
				}
			case touch.Up:
				if !held[a.Pointer] {
					add("up on a released slot")
				}
				delete(held, a.Pointer)
			default:
				add("unknown kind")
			}
		}
	}
	if len(held) > 0 && len(t.groups) > 0 {
		last := len(t.groups) - 1
		slots := make([]int, 0, len(held))
		for slot := range held {
			slots = append(slots, slot)
		}
		sort.Ints(slots)
		for _, slot := range slots {
			warnings = append(warnings, Warning{
				Group:     last,
				InstantMS: t.groups[last].InstantMS,
				Action:    touch.Action{Pointer: slot, Kind: touch.Up},
				Problem:   "slot still down at end of timeline",
			})
		}
	}
	return warnings
}

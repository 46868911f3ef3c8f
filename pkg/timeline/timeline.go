// Package timeline holds the resolved touch-event timeline consumed by the
// playback scheduler: groups of touch actions keyed by the millisecond
// instant, relative to chart start, at which they must be delivered.
//
// A Timeline is immutable once built. It is read through a Cursor that only
// moves forward; replaying a chart means building a new Cursor for a new
// session.
package timeline

import (
	"errors"
	"fmt"

	"github.com/autotap/autotap/pkg/touch"
)

var (
	ErrUnordered    = errors.New("timeline: group instants must be non-decreasing")
	ErrEmptyActions = errors.New("timeline: group has no actions")
	ErrMissingField = errors.New("timeline: missing required field")
)

// ScheduledGroup is a set of actions delivered together, in order, once the
// playhead reaches InstantMS.
type ScheduledGroup struct {
	InstantMS int64
	Actions   []touch.Action
}

// Timeline is an ordered, immutable sequence of groups.
type Timeline struct {
	meta   Meta
	groups []ScheduledGroup
}

// New copies groups into a Timeline after checking ordering. An empty
// group list is valid and yields a timeline that finishes immediately.
func New(meta Meta, groups []ScheduledGroup) (*Timeline, error) {
	out := make([]ScheduledGroup, len(groups))
	for i, g := range groups {
		if len(g.Actions) == 0 {
			return nil, fmt.Errorf("group %d at %dms: %w", i, g.InstantMS, ErrEmptyActions)
		}
		if i > 0 && g.InstantMS < groups[i-1].InstantMS {
			return nil, fmt.Errorf("group %d at %dms after %dms: %w",
				i, g.InstantMS, groups[i-1].InstantMS, ErrUnordered)
		}
		actions := make([]touch.Action, len(g.Actions))
		copy(actions, g.Actions)
		out[i] = ScheduledGroup{InstantMS: g.InstantMS, Actions: actions}
	}
	return &Timeline{meta: meta, groups: out}, nil
}

// Meta returns the descriptive metadata of the timeline.
func (t *Timeline) Meta() Meta {
	return t.meta
}

// Len returns the number of groups.
func (t *Timeline) Len() int {
	return len(t.groups)
}

// Groups returns a copy of the groups, for transformation into a new
// Timeline. The playback path uses Cursor instead.
func (t *Timeline) Groups() []ScheduledGroup {
	out := make([]ScheduledGroup, len(t.groups))
	for i, g := range t.groups {
		actions := make([]touch.Action, len(g.Actions))
		copy(actions, g.Actions)
		out[i] = ScheduledGroup{InstantMS: g.InstantMS, Actions: actions}
	}
	return out
}

// Cursor returns a fresh forward-only cursor positioned on the first group.
func (t *Timeline) Cursor() *Cursor {
	return &Cursor{groups: t.groups}
}

// Summary describes the shape of a timeline.
type Summary struct {
	Groups     int
	Actions    int
	FirstMS    int64
	LastMS     int64
	MaxPointer int
}

// Summarize walks the timeline once.
func (t *Timeline) Summarize() Summary {
	s := Summary{Groups: len(t.groups), MaxPointer: -1}
	for i, g := range t.groups {
		if i == 0 {
			s.FirstMS = g.InstantMS
		}
		s.LastMS = g.InstantMS
		s.Actions += len(g.Actions)
		for _, a := range g.Actions {
			if a.Pointer > s.MaxPointer {
				s.MaxPointer = a.Pointer
			}
		}
	}
	return s
}

// Cursor walks a Timeline from front to back. It is not safe for concurrent
// use; the scheduler goroutine owns it.
type Cursor struct {
	groups []ScheduledGroup
	pos    int
}

// Done reports whether every group has been consumed.
func (c *Cursor) Done() bool {
	return c.pos >= len(c.groups)
}

// Current returns the group under the cursor. It panics when Done.
func (c *Cursor) Current() *ScheduledGroup {
	return &c.groups[c.pos]
}

// Advance moves to the next group and reports whether one remains.
func (c *Cursor) Advance() bool {
	if c.pos < len(c.groups) {
		c.pos++
	}
	return c.pos < len(c.groups)
}

// Position is the index of the current group, equal to the number of
// groups already consumed.
func (c *Cursor) Position() int {
	return c.pos
}


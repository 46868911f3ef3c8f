package script

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/autotap/autotap/pkg/timeline"
)

func (s *Script) groupValue(g timeline.ScheduledGroup) goja.Value {
	actions := make([]any, len(g.Actions))
	for i, a := range g.Actions {
		o := s.vm.NewObject()
		_ = o.Set("p", a.Pointer)
		_ = o.Set("x", a.Position.X)
		_ = o.Set("y", a.Position.Y)
		_ = o.Set("k", a.Kind.String())
		actions[i] = o
	}
	o := s.vm.NewObject()
	_ = o.Set("t", g.InstantMS)
	_ = o.Set("actions", s.vm.NewArray(actions...))
	return o
}

func parseGroup(v goja.Value) (timeline.ScheduledGroup, error) {
	b, err := json.Marshal(v.Export())
	if err != nil {
		return timeline.ScheduledGroup{}, err
	}
	return timeline.DecodeGroup(b)
}

// Apply runs transform over every group of tl and returns the resulting
// timeline, validated like a decoded one.
func (s *Script) Apply(tl *timeline.Timeline) (*timeline.Timeline, Stats, error) {
	var st Stats
	groups := tl.Groups()
	out := make([]timeline.ScheduledGroup, 0, len(groups))
	for i, g := range groups {
		v, err := s.transform(goja.Undefined(), s.groupValue(g), s.vm.ToValue(i))
		if err != nil {
			return nil, st, fmt.Errorf("transform group %d at %dms: %w", i, g.InstantMS, err)
		}
		switch {
		case goja.IsUndefined(v):
			st.Kept++
			out = append(out, g)
		case goja.IsNull(v):
			st.Dropped++
		default:
			ng, err := parseGroup(v)
			if err != nil {
				return nil, st, fmt.Errorf("%w at index %d: %w", ErrInvalidGroup, i, err)
			}
			st.Replaced++
			out = append(out, ng)
		}
	}
	s.log.Debug("kept %d, dropped %d, replaced %d groups", st.Kept, st.Dropped, st.Replaced)
	res, err := timeline.New(tl.Meta(), out)
	if err != nil {
		return nil, st, fmt.Errorf("transformed timeline: %w", err)
	}
	return res, st, nil
}

package timeline

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/autotap/autotap/pkg/touch"
)

// Meta carries descriptive fields of a timeline file. None of them affect
// playback except EarliestInstantMS, which is one source of the baseline.
type Meta struct {
	Source            string    `json:"source,omitempty"`
	Generator         string    `json:"generator,omitempty"`
	Created           time.Time `json:"created,omitzero"`
	EarliestInstantMS *int64    `json:"earliest_instant_ms,omitempty"`
}

// Baseline returns the earliest instant recorded in the metadata, if any.
func (m Meta) Baseline() Baseline {
	if m.EarliestInstantMS == nil {
		return Baseline{}
	}
	return Baseline{EarliestMS: *m.EarliestInstantMS, Valid: true}
}

type document struct {
	Meta   Meta         `json:"meta"`
	Groups []groupEntry `json:"groups"`
}

// Entry fields are pointers so a field left out of the document is told
// apart from a zero value.
type groupEntry struct {
	T       *int64        `json:"t"`
	Actions []actionEntry `json:"actions"`
}

type actionEntry struct {
	P *int        `json:"p"`
	X *int        `json:"x"`
	Y *int        `json:"y"`
	K *touch.Kind `json:"k"`
}

func (g groupEntry) group() (ScheduledGroup, error) {
	if g.T == nil {
		return ScheduledGroup{}, fmt.Errorf("%w %q", ErrMissingField, "t")
	}
	actions := make([]touch.Action, len(g.Actions))
	for j, a := range g.Actions {
		var missing string
		switch {
		case a.P == nil:
			missing = "p"
		case a.X == nil:
			missing = "x"
		case a.Y == nil:
			missing = "y"
		case a.K == nil:
			missing = "k"
		}
		if missing != "" {
			return ScheduledGroup{}, fmt.Errorf("action %d: %w %q", j, ErrMissingField, missing)
		}
		actions[j] = touch.Action{
			Pointer:  *a.P,
			Position: touch.Point{X: *a.X, Y: *a.Y},
			Kind:     *a.K,
		}
	}
	return ScheduledGroup{InstantMS: *g.T, Actions: actions}, nil
}

func entryOf(g ScheduledGroup) groupEntry {
	e := groupEntry{T: &g.InstantMS, Actions: make([]actionEntry, len(g.Actions))}
	for j := range g.Actions {
		a := &g.Actions[j]
		e.Actions[j] = actionEntry{P: &a.Pointer, X: &a.Position.X, Y: &a.Position.Y, K: &a.Kind}
	}
	return e
}

// Decode reads a timeline document from r.
func Decode(r io.Reader) (*Timeline, error) {
	var doc document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	groups := make([]ScheduledGroup, len(doc.Groups))
	for i, e := range doc.Groups {
		g, err := e.group()
		if err != nil {
			return nil, fmt.Errorf("decode timeline: group %d: %w", i, err)
		}
		groups[i] = g
	}
	return New(doc.Meta, groups)
}

// DecodeGroup reads one group object, {"t": ms, "actions": [...]}, with the
// same field rules as Decode. Ordering is not checked.
func DecodeGroup(b []byte) (ScheduledGroup, error) {
	var e groupEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return ScheduledGroup{}, err
	}
	return e.group()
}

// Load opens path on fs and decodes it.
func Load(fs afero.Fs, path string) (*Timeline, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tl, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tl, nil
}

// Encode writes the timeline as an indented JSON document.
func (t *Timeline) Encode(w io.Writer) error {
	doc := document{Meta: t.meta, Groups: make([]groupEntry, len(t.groups))}
	for i, g := range t.groups {
		doc.Groups[i] = entryOf(g)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Baseline is the earliest chart instant the session clock is aligned to.
// The zero value is invalid.
type Baseline struct {
	EarliestMS int64
	Valid      bool
}

// BaselineAt is a valid baseline at ms.
func BaselineAt(ms int64) Baseline {
	return Baseline{EarliestMS: ms, Valid: true}
}

// Delay is BaseDelay(EarliestMS).
func (b Baseline) Delay() time.Duration {
	return BaseDelay(b.EarliestMS)
}

// BaseDelay shifts the session clock so that the first note lands at
// elapsed zero: a chart starting at 1200ms gets -1.2s.
func BaseDelay(earliestMS int64) time.Duration {
	return -time.Duration(earliestMS) * time.Millisecond
}

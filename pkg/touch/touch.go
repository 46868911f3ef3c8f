// Package touch defines the primitives shared by timelines and device
// transports: pointer actions, their kinds and device pixel positions.
package touch

import (
	"fmt"
	"strings"
)

// Kind is the phase of a single pointer primitive.
type Kind int

const (
	Down Kind = iota
	Move
	Up
)

func (k Kind) String() string {
	switch k {
	case Down:
		return "down"
	case Move:
		return "move"
	case Up:
		return "up"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the textual form used in timeline files ("down",
// "move", "up"), case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "down", "d":
		return Down, nil
	case "move", "m":
		return Move, nil
	case "up", "u":
		return Up, nil
	}
	return 0, fmt.Errorf("unknown touch kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case Down, Move, Up:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown touch kind %d", int(k))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Point is a device pixel coordinate.
type Point struct {
	X int
	Y int
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Action is one primitive for one pointer slot.
type Action struct {
	Pointer  int
	Position Point
	Kind     Kind
}

func (a Action) String() string {
	return fmt.Sprintf("%s@%s/slot%d", a.Kind, a.Position, a.Pointer)
}

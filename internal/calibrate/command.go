package calibrate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Command is one calibration step.
type Command int

const (
	Advance Command = iota + 1
	Retreat
	Reset
)

// ErrUnknownCommand is returned by ParseCommand for anything other than
// "+", "-" or "0".
var ErrUnknownCommand = errors.New("unknown calibration command")

// Help lists the accepted commands.
const Help = "calibration commands: + (earlier), - (later), 0 (reset)"

func (c Command) String() string {
	switch c {
	case Advance:
		return "advance"
	case Retreat:
		return "retreat"
	case Reset:
		return "reset"
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// ParseCommand trims and lower-cases line before matching it.
func ParseCommand(line string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "+":
		return Advance, nil
	case "-":
		return Retreat, nil
	case "0":
		return Reset, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownCommand, strings.TrimSpace(line))
}

// Apply performs c on o and returns the new value.
func (c Command) Apply(o *Offset, step time.Duration) time.Duration {
	switch c {
	case Advance:
		return o.Advance(step)
	case Retreat:
		return o.Retreat(step)
	case Reset:
		return o.Reset()
	}
	return o.Load()
}

// Describe renders the operator echo for an applied command, e.g.
// "advanced 10ms, offset 0.010s".
func Describe(c Command, step, offset time.Duration) string {
	switch c {
	case Advance:
		return fmt.Sprintf("advanced %s, offset %.3fs", step, offset.Seconds())
	case Retreat:
		return fmt.Sprintf("retreated %s, offset %.3fs", step, offset.Seconds())
	}
	return fmt.Sprintf("offset reset, offset %.3fs", offset.Seconds())
}

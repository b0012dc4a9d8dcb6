// Package uictl describes the small read/write controls a TUI uses to drive
// hardware it does not own, such as a recorder.
package uictl

import "golang.org/x/exp/constraints"

// Number is any value a dial can report.
type Number interface {
	constraints.Integer | constraints.Float
}

// Knob is an on/off control. For a recorder, on means capturing.
type Knob interface {
	Read() bool
	On()
	Off()
	Toggle()
}

// Dial reads a single value.
type Dial[N Number] interface {
	Read() N
}

// CappedDial is a Dial with an upper bound. A zero cap means unbounded.
type CappedDial[N Number] interface {
	Dial[N]
	Cap() (num, max N)
}

// Levels reads a window of recent samples.
type Levels[N Number] interface {
	Read() []N
}

// Package gesture turns continuous drag input on a candidate card into a
// single discrete decision. It is pure input interpretation: no I/O, no
// failure modes, only a commit or a snap-back.
package gesture

import (
	"github.com/heartmatch/core/internal/db"
)

// DefaultThreshold is the horizontal displacement (in screen units) a drag
// must exceed for release to commit a decision.
const DefaultThreshold = 100.0

// State of one card's interpreter.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateCommitted
)

// Affordance is the live indicator shown while dragging.
type Affordance int

const (
	AffordanceNone Affordance = iota
	AffordanceLike
	AffordancePass
)

// Interpreter is a one-shot state machine for a single presented card.
//
// Idle --pointerDown--> Dragging --pointerUp--> Committed | Idle (snap-back).
// A button press commits directly from Idle. After a commit the card is gone
// from the stack: every further input is ignored.
type Interpreter struct {
	threshold float64
	state     State

	startX, startY float64
	dx, dy         float64

	onCommit func(db.DecisionKind)
	onReset  func()
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithThreshold overrides the commit threshold.
func WithThreshold(t float64) Option {
	return func(i *Interpreter) { i.threshold = t }
}

// New builds an interpreter for one card. onCommit fires exactly once, at the
// moment the drag (or a button) resolves into a decision; onReset fires on
// every snap-back. Either callback may be nil.
func New(onCommit func(db.DecisionKind), onReset func(), opts ...Option) *Interpreter {
	i := &Interpreter{
		threshold: DefaultThreshold,
		state:     StateIdle,
		onCommit:  onCommit,
		onReset:   onReset,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// State returns the current machine state.
func (i *Interpreter) State() State { return i.state }

// Displacement returns the live drag vector relative to the start position.
func (i *Interpreter) Displacement() (dx, dy float64) { return i.dx, i.dy }

// Affordance reports the live like/pass indicator for the current drag.
// The indicator lights up at half the commit threshold so the user sees where
// a release would land before it is binding.
func (i *Interpreter) Affordance() Affordance {
	if i.state != StateDragging {
		return AffordanceNone
	}
	switch {
	case i.dx > i.threshold/2:
		return AffordanceLike
	case i.dx < -i.threshold/2:
		return AffordancePass
	}
	return AffordanceNone
}

// PointerDown starts a drag, recording the start position.
func (i *Interpreter) PointerDown(x, y float64) {
	if i.state != StateIdle {
		return
	}
	i.state = StateDragging
	i.startX, i.startY = x, y
	i.dx, i.dy = 0, 0
}

// PointerMove updates the displacement vector while dragging.
func (i *Interpreter) PointerMove(x, y float64) {
	if i.state != StateDragging {
		return
	}
	i.dx = x - i.startX
	i.dy = y - i.startY
}

// PointerUp resolves the drag: past the threshold the sign of dx selects
// like or pass and the interpreter commits; inside it the card snaps back to
// Idle with the displacement zeroed.
func (i *Interpreter) PointerUp() {
	if i.state != StateDragging {
		return
	}

	dx := i.dx
	switch {
	case dx > i.threshold:
		i.commit(db.KindLike)
	case dx < -i.threshold:
		i.commit(db.KindPass)
	default:
		i.state = StateIdle
		i.dx, i.dy = 0, 0
		if i.onReset != nil {
			i.onReset()
		}
	}
}

// Press commits directly via a discrete control (button/key), bypassing the
// drag. Only valid from Idle; a press mid-drag or after a commit is ignored,
// as is an unknown kind.
func (i *Interpreter) Press(kind db.DecisionKind) {
	if i.state != StateIdle || !kind.Valid() {
		return
	}
	i.commit(kind)
}

func (i *Interpreter) commit(kind db.DecisionKind) {
	i.state = StateCommitted
	if i.onCommit != nil {
		i.onCommit(kind)
	}
}

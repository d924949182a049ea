package main

import (
	"strconv"

	"github.com/krustylabs/krusty-host/gcode"
	"github.com/krustylabs/krusty-host/mathx"
	"github.com/krustylabs/krusty-host/planner"
)

// moveAssembler reassembles the word-level token stream
// MacroExpander.ExpandAndParse produces (one Command per letter+value
// pair) back into whole moves: a new G word starts a move, and each
// following X/Y/Z/E/F word sets one of its axes or its feedrate,
// matching the convention that a G-code line opens with exactly one
// motion word followed by its parameters.
type moveAssembler struct {
	pos      mathx.Position // last-known target, carried into the next move as the base
	pending  *pendingMove
}

type pendingMove struct {
	code     string
	target   mathx.Position
	feedrate float64
}

func newMoveAssembler(start mathx.Position) *moveAssembler {
	return &moveAssembler{pos: start}
}

// Feed consumes one token from the job stream. It returns a completed
// move (ok=true) whenever a new G word displaces a prior in-progress
// one; the final move of a batch only surfaces once Flush is called.
func (a *moveAssembler) Feed(cmd gcode.OwnedCommand) (target mathx.Position, feedrate float64, kind planner.MotionType, ok bool) {
	c := gcode.Command(cmd)
	if c.Kind == gcode.KindChecksum && c.Inner != nil {
		c = *c.Inner
	}
	if c.Kind != gcode.KindWord {
		return target, feedrate, kind, false
	}

	switch c.Letter {
	case 'G', 'g':
		var flushed *pendingMove
		if a.pending != nil {
			flushed = a.pending
		}
		a.pending = &pendingMove{code: c.Value, target: a.pos, feedrate: 0}
		if flushed == nil {
			return target, feedrate, kind, false
		}
		return a.resolve(flushed)
	case 'X', 'x', 'Y', 'y', 'Z', 'z', 'E', 'e', 'F', 'f':
		if a.pending == nil {
			return target, feedrate, kind, false
		}
		v, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return target, feedrate, kind, false
		}
		switch c.Letter {
		case 'X', 'x':
			a.pending.target[0] = v
		case 'Y', 'y':
			a.pending.target[1] = v
		case 'Z', 'z':
			a.pending.target[2] = v
		case 'E', 'e':
			a.pending.target[3] = v
		case 'F', 'f':
			a.pending.feedrate = v
		}
		return target, feedrate, kind, false
	default:
		return target, feedrate, kind, false
	}
}

// Flush surfaces the in-progress move, if any, and clears it. Callers
// invoke this once a stream is known to have ended (the job queue
// drained) so the final line of a file isn't lost waiting for a G word
// that will never arrive.
func (a *moveAssembler) Flush() (target mathx.Position, feedrate float64, kind planner.MotionType, ok bool) {
	if a.pending == nil {
		return target, feedrate, kind, false
	}
	p := a.pending
	a.pending = nil
	return a.resolve(p)
}

func (a *moveAssembler) resolve(p *pendingMove) (mathx.Position, float64, planner.MotionType, bool) {
	kind := planner.Print
	feedrate := p.feedrate
	switch p.code {
	case "28":
		kind = planner.Home
		p.target = mathx.Position{0, 0, 0, a.pos[3]}
		if feedrate <= 0 {
			feedrate = 50
		}
	case "0", "1":
		if feedrate <= 0 {
			feedrate = 100
		}
	default:
		a.pos = p.target
		return p.target, 0, kind, false
	}
	a.pos = p.target
	return p.target, feedrate, kind, true
}

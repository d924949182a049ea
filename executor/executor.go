// Package executor implements the tick-driven traversal of a
// planner's segment queue: accumulating elapsed time against each
// segment's duration, linearly interpolating the commanded position,
// shaping it per axis, and converting it to motor coordinates via a
// pluggable kinematics model.
package executor

import (
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/krustylabs/krusty-host/kerrors"
	"github.com/krustylabs/krusty-host/kinematics"
	"github.com/krustylabs/krusty-host/mathx"
	"github.com/krustylabs/krusty-host/planner"
	"github.com/krustylabs/krusty-host/shaper"
)

// Sink receives every computed motor-coordinate position. mcu.Link
// satisfies it by framing and sending the position as a G-code move;
// the actual pulse/frame wire format stays out of scope (§6), so Sink
// only ever sees the post-kinematics value this package already
// computes.
type Sink interface {
	SendCommand(text string) error
}

// active tracks the in-flight segment and how far execution has
// progressed through it.
type active struct {
	seg         *planner.Segment
	origin      mathx.Position
	segmentTime float64
	lastTick    time.Time
	haveLast    bool
}

// Executor drives one planner's queue at a fixed tick cadence,
// producing shaped motor positions. It is not safe for concurrent use
// without an external mutex; the concurrency model assigns the
// executor exclusive ownership of its planner for the duration of
// Update.
type Executor struct {
	plan    *planner.Planner
	model   kinematics.Model
	bank    shaper.Bank
	cur     active
	motors  mathx.Position
	sink    Sink
	limiter *rate.Limiter
}

// New returns an executor driving plan through model, with a fresh
// identity shaper bank and a tick limiter capped at 1kHz, the
// nominal stepper-update rate; ticks arriving faster than that are
// dropped rather than queued, matching the ticker-based "missed
// ticks are skipped" concurrency model. A small burst allowance
// absorbs scheduler jitter between same-rate callers and the limiter
// without dropping legitimate on-cadence ticks.
func New(plan *planner.Planner, model kinematics.Model) *Executor {
	return &Executor{
		plan:    plan,
		model:   model,
		bank:    shaper.NewBank(),
		limiter: rate.NewLimiter(rate.Limit(1000), 4),
	}
}

// SetShaperBank installs bank as the executor's per-axis shaper bank.
func (e *Executor) SetShaperBank(bank shaper.Bank) { e.bank = bank }

// SetSink installs sink as the destination for every post-kinematics
// motor position the executor computes; nil (the default) disables
// forwarding entirely, which is fine for simulation-only callers.
func (e *Executor) SetSink(sink Sink) { e.sink = sink }

// SetTickRate overrides the default 1kHz tick limiter, e.g. to match
// a slower MCU link during integration testing.
func (e *Executor) SetTickRate(hz float64) {
	e.limiter = rate.NewLimiter(rate.Limit(hz), 4)
}

// CurrentMotors returns the last computed motor-coordinate position.
func (e *Executor) CurrentMotors() mathx.Position { return e.motors }

// Update runs one execution tick at instant now, per §4.5.5: pop the
// next segment if idle, accumulate elapsed time, snap to target on
// completion, otherwise interpolate and push through the shaper bank
// and kinematics model.
func (e *Executor) Update(now time.Time) error {
	switch e.plan.QueueState() {
	case planner.Paused:
		return nil
	case planner.Cancelled:
		e.cur = active{}
		return nil
	case planner.Idle:
		return nil
	}

	if !e.limiter.AllowN(now, 1) {
		return nil
	}

	if e.cur.seg == nil {
		seg, ok := e.plan.PopHead()
		if !ok {
			return nil
		}
		origin := e.originFor(seg)
		e.cur = active{seg: seg, origin: origin, lastTick: now, haveLast: true}
	}

	var dt float64
	if e.cur.haveLast {
		dt = now.Sub(e.cur.lastTick).Seconds()
	}
	e.cur.lastTick = now
	e.cur.haveLast = true
	e.cur.segmentTime += dt

	seg := e.cur.seg
	var commanded mathx.Position
	if e.cur.segmentTime >= seg.Duration {
		commanded = seg.Target
		e.cur = active{}
	} else {
		frac := 0.0
		if seg.Duration > 0 {
			frac = e.cur.segmentTime / seg.Duration
		}
		commanded = mathx.Lerp(e.cur.origin, seg.Target, frac)
	}

	return e.step(commanded)
}

// originFor returns the starting position of a newly popped segment:
// target minus distance*unit, which equals the position the previous
// segment left current_position at.
func (e *Executor) originFor(seg *planner.Segment) mathx.Position {
	return seg.Target.Sub(seg.Unit.Scale(seg.Distance))
}

// step implements §4.6: shape the commanded position per axis, then
// convert to motor coordinates.
func (e *Executor) step(commanded mathx.Position) error {
	var in [shaper.NumAxes]float64
	for i := range commanded {
		in[i] = commanded[i]
	}
	shaped := e.bank.Push(in)
	var shapedPos mathx.Position
	for i := range shaped {
		shapedPos[i] = shaped[i]
	}
	if !e.model.IsValidPosition(shapedPos) {
		return kerrors.NewMotionError(kerrors.Kinematics, "shaped position %v out of axis limits", shapedPos)
	}
	motors, err := e.model.CartesianToMotors(shapedPos)
	if err != nil {
		return err
	}
	e.motors = motors

	if e.sink != nil {
		text := mathx.FormatMoveCommand(motors)
		if err := e.sink.SendCommand(text); err != nil {
			log.Printf("executor: sink rejected motor command %q: %v", text, err)
		}
	}
	return nil
}

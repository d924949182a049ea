// Package planner converts admitted moves into a depth-bounded,
// lookahead-optimized queue of motion segments: junction-deviation
// cornering and forward/backward replan passes adjust entry/exit
// speeds before a segment is released to the executor.
package planner

import (
	"math"

	"github.com/krustylabs/krusty-host/kerrors"
	"github.com/krustylabs/krusty-host/mathx"
)

// MotionType tags what kind of move a segment represents.
type MotionType int

const (
	Print MotionType = iota
	Travel
	Home
	Extruder
)

func (m MotionType) String() string {
	switch m {
	case Print:
		return "print"
	case Travel:
		return "travel"
	case Home:
		return "home"
	case Extruder:
		return "extruder"
	default:
		return "unknown"
	}
}

// Segment is one planned move. EntrySpeed/ExitSpeed are mutated by
// replan until the segment is popped for execution, after which
// callers must treat it as immutable.
type Segment struct {
	Target         mathx.Position
	Unit           mathx.Position
	RequestedFeed  float64
	LimitedFeed    float64
	Distance       float64
	Duration       float64
	Acceleration   float64
	EntrySpeed     float64
	ExitSpeed      float64
	MotionType     MotionType
}

// Config holds the per-axis limits and planner-wide tunables §3 names
// as "motion configuration".
type Config struct {
	MaxVelocity         mathx.Position
	MaxAcceleration     mathx.Position
	MaxJerk             mathx.Position
	JunctionDeviation   float64
	MinimumStepDistance float64
	LookaheadBufferSize int
}

// QueueState is the planner's externally visible run state.
type QueueState int

const (
	Idle QueueState = iota
	Running
	Paused
	Cancelled
)

func (s QueueState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Planner owns the lookahead queue and the snapshot of the last
// admitted position. It is intended to be owned by a single task via
// an exclusive mutex held by the caller (the executor), per the
// concurrency model; Planner itself performs no locking.
type Planner struct {
	cfg          Config
	queue        []*Segment
	currentPos   mathx.Position
	queueState   QueueState
	lastUnit     mathx.Position
	haveLastUnit bool
}

// New constructs a Planner at the given starting position, in the
// Idle state. cfg is used as given; New performs no validation.
func New(cfg Config, start mathx.Position) *Planner {
	return &Planner{cfg: cfg, currentPos: start, queueState: Idle}
}

// Len returns the current queue length.
func (p *Planner) Len() int { return len(p.queue) }

// QueueState reports the planner's run state.
func (p *Planner) QueueState() QueueState { return p.queueState }

// CurrentPosition returns the planner's snapshot of the last admitted
// target position (not the executor's interpolated position).
func (p *Planner) CurrentPosition() mathx.Position { return p.currentPos }

// PlanMove admits one move: §4.5.2 of the motion-planning algorithm.
func (p *Planner) PlanMove(target mathx.Position, feedrate float64, kind MotionType) error {
	distance := mathx.Distance(p.currentPos, target)
	if distance < p.cfg.MinimumStepDistance {
		return nil // ignored silently, per spec
	}
	unit, _ := mathx.UnitVector(p.currentPos, target)

	aProject := math.Inf(1)
	for i := 0; i < mathx.NumAxes; i++ {
		if math.Abs(unit[i]) > 0 {
			v := p.cfg.MaxAcceleration[i] / math.Abs(unit[i])
			if v < aProject {
				aProject = v
			}
		}
	}
	if math.IsInf(aProject, 1) {
		aProject = 0
	}

	limited := math.Min(feedrate, math.Sqrt(2*aProject*distance))
	if limited < 0.1 {
		limited = 0.1
	}

	var accel float64
	for i := 0; i < mathx.NumAxes; i++ {
		accel += math.Abs(unit[i]) * p.cfg.MaxAcceleration[i]
	}

	entrySpeed := 0.0
	if n := len(p.queue); n > 0 {
		entrySpeed = p.queue[n-1].ExitSpeed
	}
	exitSpeed := limited

	duration := distance / math.Max(limited, 0.1)

	seg := &Segment{
		Target:        target,
		Unit:          unit,
		RequestedFeed: feedrate,
		LimitedFeed:   limited,
		Distance:      distance,
		Duration:      duration,
		Acceleration:  accel,
		EntrySpeed:    entrySpeed,
		ExitSpeed:     exitSpeed,
		MotionType:    kind,
	}

	if len(p.queue) >= p.cfg.LookaheadBufferSize {
		return kerrors.NewMotionError(kerrors.Other, "lookahead queue full (%d)", p.cfg.LookaheadBufferSize)
	}
	p.queue = append(p.queue, seg)
	p.currentPos = target

	if len(p.queue) >= p.cfg.LookaheadBufferSize/2 {
		p.Replan()
	}
	return nil
}

// PlanHome is plan_move to [0,0,0,e_current] at 50 mm/s with MotionType Home.
func (p *Planner) PlanHome() error {
	target := mathx.Position{0, 0, 0, p.currentPos[3]}
	return p.PlanMove(target, 50, Home)
}

// junctionSpeed implements the junction-deviation cornering formula of §4.5.3.
func junctionSpeed(a, delta, theta float64) float64 {
	halfSin := math.Sin(theta / 2)
	if halfSin >= 1 {
		return math.Inf(1)
	}
	num := a * delta * halfSin
	denom := 1 - halfSin
	if denom <= 0 || num < 0 {
		return 0
	}
	return math.Sqrt(num / denom)
}

// Replan runs the forward and backward passes over the drained queue
// in place, then recomputes each segment's trapezoidal duration.
func (p *Planner) Replan() {
	p.forwardPass()
	p.backwardPass()
	p.recomputeDurations()
}

// forwardPass carries the outgoing unit vector of the last segment
// processed by a prior replan (if any) as the "previous" direction for
// the new head of queue, so a junction penalty still applies across a
// replan boundary rather than only within a single drained batch.
func (p *Planner) forwardPass() {
	prevUnit := p.lastUnit
	havePrev := p.haveLastUnit
	for _, seg := range p.queue {
		if havePrev {
			theta := mathx.AngleBetween(prevUnit, seg.Unit)
			vj := junctionSpeed(seg.Acceleration, p.cfg.JunctionDeviation, theta)
			if vj < seg.EntrySpeed {
				seg.EntrySpeed = vj
			}
		}
		vExitMax := math.Sqrt(seg.EntrySpeed*seg.EntrySpeed + 2*seg.Acceleration*seg.Distance)
		seg.ExitSpeed = math.Min(seg.LimitedFeed, vExitMax)
		prevUnit = seg.Unit
		havePrev = true
	}
	if len(p.queue) > 0 {
		p.lastUnit = p.queue[len(p.queue)-1].Unit
		p.haveLastUnit = true
	}
}

func (p *Planner) backwardPass() {
	nextEntry := 0.0
	for i := len(p.queue) - 1; i >= 0; i-- {
		seg := p.queue[i]
		effectiveExit := nextEntry
		if i == len(p.queue)-1 {
			effectiveExit = 0
		}
		vEntryMax := math.Sqrt(effectiveExit*effectiveExit + 2*seg.Acceleration*seg.Distance)
		if vEntryMax < seg.EntrySpeed {
			seg.EntrySpeed = vEntryMax
		}
		seg.ExitSpeed = math.Min(seg.LimitedFeed, math.Sqrt(seg.EntrySpeed*seg.EntrySpeed+2*seg.Acceleration*seg.Distance))
		nextEntry = seg.EntrySpeed
	}
	// The last queued segment has no follow-on to match speed with, so
	// its exit speed is forced to zero regardless of the reachable max
	// the formula above derives.
	if n := len(p.queue); n > 0 {
		p.queue[n-1].ExitSpeed = 0
	}
}

func (p *Planner) recomputeDurations() {
	for _, seg := range p.queue {
		dv := seg.ExitSpeed - seg.EntrySpeed
		if dv < 0 {
			dv = 0
		}
		if seg.Acceleration <= 0 {
			seg.Duration = seg.Distance / math.Max(seg.LimitedFeed, 0.1)
			continue
		}
		disc := dv*dv + 2*seg.Acceleration*seg.Distance
		if disc < 0 {
			seg.Duration = seg.Distance / math.Max(seg.LimitedFeed, 0.1)
			continue
		}
		seg.Duration = (dv + math.Sqrt(disc)) / seg.Acceleration
	}
}

// Pause transitions Running -> Paused.
func (p *Planner) Pause() error {
	if p.queueState != Running {
		return kerrors.NewMotionError(kerrors.Other, "pause: queue not running")
	}
	p.queueState = Paused
	return nil
}

// Resume transitions Paused -> Running.
func (p *Planner) Resume() error {
	if p.queueState != Paused {
		return kerrors.NewMotionError(kerrors.Other, "resume: queue not paused")
	}
	p.queueState = Running
	return nil
}

// CancelQueue clears the queue and transitions to Cancelled.
func (p *Planner) CancelQueue() {
	p.queue = nil
	p.haveLastUnit = false
	p.queueState = Cancelled
}

// PeekAt returns the segment at queue index i without removing it.
// Intended for inspection (tests, status reporting); callers must not
// mutate the returned Segment's fields.
func (p *Planner) PeekAt(i int) *Segment {
	return p.queue[i]
}

// PopHead removes and returns the queue head, or ok=false if empty.
func (p *Planner) PopHead() (*Segment, bool) {
	if len(p.queue) == 0 {
		return nil, false
	}
	seg := p.queue[0]
	p.queue = p.queue[1:]
	return seg, true
}

// Start transitions Idle -> Running, arming the queue for execution.
func (p *Planner) Start() {
	if p.queueState == Idle || p.queueState == Cancelled {
		p.queueState = Running
	}
}

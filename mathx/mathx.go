// Package mathx provides small numeric helpers shared across the motion
// pipeline: rounding, clamping, and the Position vector used by the
// kinematics, planner, and executor packages.
package mathx

import (
	"fmt"
	"math"
)

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
func Round(x, unit float64) float64 {
	return math.Floor(x/unit+0.5) * unit
}

// Clamp limits min <= input <= max.
func Clamp(input, min, max float64) float64 {
	if input < min {
		return min
	}
	if input > max {
		return max
	}
	return input
}

// Limiter represents a basic set of min/max limits on a scalar quantity.
type Limiter struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Clamp limits min <= input <= max using the receiver's bounds.
func (l Limiter) Clamp(input float64) float64 {
	return Clamp(input, l.Min, l.Max)
}

// Check returns true if min <= input <= max.
func (l Limiter) Check(input float64) bool {
	return input >= l.Min && input <= l.Max
}

// Span records a byte range within the line a command, error, or macro
// expansion originated from. Start is inclusive, End is exclusive.
type Span struct {
	Start, End int
}

// String renders the span as "start..end" for error messages.
func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

// NumAxes is the dimensionality of a Position: X, Y, Z, E.
const NumAxes = 4

// Position is an absolute point in the planner's coordinate space,
// [X, Y, Z, E] in millimetres. E is the extruder feed axis.
type Position [NumAxes]float64

// Sub returns p - q component-wise.
func (p Position) Sub(q Position) Position {
	var out Position
	for i := range p {
		out[i] = p[i] - q[i]
	}
	return out
}

// Add returns p + q component-wise.
func (p Position) Add(q Position) Position {
	var out Position
	for i := range p {
		out[i] = p[i] + q[i]
	}
	return out
}

// Scale returns p scaled by s.
func (p Position) Scale(s float64) Position {
	var out Position
	for i := range p {
		out[i] = p[i] * s
	}
	return out
}

// Norm returns the Euclidean length of p.
func (p Position) Norm() float64 {
	var sum float64
	for _, v := range p {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Distance returns the Euclidean distance between p and q.
func Distance(p, q Position) float64 {
	return q.Sub(p).Norm()
}

// UnitVector returns (q-p)/distance, or the zero vector when p == q.
func UnitVector(p, q Position) (Position, float64) {
	d := Distance(p, q)
	if d <= 0 {
		return Position{}, 0
	}
	return q.Sub(p).Scale(1 / d), d
}

// Lerp linearly interpolates between p and q at fraction t, t expected in [0,1].
func Lerp(p, q Position, t float64) Position {
	var out Position
	for i := range p {
		out[i] = p[i] + (q[i]-p[i])*t
	}
	return out
}

// FormatMoveCommand renders p as a G0 linear-move line in the
// millimetre units the parser expects, for collaborators (the MCU
// sink) that only accept G-code text rather than raw coordinates.
func FormatMoveCommand(p Position) string {
	return fmt.Sprintf("G0 X%.4f Y%.4f Z%.4f E%.4f", p[0], p[1], p[2], p[3])
}

// AngleBetween returns the angle in radians between two unit vectors.
// Both arguments are assumed to already be normalized; the zero vector
// (no prior direction) yields an angle of 0, i.e. no cornering penalty.
func AngleBetween(u, v Position) float64 {
	if u == (Position{}) || v == (Position{}) {
		return 0
	}
	var dot float64
	for i := range u {
		dot += u[i] * v[i]
	}
	dot = Clamp(dot, -1, 1)
	return math.Acos(dot)
}

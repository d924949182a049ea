// Package kinematics provides bidirectional Cartesian<->motor
// coordinate maps behind a small tagged-enum capability, matching the
// spec's dispatch style: concrete variants inlined rather than hidden
// behind an interface boundary that nothing else needs.
package kinematics

import (
	"github.com/krustylabs/krusty-host/kerrors"
	"github.com/krustylabs/krusty-host/mathx"
)

// Kind selects the concrete coordinate transform a Model applies.
type Kind int

const (
	Cartesian Kind = iota
	CoreXY
	// Delta and Hangprinter are declared to satisfy the configuration
	// surface but stub to Cartesian; their real transforms are outside
	// this system's numeric contract (see DESIGN.md).
	Delta
	Hangprinter
)

func (k Kind) String() string {
	switch k {
	case Cartesian:
		return "cartesian"
	case CoreXY:
		return "corexy"
	case Delta:
		return "delta"
	case Hangprinter:
		return "hangprinter"
	default:
		return "unknown"
	}
}

// AxisLimits bounds the first three Cartesian axes.
type AxisLimits [3]mathx.Limiter

// Model is the coordinate-transform capability: cartesian_to_motors,
// motors_to_cartesian, and is_valid_position. It holds no mutable
// state, so copying a Model value is an independent clone, satisfying
// the "must be independently cloneable" requirement without any
// explicit Clone method.
type Model struct {
	Kind   Kind
	Limits AxisLimits
}

// NewModel returns a Model of the given kind with the given axis limits.
func NewModel(kind Kind, limits AxisLimits) Model {
	return Model{Kind: kind, Limits: limits}
}

// CartesianToMotors maps a Cartesian position's first three axes to
// motor coordinates; E passes through unchanged as motor 4.
func (m Model) CartesianToMotors(p mathx.Position) (mathx.Position, error) {
	switch m.Kind {
	case Cartesian, Delta, Hangprinter:
		return p, nil
	case CoreXY:
		x, y, z, e := p[0], p[1], p[2], p[3]
		return mathx.Position{x + y, x - y, z, e}, nil
	default:
		return mathx.Position{}, kerrors.NewMotionError(kerrors.Kinematics, "unknown kinematics kind %v", m.Kind)
	}
}

// MotorsToCartesian is the inverse of CartesianToMotors.
func (m Model) MotorsToCartesian(motors mathx.Position) (mathx.Position, error) {
	switch m.Kind {
	case Cartesian, Delta, Hangprinter:
		return motors, nil
	case CoreXY:
		a, b, c, e := motors[0], motors[1], motors[2], motors[3]
		return mathx.Position{(a + b) / 2, (a - b) / 2, c, e}, nil
	default:
		return mathx.Position{}, kerrors.NewMotionError(kerrors.Kinematics, "unknown kinematics kind %v", m.Kind)
	}
}

// IsValidPosition reports whether p's first three axes fall within
// the model's configured axis limits.
func (m Model) IsValidPosition(p mathx.Position) bool {
	for i := 0; i < 3; i++ {
		if !m.Limits[i].Check(p[i]) {
			return false
		}
	}
	return true
}

package kinematics_test

import (
	"math"
	"testing"

	"github.com/krustylabs/krusty-host/kinematics"
	"github.com/krustylabs/krusty-host/mathx"
)

func unrestricted() kinematics.AxisLimits {
	return kinematics.AxisLimits{
		{Min: -1000, Max: 1000},
		{Min: -1000, Max: 1000},
		{Min: -1000, Max: 1000},
	}
}

// S6: CoreXY cartesian_to_motors([3,4,5]) = [7,-1,5,0]; inverse recovers [3,4,5].
func TestS6CoreXY(t *testing.T) {
	m := kinematics.NewModel(kinematics.CoreXY, unrestricted())
	motors, err := m.CartesianToMotors(mathx.Position{3, 4, 5, 0})
	if err != nil {
		t.Fatalf("cartesian_to_motors: %v", err)
	}
	want := mathx.Position{7, -1, 5, 0}
	if motors != want {
		t.Errorf("got %v, want %v", motors, want)
	}
	back, err := m.MotorsToCartesian(motors)
	if err != nil {
		t.Fatalf("motors_to_cartesian: %v", err)
	}
	want2 := mathx.Position{3, 4, 5, 0}
	if back != want2 {
		t.Errorf("inverse got %v, want %v", back, want2)
	}
}

// Universal property 8: round-trip within 1e-9 for Cartesian and CoreXY.
func TestKinematicsRoundTrip(t *testing.T) {
	for _, kind := range []kinematics.Kind{kinematics.Cartesian, kinematics.CoreXY} {
		m := kinematics.NewModel(kind, unrestricted())
		p := mathx.Position{12.5, -7.25, 3.1, 9}
		motors, err := m.CartesianToMotors(p)
		if err != nil {
			t.Fatalf("%v: cartesian_to_motors: %v", kind, err)
		}
		back, err := m.MotorsToCartesian(motors)
		if err != nil {
			t.Fatalf("%v: motors_to_cartesian: %v", kind, err)
		}
		for i := range p {
			if math.Abs(p[i]-back[i]) > 1e-9 {
				t.Errorf("%v: round trip axis %d got %v, want %v", kind, i, back[i], p[i])
			}
		}
	}
}

func TestIsValidPosition(t *testing.T) {
	limits := kinematics.AxisLimits{
		{Min: 0, Max: 200},
		{Min: 0, Max: 200},
		{Min: 0, Max: 200},
	}
	m := kinematics.NewModel(kinematics.Cartesian, limits)
	if !m.IsValidPosition(mathx.Position{100, 100, 100, 0}) {
		t.Error("expected position within bounds to be valid")
	}
	if m.IsValidPosition(mathx.Position{300, 100, 100, 0}) {
		t.Error("expected out-of-bounds X to be invalid")
	}
}

package optimizer_test

import (
	"testing"

	"github.com/krustylabs/krusty-host/mathx"
	"github.com/krustylabs/krusty-host/optimizer"
)

func baseTunables() optimizer.Tunables {
	return optimizer.Tunables{
		JunctionDeviation: 0.05,
		MaxAcceleration:   mathx.Position{1000, 1000, 100, 1000},
		MaxJerk:           mathx.Position{500, 500, 500, 500},
	}
}

func TestLowVibrationGoodAccuracyIncreasesJunctionDeviation(t *testing.T) {
	o := optimizer.New(0.01, 100, optimizer.DefaultBounds())
	m := optimizer.PerformanceMetrics{VibrationAverage: 0.001, PositionAccuracy: 0.001, QualityScore: 0.8}
	out := o.Adjust(baseTunables(), m, optimizer.VibrationAnalysis{})
	if out.JunctionDeviation <= 0.05 {
		t.Errorf("junction_deviation = %v, want > 0.05", out.JunctionDeviation)
	}
}

func TestHighVibrationDecreasesJunctionDeviation(t *testing.T) {
	o := optimizer.New(0.01, 100, optimizer.DefaultBounds())
	m := optimizer.PerformanceMetrics{VibrationAverage: 0.05, QualityScore: 0.8}
	out := o.Adjust(baseTunables(), m, optimizer.VibrationAnalysis{})
	if out.JunctionDeviation >= 0.05 {
		t.Errorf("junction_deviation = %v, want < 0.05", out.JunctionDeviation)
	}
}

func TestJunctionDeviationBoundsClamp(t *testing.T) {
	o := optimizer.New(1.0, 100, optimizer.DefaultBounds())
	cur := baseTunables()
	cur.JunctionDeviation = 0.19
	m := optimizer.PerformanceMetrics{VibrationAverage: 0.001, PositionAccuracy: 0.001}
	out := o.Adjust(cur, m, optimizer.VibrationAnalysis{})
	if out.JunctionDeviation > 0.2 {
		t.Errorf("junction_deviation = %v, want capped at 0.2", out.JunctionDeviation)
	}
}

func TestQualityScoreScalesAcceleration(t *testing.T) {
	o := optimizer.New(0.01, 100, optimizer.DefaultBounds())
	m := optimizer.PerformanceMetrics{QualityScore: 0.95}
	out := o.Adjust(baseTunables(), m, optimizer.VibrationAnalysis{})
	if out.MaxAcceleration[0] <= 1000 {
		t.Errorf("max_acceleration[0] = %v, want > 1000", out.MaxAcceleration[0])
	}
	m2 := optimizer.PerformanceMetrics{QualityScore: 0.5}
	out2 := o.Adjust(baseTunables(), m2, optimizer.VibrationAnalysis{})
	if out2.MaxAcceleration[0] >= 1000 {
		t.Errorf("max_acceleration[0] = %v, want < 1000", out2.MaxAcceleration[0])
	}
}

func TestAccelerationClampedToBounds(t *testing.T) {
	o := optimizer.New(1.0, 100, optimizer.DefaultBounds())
	cur := baseTunables()
	cur.MaxAcceleration = mathx.Position{9999, 9999, 9999, 9999}
	m := optimizer.PerformanceMetrics{QualityScore: 0.95}
	out := o.Adjust(cur, m, optimizer.VibrationAnalysis{})
	for i, v := range out.MaxAcceleration {
		if v > 10000 {
			t.Errorf("axis %d = %v, want <= 10000", i, v)
		}
	}
}

func TestHighResonanceReducesJerk(t *testing.T) {
	o := optimizer.New(0.01, 100, optimizer.DefaultBounds())
	m := optimizer.PerformanceMetrics{}
	v := optimizer.VibrationAnalysis{ResonancePeaks: []float64{60, 70}}
	out := o.Adjust(baseTunables(), m, v)
	if out.MaxJerk[0] >= 500 {
		t.Errorf("max_jerk[0] = %v, want < 500", out.MaxJerk[0])
	}
}

func TestObserveRingBufferEviction(t *testing.T) {
	o := optimizer.New(0.01, 3, optimizer.DefaultBounds())
	for i := 0; i < 5; i++ {
		o.Observe(optimizer.PerformanceMetrics{}, optimizer.VibrationAnalysis{})
	}
	if o.Len() != 3 {
		t.Errorf("history length = %d, want 3 (ring buffer capped at window)", o.Len())
	}
}

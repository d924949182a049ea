// Package optimizer implements the adaptive optimizer: an optional
// closed-loop mode that nudges the planner's junction_deviation,
// max_acceleration, and max_jerk from a ring-buffered history of
// performance metrics and vibration analysis, within safety bounds.
package optimizer

import "github.com/krustylabs/krusty-host/mathx"

// PerformanceMetrics is one sample fed to the optimizer after an
// admitted move.
type PerformanceMetrics struct {
	VibrationAverage float64
	VibrationPeak    float64
	PositionAccuracy float64
	QualityScore     float64
	ThermalStability float64
	ProcessingLoad   float64
	SpeedEfficiency  float64
}

// VibrationAnalysis accompanies each PerformanceMetrics sample.
type VibrationAnalysis struct {
	Spectrum          []float64
	ResonancePeaks    []float64
	DominantFrequency float64
	OverallLevel      float64
}

func (v VibrationAnalysis) averageResonance() float64 {
	if len(v.ResonancePeaks) == 0 {
		return 0
	}
	var sum float64
	for _, p := range v.ResonancePeaks {
		sum += p
	}
	return sum / float64(len(v.ResonancePeaks))
}

// Bounds caps the tunables the optimizer is allowed to adjust.
type Bounds struct {
	MaxJunctionDeviation float64
	MinJunctionDeviation float64
	MinAcceleration      float64
	MaxAcceleration      float64
}

// DefaultBounds matches §4.7: junction_deviation capped at 0.2mm and
// floored at 0.01mm; accelerations clamped to [100, 10000].
func DefaultBounds() Bounds {
	return Bounds{
		MaxJunctionDeviation: 0.2,
		MinJunctionDeviation: 0.01,
		MinAcceleration:      100,
		MaxAcceleration:      10000,
	}
}

// Tunables is the subset of planner.Config the optimizer may adjust.
type Tunables struct {
	JunctionDeviation float64
	MaxAcceleration   mathx.Position
	MaxJerk           mathx.Position
}

// sample pairs one tick's metrics and vibration analysis, as retained
// in the ring buffer.
type sample struct {
	metrics   PerformanceMetrics
	vibration VibrationAnalysis
}

// Optimizer retains a ring-buffered history of performance samples and
// applies the three rule families of §4.7 to the current tunables.
type Optimizer struct {
	rate      float64
	window    int
	bounds    Bounds
	history   []sample
	writeHead int
}

// New returns an optimizer with the given adaptation_rate and
// performance_window (ring buffer capacity).
func New(rate float64, window int, bounds Bounds) *Optimizer {
	if window <= 0 {
		window = 100
	}
	return &Optimizer{rate: rate, window: window, bounds: bounds}
}

// DefaultOptimizer matches the spec's stated defaults: adaptation_rate
// 0.01, performance_window 100.
func DefaultOptimizer() *Optimizer {
	return New(0.01, 100, DefaultBounds())
}

// Observe records one sample in the ring buffer, evicting the oldest
// entry once the window is full.
func (o *Optimizer) Observe(m PerformanceMetrics, v VibrationAnalysis) {
	s := sample{metrics: m, vibration: v}
	if len(o.history) < o.window {
		o.history = append(o.history, s)
		return
	}
	o.history[o.writeHead] = s
	o.writeHead = (o.writeHead + 1) % o.window
}

// Len reports how many samples are currently retained.
func (o *Optimizer) Len() int { return len(o.history) }

// Adjust applies the three rule families to cur using the metrics m
// and vibration analysis v passed in, returning the adjusted tunables.
// It does not read the history Observe retains; that history is kept
// for inspection/diagnostics only.
func (o *Optimizer) Adjust(cur Tunables, m PerformanceMetrics, v VibrationAnalysis) Tunables {
	out := cur
	rate := o.rate

	switch {
	case m.VibrationAverage < 0.005 && m.PositionAccuracy < 0.002:
		out.JunctionDeviation = out.JunctionDeviation * (1 + rate)
		if out.JunctionDeviation > o.bounds.MaxJunctionDeviation {
			out.JunctionDeviation = o.bounds.MaxJunctionDeviation
		}
	case m.VibrationAverage > 0.03:
		out.JunctionDeviation = out.JunctionDeviation * (1 - 0.5*rate)
		if out.JunctionDeviation < o.bounds.MinJunctionDeviation {
			out.JunctionDeviation = o.bounds.MinJunctionDeviation
		}
	}

	switch {
	case m.QualityScore > 0.9:
		out.MaxAcceleration = scaleClamped(out.MaxAcceleration, 1+0.5*rate, o.bounds.MinAcceleration, o.bounds.MaxAcceleration)
	case m.QualityScore < 0.7:
		out.MaxAcceleration = scaleClamped(out.MaxAcceleration, 1-rate, o.bounds.MinAcceleration, o.bounds.MaxAcceleration)
	}

	if v.averageResonance() > 50 {
		factor := 1 - 0.3*rate
		for i := range out.MaxJerk {
			out.MaxJerk[i] *= factor
		}
	}

	return out
}

func scaleClamped(p mathx.Position, factor, min, max float64) mathx.Position {
	var out mathx.Position
	for i := range p {
		v := p[i] * factor
		out[i] = mathx.Clamp(v, min, max)
	}
	return out
}

// Package motionconfig loads and validates the configuration keys
// §6 declares as the core-relevant external interface: printer
// kinematics and rate limits, per-axis shaper selection, and blending
// tolerance. Loading follows the same koanf layering the reference
// multi-device server uses (defaults via structs.Provider, then a
// YAML file overlay that tolerates a missing file), because
// configuration file parsing sits outside this system's scope (§1)
// and is only ever a collaborator here.
package motionconfig

import (
	"fmt"
	"math"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.com/krustylabs/krusty-host/kerrors"
	"github.com/krustylabs/krusty-host/kinematics"
	"github.com/krustylabs/krusty-host/mathx"
	"github.com/krustylabs/krusty-host/planner"
	"github.com/krustylabs/krusty-host/shaper"
	"github.com/krustylabs/krusty-host/util"
)

// ShaperAxis holds the unvalidated §6 shaper keys for one axis.
type ShaperAxis struct {
	Type      string  `koanf:"type" yaml:"type"`
	Frequency float64 `koanf:"frequency" yaml:"frequency"`
	Damping   float64 `koanf:"damping" yaml:"damping"`
}

// Blending holds the §6 blending keys.
type Blending struct {
	Type         string  `koanf:"type" yaml:"type"`
	MaxDeviation float64 `koanf:"max_deviation" yaml:"max_deviation"`
}

// Printer holds the §6 printer.* keys.
type Printer struct {
	Kinematics  string  `koanf:"kinematics" yaml:"kinematics"`
	MaxVelocity float64 `koanf:"max_velocity" yaml:"max_velocity"`
	MaxAccel    float64 `koanf:"max_accel" yaml:"max_accel"`
	MaxZVel     float64 `koanf:"max_z_velocity" yaml:"max_z_velocity"`
	MaxZAccel   float64 `koanf:"max_z_accel" yaml:"max_z_accel"`
}

// ShaperBank holds the §6 motion.shaper.<axis> keys, one per named
// axis in mathx.Position order (X, Y, Z, E).
type ShaperBank struct {
	X ShaperAxis `koanf:"x" yaml:"x"`
	Y ShaperAxis `koanf:"y" yaml:"y"`
	Z ShaperAxis `koanf:"z" yaml:"z"`
	E ShaperAxis `koanf:"e" yaml:"e"`
}

// Motion holds the §6 motion.* keys: one shaper per named axis plus
// the blending tolerance.
type Motion struct {
	Shaper   ShaperBank `koanf:"shaper" yaml:"shaper"`
	Blending Blending   `koanf:"blending" yaml:"blending"`
}

// Config is the full configuration surface this package validates
// before planner/kinematics/shaper construction.
type Config struct {
	Printer Printer `koanf:"printer" yaml:"printer"`
	Motion  Motion  `koanf:"motion" yaml:"motion"`
}

// Default returns the configuration defaults loaded as the base layer
// before any file overlay, mirroring the setupconfig pattern: sane,
// buildable-without-a-file values rather than zero values that would
// fail Validate silently.
func Default() Config {
	return Config{
		Printer: Printer{
			Kinematics:  "cartesian",
			MaxVelocity: 300,
			MaxAccel:    3000,
			MaxZVel:     10,
			MaxZAccel:   100,
		},
		Motion: Motion{
			Shaper: ShaperBank{
				X: ShaperAxis{Type: "zvd", Frequency: 40, Damping: 0.1},
				Y: ShaperAxis{Type: "zvd", Frequency: 40, Damping: 0.1},
				Z: ShaperAxis{Type: "zvd", Frequency: 40, Damping: 0.1},
				E: ShaperAxis{Type: "zvd", Frequency: 40, Damping: 0.1},
			},
			Blending: Blending{Type: "bezier", MaxDeviation: 0.05},
		},
	}
}

// Load builds a koanf instance from Default(), then overlays path if
// it exists. A missing file is not an error — the defaults stand on
// their own, same tolerance the multi-device server's setupconfig
// gives a missing on-disk config.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return Config{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !strings.Contains(strings.ToLower(err.Error()), "no such") {
			return Config{}, err
		}
	}

	var out Config
	if err := k.Unmarshal("", &out); err != nil {
		return Config{}, err
	}
	return out, nil
}

// Validate checks every §6 key, collecting every violation instead of
// failing on the first so a single config file edit can fix all of
// them at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Printer.Kinematics {
	case "cartesian", "corexy", "delta", "hangprinter":
	default:
		errs = append(errs, kerrors.NewConfigError("printer.kinematics",
			fmt.Errorf("must be one of cartesian, corexy, delta, hangprinter, got %q", c.Printer.Kinematics)))
	}
	if c.Printer.MaxVelocity <= 0 {
		errs = append(errs, kerrors.NewConfigError("printer.max_velocity", fmt.Errorf("must be > 0")))
	}
	if c.Printer.MaxAccel <= 0 {
		errs = append(errs, kerrors.NewConfigError("printer.max_accel", fmt.Errorf("must be > 0")))
	}
	if c.Printer.MaxZVel <= 0 {
		errs = append(errs, kerrors.NewConfigError("printer.max_z_velocity", fmt.Errorf("must be > 0")))
	}
	if c.Printer.MaxZAccel <= 0 {
		errs = append(errs, kerrors.NewConfigError("printer.max_z_accel", fmt.Errorf("must be > 0")))
	}

	for _, a := range []struct {
		key string
		s   ShaperAxis
	}{
		{"motion.shaper.x", c.Motion.Shaper.X},
		{"motion.shaper.y", c.Motion.Shaper.Y},
		{"motion.shaper.z", c.Motion.Shaper.Z},
		{"motion.shaper.e", c.Motion.Shaper.E},
	} {
		switch a.s.Type {
		case "zvd", "sine":
		default:
			errs = append(errs, kerrors.NewConfigError(a.key+".type",
				fmt.Errorf("must be zvd or sine, got %q", a.s.Type)))
		}
		if a.s.Frequency <= 0 {
			errs = append(errs, kerrors.NewConfigError(a.key+".frequency", fmt.Errorf("must be > 0")))
		}
		if a.s.Damping < 0 || a.s.Damping > 1 {
			errs = append(errs, kerrors.NewConfigError(a.key+".damping", fmt.Errorf("must be in [0, 1]")))
		}
	}

	if c.Motion.Blending.Type != "bezier" {
		errs = append(errs, kerrors.NewConfigError("motion.blending.type",
			fmt.Errorf("must be bezier, got %q", c.Motion.Blending.Type)))
	}
	if c.Motion.Blending.MaxDeviation <= 0 {
		errs = append(errs, kerrors.NewConfigError("motion.blending.max_deviation", fmt.Errorf("must be > 0")))
	}

	return util.MergeErrors(errs)
}

// KinematicsKind maps the validated printer.kinematics string onto
// the kinematics package's tagged enum.
func (c Config) KinematicsKind() kinematics.Kind {
	switch c.Printer.Kinematics {
	case "corexy":
		return kinematics.CoreXY
	case "delta":
		return kinematics.Delta
	case "hangprinter":
		return kinematics.Hangprinter
	default:
		return kinematics.Cartesian
	}
}

// PlannerConfig derives a planner.Config from the validated printer
// limits. Axes without a distinct per-axis key in §6 (acceleration,
// jerk, junction deviation beyond the global) inherit the printer's
// X/Y rate for X/Y/E and the dedicated Z rate for the Z axis.
func (c Config) PlannerConfig() planner.Config {
	return planner.Config{
		MaxVelocity:         mathx.Position{c.Printer.MaxVelocity, c.Printer.MaxVelocity, c.Printer.MaxZVel, c.Printer.MaxVelocity},
		MaxAcceleration:     mathx.Position{c.Printer.MaxAccel, c.Printer.MaxAccel, c.Printer.MaxZAccel, c.Printer.MaxAccel},
		MaxJerk:             mathx.Position{c.Printer.MaxAccel / 10, c.Printer.MaxAccel / 10, c.Printer.MaxZAccel / 10, c.Printer.MaxAccel / 10},
		JunctionDeviation:   c.Motion.Blending.MaxDeviation,
		MinimumStepDistance: 1e-4,
		LookaheadBufferSize: 32,
	}
}

// ShaperBank builds the per-axis shaper bank the §6 shaper keys
// describe. SineWave axes use a fixed sample time of 1ms, the
// executor's nominal tick period; ZVD axes derive their delay and
// coefficients from frequency/damping via the standard two-impulse
// zero-vibration-and-derivative formula.
func (c Config) ShaperBank() shaper.Bank {
	bank := shaper.NewBank()
	axes := [shaper.NumAxes]ShaperAxis{c.Motion.Shaper.X, c.Motion.Shaper.Y, c.Motion.Shaper.Z, c.Motion.Shaper.E}
	for i, a := range axes {
		bank.Axes[i] = buildAxisShaper(a)
	}
	return bank
}

func buildAxisShaper(a ShaperAxis) shaper.Shaper {
	if a.Type == "sine" {
		return shaper.NewSineWave(1.0, a.Frequency, 0.001)
	}
	return zvdFromFrequency(a.Frequency, a.Damping)
}

// zvdFromFrequency derives a two-impulse ZVD shaper's delay (in 1ms
// executor ticks) and convolution coefficients from a resonant
// frequency and damping ratio, the standard closed form: K =
// exp(-damping*pi/sqrt(1-damping^2)), coefficients 1/(1+K) and
// K/(1+K), impulses spaced by half the damped period.
func zvdFromFrequency(frequency, damping float64) shaper.Shaper {
	wd := 2 * math.Pi * frequency * math.Sqrt(1-damping*damping)
	halfPeriod := math.Pi / wd
	k := math.Exp(-damping * math.Pi / math.Sqrt(1-damping*damping))
	c0 := 1 / (1 + k)
	c1 := k / (1 + k)
	delayTicks := int(halfPeriod/0.001 + 0.5)
	if delayTicks < 1 {
		delayTicks = 1
	}
	return shaper.NewZVD(delayTicks, c0, c1)
}

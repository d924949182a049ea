// Package kerrors is the shared error taxonomy for the motion pipeline:
// parser, job manager, planner, and hardware-transport errors all carry
// through as values, matching the comm package's sentinel-error idiom
// (ErrNotConnected, ErrTimeout) rather than panics.
package kerrors

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/krustylabs/krusty-host/mathx"
)

// ParseError is produced by the G-code scanner. It always carries the
// span of the offending bytes so the caller can cite the input.
type ParseError struct {
	Message string
	Span    mathx.Span
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Span, e.Message)
}

// NewParseError builds a ParseError at the given span.
func NewParseError(span mathx.Span, format string, args ...interface{}) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Span: span}
}

// MacroErrorKind distinguishes the macro-processor failure modes.
type MacroErrorKind int

const (
	// MacroNotFound means the named macro has no definition.
	MacroNotFound MacroErrorKind = iota
	// MacroRecursion means the macro name already appears in the active call stack.
	MacroRecursion
	// InvalidDefinition means a define() call was malformed.
	InvalidDefinition
)

// MacroError is a command-level error raised by the macro expander.
type MacroError struct {
	Kind MacroErrorKind
	Name string
	Span mathx.Span
}

func (e *MacroError) Error() string {
	switch e.Kind {
	case MacroNotFound:
		return fmt.Sprintf("macro %q not found (%s)", e.Name, e.Span)
	case MacroRecursion:
		return fmt.Sprintf("macro recursion detected on %q (%s)", e.Name, e.Span)
	case InvalidDefinition:
		return fmt.Sprintf("invalid macro definition %q (%s)", e.Name, e.Span)
	default:
		return fmt.Sprintf("macro error on %q (%s)", e.Name, e.Span)
	}
}

// JobErrorKind distinguishes print-job-manager failure modes.
type JobErrorKind int

const (
	// NoJob means there is no head job to operate on.
	NoJob JobErrorKind = iota
	// InvalidTransition means the requested lifecycle transition is not in the state graph.
	InvalidTransition
	// ChannelSend means the bounded sender to the motion pipeline rejected a command.
	ChannelSend
)

// JobError is returned by print-job-manager operations. NoJob and
// InvalidTransition leave job state unchanged; ChannelSend is returned
// after the head job has been marked Error.
type JobError struct {
	Kind JobErrorKind
	Op   string
}

func (e *JobError) Error() string {
	switch e.Kind {
	case NoJob:
		return fmt.Sprintf("%s: no job", e.Op)
	case InvalidTransition:
		return fmt.Sprintf("%s: invalid state transition", e.Op)
	case ChannelSend:
		return fmt.Sprintf("%s: channel send failed", e.Op)
	default:
		return fmt.Sprintf("%s: job error", e.Op)
	}
}

// IsNoJob reports whether err is a NoJob JobError.
func IsNoJob(err error) bool {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind == NoJob
	}
	return false
}

// IsInvalidTransition reports whether err is an InvalidTransition JobError.
func IsInvalidTransition(err error) bool {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind == InvalidTransition
	}
	return false
}

// MotionErrorKind distinguishes planner/executor failure modes.
type MotionErrorKind int

const (
	// JunctionDeviation means a cornering-speed computation could not be satisfied.
	JunctionDeviation MotionErrorKind = iota
	// Kinematics means a Cartesian<->motor transform rejected a position.
	Kinematics
	// Other covers any other planner/executor failure.
	Other
)

// MotionError aborts the current plan_move or update call; queue state
// is preserved, never auto-cancelled.
type MotionError struct {
	Kind MotionErrorKind
	Msg  string
}

func (e *MotionError) Error() string {
	return fmt.Sprintf("motion error: %s", e.Msg)
}

// NewMotionError builds a MotionError of the given kind.
func NewMotionError(kind MotionErrorKind, format string, args ...interface{}) *MotionError {
	return &MotionError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// HardwareErrorKind distinguishes the out-of-scope hardware-transport
// collaborator's failure modes (comm, mcu packages).
type HardwareErrorKind int

const (
	// Serial means a low-level serial I/O error occurred.
	Serial HardwareErrorKind = iota
	// NotConnected means the transport has no live connection.
	NotConnected
	// Timeout means a read/write exceeded its deadline (500ms on the MCU link).
	Timeout
	// Utf8 means a response could not be decoded as valid text.
	Utf8
)

// HardwareError is surfaced to the operator via status; the motion loop
// continues on transient failures and emergency-stops on fatal ones.
// It wraps its cause with github.com/pkg/errors so callers can Cause() it.
type HardwareError struct {
	Kind  HardwareErrorKind
	cause error
}

// NewHardwareError wraps cause with the given kind.
func NewHardwareError(kind HardwareErrorKind, cause error) *HardwareError {
	return &HardwareError{Kind: kind, cause: errors.WithStack(cause)}
}

func (e *HardwareError) Error() string {
	var kind string
	switch e.Kind {
	case Serial:
		kind = "serial"
	case NotConnected:
		kind = "not connected"
	case Timeout:
		kind = "timeout"
	case Utf8:
		kind = "utf8"
	default:
		kind = "unknown"
	}
	if e.cause == nil {
		return fmt.Sprintf("hardware error: %s", kind)
	}
	return fmt.Sprintf("hardware error: %s: %s", kind, e.cause.Error())
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *HardwareError) Unwrap() error { return e.cause }

// Fatal reports whether the hardware error should trigger an emergency
// stop rather than a transient-failure log line.
func (e *HardwareError) Fatal() bool {
	return e.Kind == NotConnected
}

// ConfigError names the configuration key that failed validation.
type ConfigError struct {
	Key string
	err error
}

// NewConfigError wraps cause as a ConfigError naming key.
func NewConfigError(key string, cause error) *ConfigError {
	return &ConfigError{Key: key, err: errors.Wrapf(cause, "invalid configuration key %q", key)}
}

func (e *ConfigError) Error() string { return e.err.Error() }

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *ConfigError) Unwrap() error { return e.err }

package gcode

import "github.com/krustylabs/krusty-host/mathx"

// Kind tags the variant held by a Command.
type Kind int

const (
	// KindWord is a letter+value pair, e.g. G1, X10.5.
	KindWord Kind = iota
	// KindComment is a ';'-introduced end-of-line comment.
	KindComment
	// KindMacro is a '{name args}' macro invocation form.
	KindMacro
	// KindVendorExtension is an '@name args' or vendor Mxxx form.
	KindVendorExtension
	// KindChecksum wraps a numbered, optionally checksummed line.
	KindChecksum
)

func (k Kind) String() string {
	switch k {
	case KindWord:
		return "Word"
	case KindComment:
		return "Comment"
	case KindMacro:
		return "Macro"
	case KindVendorExtension:
		return "VendorExtension"
	case KindChecksum:
		return "Checksum"
	default:
		return "Unknown"
	}
}

// Command is a single parsed G-code token. Its string fields (Value,
// Text, Name, Args) borrow their backing storage from the line passed
// to the parser: they remain valid only as long as that line's backing
// array is alive. Call ToOwned to detach a Command from the input
// buffer before it crosses a scheduling boundary (queued onto a job,
// pushed through the macro-expansion stack).
type Command struct {
	Kind Kind
	Span mathx.Span

	// Word
	Letter byte
	Value  string

	// Comment
	Text string

	// Macro / VendorExtension
	Name string
	Args string

	// Checksum
	LineNumber int
	Inner      *Command
	Checksum   uint8
	HasCheck   bool
}

// OwnedCommand is the independent-storage counterpart to Command, safe
// to retain past the lifetime of the line it was parsed from.
type OwnedCommand Command

// ToOwned returns an independent copy of c: every string field is
// copied out of the original line's backing array. The conversion is
// total and lossless — ToOwned().Borrow() round-trips to an equal value.
func (c Command) ToOwned() OwnedCommand {
	o := OwnedCommand{
		Kind:       c.Kind,
		Span:       c.Span,
		Letter:     c.Letter,
		Value:      copyString(c.Value),
		Text:       copyString(c.Text),
		Name:       copyString(c.Name),
		Args:       copyString(c.Args),
		LineNumber: c.LineNumber,
		Checksum:   c.Checksum,
		HasCheck:   c.HasCheck,
	}
	if c.Inner != nil {
		inner := c.Inner.ToOwned()
		o.Inner = (*Command)(&inner)
	}
	return o
}

// Borrow returns o as a Command. Since OwnedCommand's storage is
// already independent, this is a plain reinterpretation — no data is
// shared with any parser's input line.
func (o OwnedCommand) Borrow() Command {
	return Command(o)
}

// copyString forces a fresh allocation so the result no longer aliases
// the caller's backing array, the same trick comm2.go's Terminator.Read
// uses when it copies out of its double-buffer.
func copyString(s string) string {
	if s == "" {
		return ""
	}
	b := make([]byte, len(s))
	copy(b, s)
	return string(b)
}

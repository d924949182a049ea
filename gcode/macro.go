package gcode

import (
	"sync"

	"github.com/krustylabs/krusty-host/kerrors"
)

// MacroTable holds named macro bodies: ordered lines of G-code text
// substituted in place of a "{name args}" invocation. It is safe for
// concurrent use.
type MacroTable struct {
	mu    sync.RWMutex
	cfg   ParserConfig
	bodies map[string][]string
}

// NewMacroTable returns an empty table that expands/parses using cfg.
func NewMacroTable(cfg ParserConfig) *MacroTable {
	return &MacroTable{cfg: cfg, bodies: make(map[string][]string)}
}

// Define installs or replaces the body lines for name.
func (t *MacroTable) Define(name string, lines []string) {
	cp := make([]string, len(lines))
	copy(cp, lines)
	t.mu.Lock()
	t.bodies[name] = cp
	t.mu.Unlock()
}

// Delete removes name from the table, if present.
func (t *MacroTable) Delete(name string) {
	t.mu.Lock()
	delete(t.bodies, name)
	t.mu.Unlock()
}

// List returns the currently defined macro names.
func (t *MacroTable) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.bodies))
	for n := range t.bodies {
		names = append(names, n)
	}
	return names
}

// lookup returns a copy of name's body lines under a read lock only
// for the duration of the map access; the lock is released before the
// caller recurses into expansion, so a macro's body may itself define
// or invoke other macros without deadlocking.
func (t *MacroTable) lookup(name string) ([]string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	lines, ok := t.bodies[name]
	if !ok {
		return nil, false
	}
	cp := make([]string, len(lines))
	copy(cp, lines)
	return cp, true
}

// MacroExpander walks a single top-level line, recursively substituting
// "{name args}" macro forms with their defined bodies and re-scanning
// the result, until only non-macro commands remain. Expansion tracks
// the active call stack by macro name; a name reappearing in its own
// stack is a MacroRecursion error rather than an infinite expansion.
type MacroExpander struct {
	table *MacroTable
}

// NewMacroExpander returns an expander bound to table.
func NewMacroExpander(table *MacroTable) *MacroExpander {
	return &MacroExpander{table: table}
}

// ExpandAndParse parses line and recursively expands any macro forms
// it contains, returning the flat sequence of resulting Commands (as
// OwnedCommand, since expansion crosses the original line's lifetime).
// A single parse or expansion error aborts the whole line: unlike
// Parser.Next's per-token recovery, a macro error leaves the caller
// without a well-defined partial result to resume from.
func (e *MacroExpander) ExpandAndParse(line string) ([]OwnedCommand, error) {
	return e.expandLine(line, nil)
}

func (e *MacroExpander) expandLine(line string, stack []string) ([]OwnedCommand, error) {
	p := NewParser(line, e.table.cfg)
	var out []OwnedCommand
	for {
		cmd, err, ok := p.Next()
		if !ok {
			break
		}
		if err != nil {
			return nil, err
		}
		if cmd.Kind != KindMacro {
			out = append(out, cmd.ToOwned())
			continue
		}
		expanded, err := e.expandMacro(cmd, stack)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func (e *MacroExpander) expandMacro(cmd Command, stack []string) ([]OwnedCommand, error) {
	for _, active := range stack {
		if active == cmd.Name {
			return nil, &kerrors.MacroError{Kind: kerrors.MacroRecursion, Name: cmd.Name, Span: cmd.Span}
		}
	}
	body, ok := e.table.lookup(cmd.Name)
	if !ok {
		return nil, &kerrors.MacroError{Kind: kerrors.MacroNotFound, Name: cmd.Name, Span: cmd.Span}
	}
	nextStack := append(append([]string{}, stack...), cmd.Name)
	var out []OwnedCommand
	for _, bodyLine := range body {
		expanded, err := e.expandLine(bodyLine, nextStack)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

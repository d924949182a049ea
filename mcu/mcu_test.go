package mcu_test

import (
	"strings"
	"testing"

	"github.com/krustylabs/krusty-host/mcu"
)

func TestFrameLineShape(t *testing.T) {
	line := mcu.FrameLine(3, "G28")
	if !strings.HasPrefix(line, "N3 G28*") {
		t.Errorf("got %q, want prefix %q", line, "N3 G28*")
	}
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("got %q, want trailing newline", line)
	}
}

func TestFrameLineDeterministic(t *testing.T) {
	a := mcu.FrameLine(7, "M104 S200")
	b := mcu.FrameLine(7, "M104 S200")
	if a != b {
		t.Errorf("framing the same line twice produced different output: %q vs %q", a, b)
	}
}

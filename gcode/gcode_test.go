package gcode_test

import (
	"testing"

	"github.com/krustylabs/krusty-host/gcode"
)

func collect(t *testing.T, line string, cfg gcode.ParserConfig) []gcode.Command {
	t.Helper()
	p := gcode.NewParser(line, cfg)
	var out []gcode.Command
	for {
		cmd, err, ok := p.Next()
		if !ok {
			break
		}
		if err != nil {
			t.Fatalf("unexpected parse error: %v", err)
		}
		out = append(out, cmd)
	}
	return out
}

func wantWord(t *testing.T, cmd gcode.Command, letter byte, value string) {
	t.Helper()
	if cmd.Kind != gcode.KindWord || cmd.Letter != letter || cmd.Value != value {
		t.Errorf("got %v %q %q, want Word(%c,%q)", cmd.Kind, string(cmd.Letter), cmd.Value, letter, value)
	}
}

// S1: "G1 X10.5 Y-2 F1500" with defaults yields four Word commands.
func TestS1PlainWords(t *testing.T) {
	cmds := collect(t, "G1 X10.5 Y-2 F1500", gcode.DefaultParserConfig())
	if len(cmds) != 4 {
		t.Fatalf("got %d commands, want 4", len(cmds))
	}
	wantWord(t, cmds[0], 'G', "1")
	wantWord(t, cmds[1], 'X', "10.5")
	wantWord(t, cmds[2], 'Y', "-2")
	wantWord(t, cmds[3], 'F', "1500")
}

// S2: "G28 ; home\n" yields Word(G,28) then Comment("home").
func TestS2WordThenComment(t *testing.T) {
	cmds := collect(t, "G28 ; home\n", gcode.DefaultParserConfig())
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2", len(cmds))
	}
	wantWord(t, cmds[0], 'G', "28")
	if cmds[1].Kind != gcode.KindComment || cmds[1].Text != "home" {
		t.Errorf("got %v %q, want Comment(%q)", cmds[1].Kind, cmds[1].Text, "home")
	}
}

// S3: HOME -> ["G28"], STARTUP -> ["{HOME}", "M104 S200"], expanding
// "{STARTUP}" yields exactly Word(G,28), Word(M,104), Word(S,200).
func TestS3MacroExpansion(t *testing.T) {
	cfg := gcode.DefaultParserConfig()
	table := gcode.NewMacroTable(cfg)
	table.Define("HOME", []string{"G28"})
	table.Define("STARTUP", []string{"{HOME}", "M104 S200"})
	expander := gcode.NewMacroExpander(table)

	cmds, err := expander.ExpandAndParse("{STARTUP}")
	if err != nil {
		t.Fatalf("unexpected expansion error: %v", err)
	}
	if len(cmds) != 3 {
		t.Fatalf("got %d commands, want 3", len(cmds))
	}
	wantOwnedWord(t, cmds[0], 'G', "28")
	wantOwnedWord(t, cmds[1], 'M', "104")
	wantOwnedWord(t, cmds[2], 'S', "200")
}

func wantOwnedWord(t *testing.T, oc gcode.OwnedCommand, letter byte, value string) {
	t.Helper()
	wantWord(t, oc.Borrow(), letter, value)
}

func TestMacroRecursionDetected(t *testing.T) {
	cfg := gcode.DefaultParserConfig()
	table := gcode.NewMacroTable(cfg)
	table.Define("A", []string{"{B}"})
	table.Define("B", []string{"{A}"})
	expander := gcode.NewMacroExpander(table)

	_, err := expander.ExpandAndParse("{A}")
	if err == nil {
		t.Fatal("expected a macro recursion error, got nil")
	}
}

func TestMacroNotFound(t *testing.T) {
	cfg := gcode.DefaultParserConfig()
	table := gcode.NewMacroTable(cfg)
	expander := gcode.NewMacroExpander(table)

	_, err := expander.ExpandAndParse("{GHOST}")
	if err == nil {
		t.Fatal("expected a macro-not-found error, got nil")
	}
}

// Universal property: parsing never panics and always advances past a
// malformed token, so the whole line is eventually consumed.
func TestParserRecoversFromUnexpectedCharacter(t *testing.T) {
	cfg := gcode.DefaultParserConfig()
	p := gcode.NewParser("G1 # X10", cfg)
	var sawError bool
	var sawWordAfter bool
	for {
		cmd, err, ok := p.Next()
		if !ok {
			break
		}
		if err != nil {
			sawError = true
			continue
		}
		if cmd.Kind == gcode.KindWord && cmd.Letter == 'X' {
			sawWordAfter = true
		}
	}
	if !sawError {
		t.Error("expected an unexpected-character error for '#'")
	}
	if !sawWordAfter {
		t.Error("expected parsing to continue past the bad token and yield X10")
	}
}

func TestChecksumVerifiedLine(t *testing.T) {
	cfg := gcode.DefaultParserConfig()
	// 26 is the CRC-8 (poly 0x07) of "N3 G28", so the line verifies and
	// parses as a Checksum command for line 3.
	p := gcode.NewParser("N3 G28*26", cfg)
	cmd, err, ok := p.Next()
	if !ok {
		t.Fatal("expected one command")
	}
	if err == nil {
		if cmd.Kind != gcode.KindChecksum || cmd.LineNumber != 3 {
			t.Errorf("got %+v, want a Checksum command for N3", cmd)
		}
	}
}

func TestChecksumMismatch(t *testing.T) {
	cfg := gcode.DefaultParserConfig()
	p := gcode.NewParser("N3 G28*1", cfg)
	_, err, ok := p.Next()
	if !ok {
		t.Fatal("expected one result")
	}
	if err == nil {
		t.Fatal("expected a checksum mismatch error for an implausible checksum value")
	}
}

func TestInfixEvaluate(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"2 ^ 3 ^ 2", 512}, // right-associative: 2^(3^2)
		{"-2 + 3", 1},
		{"pi", 3.141592653589793},
	}
	for _, c := range cases {
		p := gcode.NewInfixParser(c.expr)
		got, err := p.Evaluate()
		if err != nil {
			t.Errorf("Evaluate(%q) error: %v", c.expr, err)
			continue
		}
		if got != c.want {
			t.Errorf("Evaluate(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestToOwnedRoundTrip(t *testing.T) {
	cmds := collect(t, "G1 X10.5", gcode.DefaultParserConfig())
	owned := cmds[0].ToOwned()
	if owned.Borrow() != cmds[0] {
		t.Errorf("round trip mismatch: got %+v, want %+v", owned.Borrow(), cmds[0])
	}
}

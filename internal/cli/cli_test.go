package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestPlanCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VENUE_ROW_CAPACITIES", "")
	t.Setenv("MAX_BOOKING", "")

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"plan", "--rows", "2,2,2", "--max", "3", "3", "4", "2", "2"})
	if err := root.Execute(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	want := []string{
		"#1 3: Booked 3 seats across rows 1-2 [1,2,3]",
		"#2 4: Cannot book more than 3 seats at a time",
		"#3 2: Booked 2 seats in row 3 [5,6]",
		"#4 2: Cannot book seats. Not enough available seats.",
		"occupied 5/6, available 1",
		"row  1 XX",
		"row  2 X.",
		"row  3 XX",
	}
	got := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(got), out.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestPlanCommand_RejectsBadInput(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := [][]string{
		{"plan"},
		{"plan", "abc"},
		{"plan", "--rows", "3,0", "2"},
	}
	for _, args := range tests {
		root := NewRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(args)
		if err := root.Execute(); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"serve", "consume", "migrate", "plan"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("expected %s command, got %v (%v)", name, c, err)
		}
	}
}

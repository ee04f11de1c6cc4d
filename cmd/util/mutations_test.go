package util

import (
	"testing"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/google/go-cmp/cmp"
)

const testMutations = `
table: users
cells:
  - row: alice
    family: info
    qualifier: email
    value: alice@example.com
  - row: alice
    family: info
    qualifier: age
    timestamp: 42
    value: "30"
  - row: bob
    op: delete_row
  - row: carol
    family: info
    op: delete_cf
    timestamp: 7
`

func TestParseMutations(t *testing.T) {
	f, err := ParseMutations([]byte(testMutations))
	if err != nil {
		t.Fatalf("ParseMutations failed: %v", err)
	}
	if f.Table != "users" {
		t.Errorf("expected table users, got %q", f.Table)
	}

	got, err := f.ToCells()
	if err != nil {
		t.Fatalf("ToCells failed: %v", err)
	}
	want := []cells.Cell{
		cells.NewInsert("alice", "info", "email", cells.TimestampAutoAssign, []byte("alice@example.com")),
		cells.NewInsert("alice", "info", "age", 42, []byte("30")),
		cells.NewDeleteRow("bob", cells.TimestampAutoAssign),
		cells.NewDeleteColumnFamily("carol", "info", 7),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalMutations(t *testing.T) {
	want := []cells.Cell{
		cells.NewInsert("r", "cf", "q", 5, []byte("v")),
		cells.NewDeleteCell("r", "cf", "q", cells.TimestampAutoAssign),
	}
	data, err := MarshalMutations("t", want)
	if err != nil {
		t.Fatalf("MarshalMutations failed: %v", err)
	}
	f, err := ParseMutations(data)
	if err != nil {
		t.Fatalf("ParseMutations failed: %v", err)
	}
	got, err := f.ToCells()
	if err != nil {
		t.Fatalf("ToCells failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidMutations(t *testing.T) {
	testCases := map[string]string{
		"unknown op":    "cells:\n  - row: a\n    op: upsert\n",
		"invalid yaml":  "cells: [\n",
		"missing close": "cells:\n  - row: \"a\n",
	}
	for name, input := range testCases {
		t.Run(name, func(t *testing.T) {
			f, err := ParseMutations([]byte(input))
			if err == nil {
				_, err = f.ToCells()
			}
			if err == nil {
				t.Errorf("expected error")
			}
		})
	}
}

func TestWrapString(t *testing.T) {
	wrapped := WrapString("one two three four five six seven eight nine ten eleven twelve thirteen")
	for _, line := range splitLines(wrapped) {
		if len(line) > Wrap {
			t.Errorf("line longer than %d characters: %q", Wrap, line)
		}
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}

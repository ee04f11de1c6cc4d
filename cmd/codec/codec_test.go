package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ValentinKolb/cellwire/cmd/util"
	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/google/go-cmp/cmp"
)

func TestEncode(t *testing.T) {
	// the example record of the wire format: insert of r/f:q=v without timestamp
	got := Encode([]cells.Cell{cells.NewInsert("r", "f", "q", cells.TimestampNull, []byte("v"))}, cells.FlagFlush)
	want := []byte{0x08, 'r', 0, 'f', 0, 'q', 0, 1, 0, 0, 0, 'v', 0x05}
	if !bytes.Equal(got, want) {
		t.Errorf("expected % x, got % x", want, got)
	}
}

func TestDumpText(t *testing.T) {
	data := Encode([]cells.Cell{
		cells.NewInsert("r", "f", "q", 7, []byte("v")),
		cells.NewDeleteRow("r", cells.TimestampAutoAssign),
	}, cells.FlagEndOfScan)

	var out bytes.Buffer
	if err := Dump(&out, data, "text"); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], `r f:q @7 = "v"`) {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[2], "EOB|EOS") || !strings.Contains(lines[2], "2 cells") {
		t.Errorf("unexpected terminator line %q", lines[2])
	}

	// a truncated stream reports an error
	if err := Dump(&out, data[:len(data)-3], "text"); err == nil {
		t.Errorf("expected error for truncated stream")
	}
	if err := Dump(&out, data, "xml"); err == nil {
		t.Errorf("expected error for unknown format")
	}
}

func TestDumpYAMLRoundTrip(t *testing.T) {
	want := []cells.Cell{
		cells.NewInsert("alice", "info", "email", 10, []byte("a@example.com")),
		cells.NewDeleteCell("bob", "info", "email", 11),
		cells.NewDeleteColumnFamily("carol", "info", cells.TimestampAutoAssign),
	}

	var out bytes.Buffer
	if err := Dump(&out, Encode(want, 0), "yaml"); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}

	f, err := util.ParseMutations(out.Bytes())
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

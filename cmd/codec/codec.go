package codec

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/cellwire/cmd/util"
	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/pkg/errors"
)

// Encode writes the cells into one finalized stream with the terminator EOB|extra
func Encode(cs []cells.Cell, extra cells.Flag) []byte {
	w := cells.NewWriter(4096, true)
	for _, c := range cs {
		w.Add(c)
	}
	w.Finalize(extra)
	return w.Bytes()
}

// Dump decodes a stream and writes its cells to out.
// The text format prints one record per line with its offset, the yaml
// format prints a mutation file that encode accepts again.
func Dump(out io.Writer, data []byte, format string) error {
	switch format {
	case "yaml":
		cs, err := cells.Decode(data)
		if err != nil {
			return err
		}
		yamlData, err := util.MarshalMutations("", cs)
		if err != nil {
			return err
		}
		_, err = out.Write(yamlData)
		return err
	case "text", "":
		r := cells.NewReader(data)
		n := 0
		offset := 0
		for r.Next() {
			if _, err := fmt.Fprintf(out, "%8d  %s\n", offset, r.Cell()); err != nil {
				return err
			}
			offset = r.Offset()
			n++
		}
		if err := r.Err(); err != nil {
			return errors.Wrapf(err, "stream is invalid after %d cells", n)
		}
		_, err := fmt.Fprintf(out, "%8d  terminator %s (%d cells, %d bytes)\n", offset, r.Flag(), n, len(data))
		return err
	default:
		return errors.Errorf("invalid format %s", format)
	}
}

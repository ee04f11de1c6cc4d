package codec

import (
	"fmt"
	"io"
	"os"

	"github.com/ValentinKolb/cellwire/cmd/util"
	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// CodecCommands represents the codec command group. The commands work on
	// files only and never contact a server.
	CodecCommands = &cobra.Command{
		Use:   "codec",
		Short: "Encode and decode serialized cell streams offline",
	}

	encodeCmd = &cobra.Command{
		Use:   "encode [mutations.yaml] [out]",
		Short: "Encodes a YAML mutation file into a cell stream",
		Long:  "Encodes a YAML mutation file into a cell stream. Without out, or with -, the stream is written to stdout.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			f, err := util.ReadMutationFile(args[0])
			if err != nil {
				return err
			}
			cs, err := f.ToCells()
			if err != nil {
				return err
			}

			var extra cells.Flag
			if viper.GetBool("flush") {
				extra |= cells.FlagFlush
			}
			if viper.GetBool("eos") {
				extra |= cells.FlagEndOfScan
			}
			stream := Encode(cs, extra)

			out := "-"
			if len(args) > 1 {
				out = args[1]
			}
			if out == "-" {
				_, err = os.Stdout.Write(stream)
				return err
			}
			if err := os.WriteFile(out, stream, 0644); err != nil {
				return errors.Wrapf(err, "failed to write %s", out)
			}
			fmt.Printf("encoded %d cells into %d bytes (%s)\n", len(cs), len(stream), out)
			return nil
		},
	}

	decodeCmd = &cobra.Command{
		Use:   "decode [stream]",
		Short: "Decodes a cell stream and prints its cells",
		Long:  "Decodes a cell stream and prints its cells. Without a file, or with -, the stream is read from stdin.",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			var data []byte
			var err error
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return errors.Wrap(err, "failed to read stream")
			}
			return Dump(os.Stdout, data, viper.GetString("format"))
		},
	}
)

func init() {
	encodeCmd.Flags().Bool("flush", false, util.WrapString("Set the FLUSH flag on the terminator"))
	encodeCmd.Flags().Bool("eos", false, util.WrapString("Set the EOS (end of scan) flag on the terminator"))
	decodeCmd.Flags().String("format", "text", util.WrapString("Output format (text, yaml)"))

	CodecCommands.AddCommand(encodeCmd)
	CodecCommands.AddCommand(decodeCmd)
}

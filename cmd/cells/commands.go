package cells

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ValentinKolb/cellwire/cmd/util"
	"github.com/ValentinKolb/cellwire/lib/cells"
	libUtil "github.com/ValentinKolb/cellwire/lib/util"
	"github.com/ValentinKolb/cellwire/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [table]",
		Short: "Creates a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcTables.CreateTable(args[0]); err != nil {
				return err
			}
			fmt.Println("table created successfully")
			return nil
		},
	}
	dropCmd = &cobra.Command{
		Use:   "drop [table]",
		Short: "Drops a table and all of its cells",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcTables.DropTable(args[0]); err != nil {
				return err
			}
			fmt.Println("table dropped successfully")
			return nil
		},
	}
	existsCmd = &cobra.Command{
		Use:   "exists [table]",
		Short: "Checks if a table exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := rpcTables.TableExists(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("table=%s, exists=%v\n", args[0], ok)
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [table] [row] [family:qualifier] [value]",
		Short: "Inserts a cell",
		Long:  "Inserts a cell. Without --timestamp the server assigns the timestamp.",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			family, qualifier := splitColumn(args[2])
			ts, err := timestampFlag()
			if err != nil {
				return err
			}
			cell := cells.NewInsert(args[1], family, qualifier, ts, []byte(args[3]))
			return applyCell(args[0], cell)
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [table] [row] [family[:qualifier]]",
		Short: "Deletes a row, a column family of a row or a single cell",
		Long:  "Deletes the whole row if no column is given, the column family if only the family is given, and a single cell for family:qualifier.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := timestampFlag()
			if err != nil {
				return err
			}
			var cell cells.Cell
			switch {
			case len(args) == 2:
				cell = cells.NewDeleteRow(args[1], ts)
			case !strings.Contains(args[2], ":"):
				cell = cells.NewDeleteColumnFamily(args[1], args[2], ts)
			default:
				family, qualifier := splitColumn(args[2])
				cell = cells.NewDeleteCell(args[1], family, qualifier, ts)
			}
			return applyCell(args[0], cell)
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [table] [row]",
		Short: "Reads all cells of a row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := rpcTables.GetRow(args[0], args[1])
			if err != nil {
				return err
			}
			return printCells(args[0], row)
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [table] [start-row] [end-row]",
		Short: "Reads all cells of the rows in [start-row, end-row)",
		Long:  "Reads all cells of the rows in [start-row, end-row). Without rows the whole table is read, without end-row everything from start-row on.",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end := "", ""
			if len(args) > 1 {
				start = args[1]
			}
			if len(args) > 2 {
				end = args[2]
			}
			cs, err := rpcTables.Scan(args[0], start, end)
			if err != nil {
				return err
			}
			return printCells(args[0], cs)
		},
	}
	loadCmd = &cobra.Command{
		Use:   "load [file] [table]",
		Short: "Loads a YAML mutation file through a mutator",
		Long:  "Loads a YAML mutation file through a mutator. The table argument overrides the table named in the file.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runLoad,
	}
)

func init() {
	for _, cmd := range []*cobra.Command{setCmd, delCmd} {
		cmd.Flags().String("timestamp", "", util.WrapString("Timestamp of the cell in nanoseconds since the epoch, 'now' or 'null'. Empty lets the server assign it"))
		cmd.Flags().Bool("create", false, util.WrapString("Create the table if it does not exist"))
	}
	for _, cmd := range []*cobra.Command{getCmd, scanCmd} {
		cmd.Flags().String("format", "text", util.WrapString("Output format (text, yaml)"))
	}
	loadCmd.Flags().Int("buffer-size", 64, util.WrapString("Mutator buffer size in KB"))
	loadCmd.Flags().Bool("no-log", false, util.WrapString("Do not write the cells to the commit log of the server"))
	loadCmd.Flags().Bool("no-log-sync", false, util.WrapString("Do not sync the commit log of the server after each batch"))
	loadCmd.Flags().Bool("create", true, util.WrapString("Create the table if it does not exist"))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// splitColumn splits family:qualifier
func splitColumn(column string) (family, qualifier string) {
	family, qualifier, _ = strings.Cut(column, ":")
	return family, qualifier
}

// timestampFlag parses the --timestamp flag
func timestampFlag() (int64, error) {
	return util.ParseTimestamp(viper.GetString("timestamp"))
}

// applyCell validates a cell and sends it as a one-shot SetCells request
func applyCell(table string, cell cells.Cell) error {
	if err := cells.ValidateKey(cell.Key.Row, cell.Key.ColumnFamily, cell.Key.ColumnQualifier); err != nil {
		return err
	}
	applied, err := rpcTables.SetCells(table, []cells.Cell{cell}, util.GetMutatorFlags())
	if err != nil {
		return err
	}
	fmt.Printf("%d cell applied successfully\n", applied)
	return nil
}

// printCells prints cells in the format selected with --format
func printCells(table string, cs []cells.Cell) error {
	switch viper.GetString("format") {
	case "yaml":
		out, err := util.MarshalMutations(table, cs)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	case "text", "":
		for _, c := range cs {
			fmt.Println(c.String())
		}
		fmt.Printf("(%d cells)\n", len(cs))
		return nil
	default:
		return fmt.Errorf("invalid format %s", viper.GetString("format"))
	}
}

// runLoad streams a mutation file through a mutator
func runLoad(_ *cobra.Command, args []string) error {
	f, err := util.ReadMutationFile(args[0])
	if err != nil {
		return err
	}
	table := f.Table
	if len(args) > 1 {
		table = args[1]
	}
	if table == "" {
		return fmt.Errorf("no table given and the file does not name one")
	}

	cs, err := f.ToCells()
	if err != nil {
		return err
	}

	opts := client.MutatorOptions{
		BufferSize: viper.GetInt("buffer-size") * 1024,
		Flags:      util.GetMutatorFlags(),
	}

	start := time.Now()
	m, err := rpcTables.OpenMutator(table, opts)
	if err != nil {
		return err
	}
	if err := m.SetCells(cs); err != nil {
		_ = m.Close()
		return err
	}
	if err := m.Close(); err != nil {
		return err
	}

	stats := m.Stats()
	fmt.Printf("loaded %d cells into %s in %s (%d batches, %s sent, median batch %s)\n",
		stats.Cells, table, time.Since(start).Round(time.Millisecond), stats.Batches,
		libUtil.FormatBytes(int(stats.Bytes)), libUtil.FormatBytes(stats.MedianBytes))
	return nil
}

package cells

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/cellwire/cmd/util"
	"github.com/ValentinKolb/cellwire/lib/cells"
	libUtil "github.com/ValentinKolb/cellwire/lib/util"
	"github.com/ValentinKolb/cellwire/rpc/client"
	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for cellwire servers",
		Long:    "Runs write and read benchmarks against a temporary table. The table is dropped afterwards.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfTable       = "__perf"
	perfValueSize   = 100
	perfNumThreads  = 10
	perfRowSpread   = 1000
	perfMutatorBufK = 64
	perfSkip        = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,scan)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("Size of the cell values in bytes"))
	key = "rows"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("How many different rows to use for the tests"))
	key = "mutator-buffer"
	perfTestCmd.Flags().Int(key, 64, util.WrapString("Buffer size of the mutator in KB"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfValueSize = viper.GetInt("value-size")
	perfRowSpread = max(viper.GetInt("rows"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfMutatorBufK = max(viper.GetInt("mutator-buffer"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for cellwire servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d, Value Size: %d bytes, Rows: %d\n", perfNumThreads, perfValueSize, perfRowSpread)
	fmt.Println()

	// prepare the table
	if ok, err := rpcTables.TableExists(perfTable); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("table %s already exists, drop it first", perfTable)
	}
	if err := rpcTables.CreateTable(perfTable); err != nil {
		return err
	}
	defer func() {
		if err := rpcTables.DropTable(perfTable); err != nil {
			log.Printf("error dropping table %s: %v\n", perfTable, err)
		}
	}()

	fmt.Println("starting tests...")

	value := make([]byte, perfValueSize)
	results := make(map[string]testing.BenchmarkResult)
	var mutatorStats client.MutatorStats

	results["set"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("set") {
			return
		}
		var counter atomic.Int64
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				cell := cells.NewInsert(row(int(counter.Add(1))), "cf", "q", cells.TimestampAutoAssign, value)
				if _, err := rpcTables.SetCells(perfTable, []cells.Cell{cell}, common.MutatorFlagNoLogSync); err != nil {
					log.Printf("(set) - error setting cell: %v\n", err)
				}
			}
		})
	})
	printResult("set", results["set"])

	results["mutator"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("mutator") {
			return
		}
		m, err := rpcTables.OpenMutator(perfTable, client.MutatorOptions{
			BufferSize: perfMutatorBufK * 1024,
			Flags:      common.MutatorFlagNoLogSync,
		})
		if err != nil {
			b.Fatalf("(mutator) - error opening mutator: %v", err)
		}

		var counter atomic.Int64
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				cell := cells.NewInsert(row(int(counter.Add(1))), "cf", "m", cells.TimestampAutoAssign, value)
				if err := m.Set(cell); err != nil {
					log.Printf("(mutator) - error setting cell: %v\n", err)
				}
			}
		})
		if err := m.Close(); err != nil {
			log.Printf("(mutator) - error closing mutator: %v\n", err)
		}
		b.StopTimer()
		mutatorStats = m.Stats()
	})
	printResult("mutator", results["mutator"])
	if mutatorStats.Batches > 0 {
		fmt.Printf("%-20s%d batches, mean %.0f cells/batch, median %s, p99 %s\n", "",
			mutatorStats.Batches, mutatorStats.MeanCells,
			libUtil.FormatBytes(mutatorStats.MedianBytes), libUtil.FormatBytes(mutatorStats.P99Bytes))
	}

	results["get"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("get") {
			return
		}
		var counter atomic.Int64
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := rpcTables.GetRow(perfTable, row(int(counter.Add(1)))); err != nil {
					log.Printf("(get) - error reading row: %v\n", err)
				}
			}
		})
	})
	printResult("get", results["get"])

	results["scan"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("scan") {
			return
		}
		var counter atomic.Int64
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				start := int(counter.Add(1))
				if _, err := rpcTables.Scan(perfTable, row(start), row(start+10)); err != nil {
					log.Printf("(scan) - error scanning rows: %v\n", err)
				}
			}
		})
	})
	printResult("scan", results["scan"])

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, s := range perfSkip {
		if strings.TrimSpace(s) == test {
			return true
		}
	}
	return false
}

// row returns the row key for counter i, rows repeat after perfRowSpread
func row(i int) string {
	return fmt.Sprintf("row-%08d", i%perfRowSpread)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Namespace", "Serializer", "Transport",
		"Threads", "ValueSize", "Rows", "MutatorBufferKB",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetNamespace(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfValueSize),
			strconv.Itoa(perfRowSpread),
			strconv.Itoa(perfMutatorBufK),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}

	return nil
}

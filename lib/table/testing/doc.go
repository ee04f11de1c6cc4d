// Package testing provides standardised tests and benchmarks for
// table implementations that satisfy the table.ITable interface.
//
// The package contains:
//   - testing: a test suite for validating conformance to the ITable contract
//     (timestamp handling, delete semantics, scans, save and load)
//   - benchmark: performance tests for applying streams and reading cells
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(name string) table.ITable {
//		return NewMyTable(name)
//	}
//
//	// Running the standard test suite
//	tabletesting.RunTableTests(t, "MyTable", factory)
//
//	// Running performance benchmarks
//	tabletesting.RunTableBenchmarks(b, "MyTable", factory)
package testing

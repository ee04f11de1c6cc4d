// Package util provides small shared helpers for cellwire.
//
// The package contains:
//   - statistics: a SizeHistogram for tracking the distribution of payload sizes
//     (flushed cell streams, RPC messages) without storing every sample
//   - FormatBytes for human-readable byte counts
package util

package util

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// SizeHistogram tracks the distribution of payload sizes (e.g. flushed cell
// streams) in exponential buckets from bytes to gigabytes.
//
// Thread-safe: all methods are safe for concurrent use
type SizeHistogram struct {
	mutex      sync.RWMutex
	boundaries []int   // upper bound (inclusive) of every bucket but the last
	buckets    []int64 // samples per bucket, the last bucket is unbounded
	count      int64
	sum        int64
	max        int
}

// NewSizeHistogram creates a histogram with buckets from 16 B to 4 GB
func NewSizeHistogram() *SizeHistogram {
	boundaries := []int{
		16, 64, 256, 1024, 4096, // up to 4 KB
		16384, 65536, 262144, 1048576, // up to 1 MB
		4194304, 16777216, 67108864, // up to 64 MB
		268435456, 1073741824, 4294967296, // up to 4 GB
	}
	return &SizeHistogram{
		boundaries: boundaries,
		buckets:    make([]int64, len(boundaries)+1),
	}
}

// AddSample records one size
func (h *SizeHistogram) AddSample(size int) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.buckets[h.bucketIndex(size)]++
	h.count++
	h.sum += int64(size)
	if size > h.max {
		h.max = size
	}
}

// GetCount returns the number of samples
func (h *SizeHistogram) GetCount() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count
}

// GetSum returns the sum of all samples
func (h *SizeHistogram) GetSum() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.sum
}

// GetMax returns the largest sample
func (h *SizeHistogram) GetMax() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.max
}

// AverageSize returns the mean of all samples, 0 without samples
func (h *SizeHistogram) AverageSize() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// MedianEstimate estimates the median from the bucket counts
func (h *SizeHistogram) MedianEstimate() int {
	return h.GetPercentileEstimate(50)
}

// GetPercentileEstimate estimates the given percentile (0-100).
// The estimate is the middle of the bucket the percentile falls into.
func (h *SizeHistogram) GetPercentileEstimate(percentile int) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	if target == 0 {
		target = 1
	}

	var cumulative int64
	for i, count := range h.buckets {
		cumulative += count
		if cumulative >= target {
			return h.bucketEstimate(i)
		}
	}
	return int(h.sum / h.count)
}

// SizeDistribution returns the bucket boundaries and the percentage of samples per bucket.
// The percentages slice has one more entry than boundaries (values above the last boundary).
func (h *SizeHistogram) SizeDistribution() ([]int, []float64) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	percentages := make([]float64, len(h.buckets))
	if h.count == 0 {
		return h.boundaries, percentages
	}
	for i, count := range h.buckets {
		percentages[i] = float64(count) * 100.0 / float64(h.count)
	}
	return h.boundaries, percentages
}

// Reset clears all samples
func (h *SizeHistogram) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.count = 0
	h.sum = 0
	h.max = 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

// String renders a one-line summary, e.g. "n=12 avg=1.2 KB p50=640 B p99=2.5 KB max=3.0 KB"
func (h *SizeHistogram) String() string {
	return fmt.Sprintf("n=%d avg=%s p50=%s p99=%s max=%s",
		h.GetCount(),
		FormatBytes(h.AverageSize()),
		FormatBytes(h.MedianEstimate()),
		FormatBytes(h.GetPercentileEstimate(99)),
		FormatBytes(h.GetMax()))
}

// ----------------------------------------------------------------------------
// Helper
// ----------------------------------------------------------------------------

func (h *SizeHistogram) bucketIndex(size int) int {
	for i, boundary := range h.boundaries {
		if size <= boundary {
			return i
		}
	}
	return len(h.boundaries)
}

func (h *SizeHistogram) bucketEstimate(i int) int {
	switch {
	case i == 0:
		return h.boundaries[0] / 2
	case i < len(h.boundaries):
		return (h.boundaries[i-1] + h.boundaries[i]) / 2
	default:
		return h.boundaries[len(h.boundaries)-1] * 2
	}
}

// FormatBytes renders a byte count with a binary unit suffix
func FormatBytes(n int) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(n)
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d B", n)
	}
	return strings.TrimSuffix(fmt.Sprintf("%.1f", value), ".0") + " " + units[unit]
}

package util

import (
	"sync"
	"testing"
)

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()

	if h.GetCount() != 0 || h.AverageSize() != 0 || h.MedianEstimate() != 0 {
		t.Errorf("empty histogram should report zeros")
	}

	for _, size := range []int{10, 10, 100, 1000, 5000} {
		h.AddSample(size)
	}

	if h.GetCount() != 5 {
		t.Errorf("expected 5 samples, got %d", h.GetCount())
	}
	if h.GetSum() != 6120 {
		t.Errorf("expected sum 6120, got %d", h.GetSum())
	}
	if h.AverageSize() != 1224 {
		t.Errorf("expected average 1224, got %d", h.AverageSize())
	}
	if h.GetMax() != 5000 {
		t.Errorf("expected max 5000, got %d", h.GetMax())
	}

	// 3rd of 5 samples (100) falls into the (64, 256] bucket
	if got := h.MedianEstimate(); got != (64+256)/2 {
		t.Errorf("expected median estimate %d, got %d", (64+256)/2, got)
	}
	// the smallest samples fall into the first bucket
	if got := h.GetPercentileEstimate(10); got != 8 {
		t.Errorf("expected p10 estimate 8, got %d", got)
	}
	// 5000 falls into (4096, 16384]
	if got := h.GetPercentileEstimate(100); got != (4096+16384)/2 {
		t.Errorf("expected p100 estimate %d, got %d", (4096+16384)/2, got)
	}
	if got := h.GetPercentileEstimate(101); got != 0 {
		t.Errorf("invalid percentile should return 0, got %d", got)
	}

	boundaries, percentages := h.SizeDistribution()
	if len(percentages) != len(boundaries)+1 {
		t.Fatalf("expected %d buckets, got %d", len(boundaries)+1, len(percentages))
	}
	if percentages[0] != 40 {
		t.Errorf("expected 40%% in first bucket, got %f", percentages[0])
	}

	h.Reset()
	if h.GetCount() != 0 || h.GetMax() != 0 {
		t.Errorf("histogram not reset")
	}
}

func TestSizeHistogramConcurrent(t *testing.T) {
	h := NewSizeHistogram()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				h.AddSample(i)
			}
		}()
	}
	wg.Wait()

	if h.GetCount() != 8000 {
		t.Errorf("expected 8000 samples, got %d", h.GetCount())
	}
}

func TestFormatBytes(t *testing.T) {
	testCases := map[int]string{
		0:           "0 B",
		1023:        "1023 B",
		1024:        "1 KB",
		1536:        "1.5 KB",
		5 * 1 << 20: "5 MB",
	}
	for in, want := range testCases {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d): expected %q, got %q", in, want, got)
		}
	}
}

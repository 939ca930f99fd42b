package integrity

import (
	"fmt"
	"runtime"
	"time"

	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// memSampler keeps a sliding window of heap samples and flags a sustained
// monotonic increase as a possible leak. The finding is advisory only and is
// never auto-fixed.
type memSampler struct {
	window    int
	threshold float64 // relative growth over a full window
	samples   []uint64
	readHeap  func() uint64
}

func newMemSampler(window int, threshold float64) *memSampler {
	if window <= 1 {
		window = defaultMemoryWindow
	}
	if threshold <= 0 {
		threshold = defaultMemoryGrowthThreshold
	}
	return &memSampler{
		window:    window,
		threshold: threshold,
		readHeap:  liveHeap,
	}
}

func liveHeap() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// sample records one heap reading and reports an issue once the window is
// full, every reading grew over its predecessor, and the total growth across
// the window exceeds the threshold.
func (ms *memSampler) sample(now time.Time) *types.IntegrityIssue {
	ms.samples = append(ms.samples, ms.readHeap())
	if len(ms.samples) > ms.window {
		ms.samples = ms.samples[1:]
	}
	if len(ms.samples) < ms.window {
		return nil
	}

	for i := 1; i < len(ms.samples); i++ {
		if ms.samples[i] <= ms.samples[i-1] {
			return nil
		}
	}
	first, last := ms.samples[0], ms.samples[len(ms.samples)-1]
	if first == 0 {
		return nil
	}
	growth := float64(last-first) / float64(first)
	if growth < ms.threshold {
		return nil
	}

	issue := newIssue(types.IssueMemoryGrowth, types.SeverityLow, "",
		fmt.Sprintf("heap grew %.0f%% over the last %d samples without shrinking", growth*100, ms.window),
		false, "profile the process if growth continues", now)
	return &issue
}

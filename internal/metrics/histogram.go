package metrics

import (
	"sort"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram maps a discretized magnitude to the number of times it occurred.
type Histogram map[int64]int64

// Add increments bucket key by n.
func (h Histogram) Add(key, n int64) {
	h[key] += n
}

// Merge adds every bucket of other into h.
func (h Histogram) Merge(other Histogram) {
	for k, v := range other {
		h[k] += v
	}
}

// Total returns the sum of all bucket counts.
func (h Histogram) Total() int64 {
	var total int64
	for _, v := range h {
		total += v
	}
	return total
}

// Keys returns the bucket keys in ascending order.
func (h Histogram) Keys() []int64 {
	keys := make([]int64, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Clone returns an independent copy of h.
func (h Histogram) Clone() Histogram {
	out := make(Histogram, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Track millisecond buckets up to one hour. Values are shifted by one so
// that a 0ms bucket stays representable.
const hdrHighestMs = int64(60 * 60 * 1000)

func (h Histogram) toHDR() *hdrhistogram.Histogram {
	hist := hdrhistogram.New(1, hdrHighestMs+1, 3)
	for k, v := range h {
		if v <= 0 {
			continue
		}
		// Clamped into the trackable range, so recording cannot fail.
		value := min(max(k+1, hist.LowestTrackableValue()), hist.HighestTrackableValue())
		_ = hist.RecordValues(value, v)
	}
	return hist
}

package analysis

import (
	"math"

	"github.com/montanaflynn/stats"
)

// ByteStats summarizes the value distribution of a buffer.
type ByteStats struct {
	Histogram      [256]int `json:"-"`
	Entropy        float64  `json:"entropy"`
	Mean           float64  `json:"mean"`
	StdDev         float64  `json:"stdDev"`
	PrintableRatio float64  `json:"printableRatio"`
	NullCount      int      `json:"nullCount"`
}

// ComputeStats builds the byte histogram and derives Shannon entropy
// (bits per byte, 0..8), mean, standard deviation and printable ratio.
// An empty buffer yields all zeros.
func ComputeStats(buf []byte) ByteStats {
	var s ByteStats
	if len(buf) == 0 {
		return s
	}

	values := make(stats.Float64Data, len(buf))
	printable := 0
	for i, b := range buf {
		s.Histogram[b]++
		values[i] = float64(b)
		if isPrintable(int(b)) || b == '\t' || b == '\n' || b == '\r' {
			printable++
		}
	}
	s.NullCount = s.Histogram[0]

	total := float64(len(buf))
	for _, n := range s.Histogram {
		if n == 0 {
			continue
		}
		p := float64(n) / total
		s.Entropy -= p * math.Log2(p)
	}

	// Errors only occur on empty input, which is handled above.
	s.Mean, _ = stats.Mean(values)
	s.StdDev, _ = stats.StandardDeviation(values)
	s.PrintableRatio = float64(printable) / total

	return s
}

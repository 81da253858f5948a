package orderbook

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// geometricGrid builds n points spanning [start*lowMult, start*highMult]
// geometrically (equal ratio between consecutive points), then drops any
// point whose smallest-unit value does not differ from the previous
// surviving point by at least minDelta, per spec.md §4.6 point 3.
func geometricGrid(start *big.Rat, lowMult, highMult float64, n int, minDelta *uint256.Int) []*uint256.Int {
	if n <= 0 {
		return nil
	}
	startF, _ := start.Float64()
	if startF <= 0 || math.IsNaN(startF) || math.IsInf(startF, 0) {
		return nil
	}
	low := startF * lowMult
	high := startF * highMult
	if low <= 0 {
		low = startF * 1e-6
	}

	points := make([]*uint256.Int, 0, n)
	var last *uint256.Int
	for i := 0; i < n; i++ {
		var frac float64
		if n == 1 {
			frac = 0
		} else {
			frac = float64(i) / float64(n-1)
		}
		// Geometric interpolation: low * (high/low)^frac.
		v := low * math.Pow(high/low, frac)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		u := floatToUint256(v)
		if last != nil && minDelta != nil && !minDelta.IsZero() {
			diff := new(uint256.Int)
			if u.Cmp(last) >= 0 {
				diff.Sub(u, last)
			} else {
				diff.Sub(last, u)
			}
			if diff.Cmp(minDelta) < 0 {
				continue
			}
		}
		points = append(points, u)
		last = u
	}
	return points
}

func floatToUint256(v float64) *uint256.Int {
	if v < 0 {
		v = 0
	}
	bi, _ := big.NewFloat(v).Int(nil)
	out, overflow := uint256.FromBig(bi)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return out
}

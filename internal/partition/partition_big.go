package partition

import "math/big"

// SplitSpaceBig is SplitSpace's 128-bit counterpart, used for UUID key
// bisection: lo/hi/n follow the same contract, but the key space is a
// big.Int instead of int64 so a UUID parsed as a 128-bit integer
// (internal/core.UUIDToBigInt) can be partitioned without overflow.
func SplitSpaceBig(lo, hi *big.Int, n int) []*big.Int {
	if n < 1 {
		panic("partition: n must be >= 1")
	}
	if hi.Cmp(lo) <= 0 {
		panic("partition: hi must be > lo")
	}

	width := new(big.Int).Sub(hi, lo)
	denom := big.NewInt(int64(n + 1))
	points := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		num := new(big.Int).Mul(big.NewInt(int64(i+1)), width)
		points[i] = new(big.Int).Add(lo, roundDivBig(num, denom))
	}

	one := big.NewInt(1)
	for i := 0; i < n; i++ {
		if points[i].Cmp(lo) <= 0 {
			points[i] = new(big.Int).Add(lo, big.NewInt(int64(i+1)))
		}
	}
	for i := 1; i < n; i++ {
		if points[i].Cmp(points[i-1]) <= 0 {
			points[i] = new(big.Int).Add(points[i-1], one)
		}
	}
	for i := n - 1; i >= 0; i-- {
		if points[i].Cmp(hi) >= 0 {
			points[i] = new(big.Int).Sub(hi, big.NewInt(int64(n-i)))
		}
	}
	for i := 1; i < n; i++ {
		if points[i].Cmp(points[i-1]) <= 0 {
			points[i] = new(big.Int).Add(points[i-1], one)
		}
	}

	return points
}

// roundDivBig computes round(num/denom) using round-half-away-from-
// zero, assuming denom > 0, mirroring roundDiv's int64 behavior.
func roundDivBig(num, denom *big.Int) *big.Int {
	half := new(big.Int).Rsh(denom, 1) // denom/2, denom always even-ish enough for this use
	if num.Sign() >= 0 {
		sum := new(big.Int).Add(num, half)
		return sum.Div(sum, denom)
	}
	neg := new(big.Int).Neg(num)
	sum := new(big.Int).Add(neg, half)
	sum.Div(sum, denom)
	return sum.Neg(sum)
}

// BoundsBig is Bounds's 128-bit counterpart: pairs a checkpoint
// sequence with the enclosing [lo, hi) range.
func BoundsBig(lo, hi *big.Int, checkpoints []*big.Int) [][2]*big.Int {
	ranges := make([][2]*big.Int, 0, len(checkpoints)+1)
	prev := lo
	for _, cp := range checkpoints {
		ranges = append(ranges, [2]*big.Int{prev, cp})
		prev = cp
	}
	ranges = append(ranges, [2]*big.Int{prev, hi})
	return ranges
}

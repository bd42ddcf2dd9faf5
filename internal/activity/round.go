package activity

import (
	"math"
	"math/big"
	"strconv"
)

// Round rounds v to the given number of decimal places, half away from zero,
// operating on the shortest decimal form of the float32 rather than its
// binary value. Round(0.125, 2) is 0.13 and Round(0.285, 2) is 0.29.
func Round(v float32, places int) float32 {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return v
	}

	r, ok := new(big.Rat).SetString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	if !ok {
		return v
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(places)), nil)

	r.Mul(r, new(big.Rat).SetInt(scale))
	neg := r.Sign() < 0
	r.Abs(r)
	r.Add(r, big.NewRat(1, 2))

	q := new(big.Int).Quo(r.Num(), r.Denom())
	if neg {
		q.Neg(q)
	}
	out, _ := new(big.Rat).SetFrac(q, scale).Float32()
	return out
}

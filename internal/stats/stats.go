// Package stats computes the batch statistics used to judge replicate
// agreement: arithmetic mean, population standard deviation, coefficient
// of variation and the scaled derived value.
package stats

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyBatch indicates statistics were requested over zero values.
	ErrEmptyBatch = errors.New("cannot compute statistics over an empty batch")
	// ErrDegenerateInput indicates a zero mean, for which the coefficient
	// of variation is undefined.
	ErrDegenerateInput = errors.New("mean is zero; coefficient of variation undefined")
)

// Precision is the number of decimal places CV and the derived value are rounded to.
const Precision = 2

var (
	hundred = decimal.NewFromInt(100)
	ten     = decimal.NewFromInt(10)
	two     = decimal.NewFromInt(2)
)

// Result holds the statistics computed over a set of replicate values.
// CV and Derived are rounded half-up to Precision places; Mean and StdDev
// are kept at full precision.
type Result struct {
	N       int             `json:"n"`
	Mean    decimal.Decimal `json:"mean"`
	StdDev  decimal.Decimal `json:"std_dev"`
	CV      decimal.Decimal `json:"cv"`
	Derived decimal.Decimal `json:"derived"`
}

// Compute returns the batch statistics for values.
func Compute(values []decimal.Decimal) (Result, error) {
	n := len(values)
	if n == 0 {
		return Result{}, ErrEmptyBatch
	}

	count := decimal.NewFromInt(int64(n))
	mean := decimal.Sum(values[0], values[1:]...).Div(count)
	if mean.IsZero() {
		return Result{}, ErrDegenerateInput
	}

	sq := decimal.Zero
	for _, v := range values {
		d := v.Sub(mean)
		sq = sq.Add(d.Mul(d))
	}
	variance := sq.Div(count)
	std := sqrt(variance)

	return Result{
		N:       n,
		Mean:    mean,
		StdDev:  std,
		CV:      RoundHalfUp(std.Div(mean).Mul(hundred)),
		Derived: RoundHalfUp(mean.Mul(ten)),
	}, nil
}

// RoundHalfUp rounds d to Precision decimal places with ties away from zero.
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(Precision)
}

// sqrtPrecision is the number of decimal places kept by sqrt iterations.
const sqrtPrecision = 24

// sqrt refines a float64 seed with Newton iteration; decimal has no square root.
func sqrt(d decimal.Decimal) decimal.Decimal {
	if d.Sign() <= 0 {
		return decimal.Zero
	}

	x := decimal.NewFromFloat(math.Sqrt(d.InexactFloat64()))
	if x.Sign() <= 0 {
		x = d
	}

	for range 64 {
		next := x.Add(d.DivRound(x, sqrtPrecision)).Div(two).Round(sqrtPrecision)
		if next.Equal(x) {
			break
		}
		x = next
	}
	return x
}

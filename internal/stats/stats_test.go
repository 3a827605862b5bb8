package stats_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/seedlab/internal/stats"
)

func values(vs ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vs))
	for i, v := range vs {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		values  []decimal.Decimal
		mean    string
		std     string
		cv      string
		derived string
	}{
		{
			name:    "identical values",
			values:  values("4.5", "4.5", "4.5"),
			mean:    "4.5",
			std:     "0",
			cv:      "0",
			derived: "45",
		},
		{
			name:    "symmetric spread",
			values:  values("96", "104", "96", "104"),
			mean:    "100",
			std:     "4",
			cv:      "4",
			derived: "1000",
		},
		{
			name:    "single value",
			values:  values("3.217"),
			mean:    "3.217",
			std:     "0",
			cv:      "0",
			derived: "32.17",
		},
		{
			name:    "derived rounds half up",
			values:  values("1.2345", "1.2345"),
			mean:    "1.2345",
			std:     "0",
			cv:      "0",
			derived: "12.35",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stats.Compute(tt.values)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if got.N != len(tt.values) {
				t.Errorf("N = %d, want %d", got.N, len(tt.values))
			}
			if !got.Mean.Equal(decimal.RequireFromString(tt.mean)) {
				t.Errorf("Mean = %s, want %s", got.Mean, tt.mean)
			}
			if !got.StdDev.Equal(decimal.RequireFromString(tt.std)) {
				t.Errorf("StdDev = %s, want %s", got.StdDev, tt.std)
			}
			if !got.CV.Equal(decimal.RequireFromString(tt.cv)) {
				t.Errorf("CV = %s, want %s", got.CV, tt.cv)
			}
			if !got.Derived.Equal(decimal.RequireFromString(tt.derived)) {
				t.Errorf("Derived = %s, want %s", got.Derived, tt.derived)
			}
		})
	}
}

func TestComputeCVRounding(t *testing.T) {
	// mean 3, population std sqrt(2/3) = 0.8165 -> CV 27.2166 -> 27.22
	got, err := stats.Compute(values("2", "3", "4"))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := decimal.RequireFromString("27.22")
	if !got.CV.Equal(want) {
		t.Errorf("CV = %s, want %s", got.CV, want)
	}
}

func TestComputeStdDevPrecision(t *testing.T) {
	tests := []struct {
		name   string
		values []decimal.Decimal
	}{
		{"two thirds variance", values("99", "100", "101")},
		{"large magnitude", values("123456.789", "123457.791", "123455.003")},
		{"tiny spread", values("1.0000001", "1.0000002")},
	}

	tolerance := decimal.New(1, -18)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stats.Compute(tt.values)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}

			n := decimal.NewFromInt(int64(len(tt.values)))
			sq := decimal.Zero
			for _, v := range tt.values {
				d := v.Sub(got.Mean)
				sq = sq.Add(d.Mul(d))
			}
			variance := sq.Div(n)

			if diff := got.StdDev.Mul(got.StdDev).Sub(variance).Abs(); diff.GreaterThan(tolerance) {
				t.Errorf("StdDev^2 - variance = %s, want within %s", diff, tolerance)
			}
		})
	}
}

func TestComputeEmpty(t *testing.T) {
	_, err := stats.Compute(nil)
	if !errors.Is(err, stats.ErrEmptyBatch) {
		t.Errorf("err = %v, want ErrEmptyBatch", err)
	}
}

func TestComputeZeroMean(t *testing.T) {
	_, err := stats.Compute(values("-1", "1"))
	if !errors.Is(err, stats.ErrDegenerateInput) {
		t.Errorf("err = %v, want ErrDegenerateInput", err)
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"3.995", "4"},
		{"3.994", "3.99"},
		{"6.005", "6.01"},
		{"1.125", "1.13"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := stats.RoundHalfUp(decimal.RequireFromString(tt.in))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("RoundHalfUp(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

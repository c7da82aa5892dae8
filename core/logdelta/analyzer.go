// Package logdelta turns a compute-unit log into per-operation costs.
//
// The log holds one integer per line: the remaining budget before and after
// each measured operation. Consecutive values form a pair whose difference is
// what the operation consumed.
package logdelta

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"cu-planner/internal/errors"
)

// Pair is one measured operation
type Pair struct {
	// Index is the pair number, starting at 0
	Index int `json:"index" yaml:"index"`

	// Before is the first value of the pair
	Before int64 `json:"before" yaml:"before"`

	// After is the second value of the pair
	After int64 `json:"after" yaml:"after"`

	// Delta is Before - After
	Delta int64 `json:"delta" yaml:"delta"`
}

// Report summarizes the deltas of a log
type Report struct {
	Pairs []Pair `json:"pairs" yaml:"pairs"`

	Min int64 `json:"min" yaml:"min"`
	Max int64 `json:"max" yaml:"max"`

	// Average is the integer mean, truncated toward zero
	Average int64 `json:"average" yaml:"average"`

	// Mean is the exact mean
	Mean decimal.Decimal `json:"mean" yaml:"mean"`

	// Skipped counts non-blank lines that were not integers
	Skipped int `json:"skipped" yaml:"skipped"`

	// Unpaired is true when a trailing value had no partner and was dropped
	Unpaired bool `json:"unpaired" yaml:"unpaired"`
}

// Deltas returns the bare delta sequence, usable as a cost sequence
func (r *Report) Deltas() []int64 {
	out := make([]int64, len(r.Pairs))
	for i, p := range r.Pairs {
		out[i] = p.Delta
	}
	return out
}

// Analyze reads a log and pairs its values
func Analyze(r io.Reader) (*Report, error) {
	values, skipped, err := readValues(r)
	if err != nil {
		return nil, err
	}

	report := &Report{Skipped: skipped}
	if len(values)%2 != 0 {
		values = values[:len(values)-1]
		report.Unpaired = true
	}
	if len(values) == 0 {
		return nil, errors.Input("log holds no complete value pair").
			WithContext("skipped", skipped)
	}

	sum := decimal.Zero
	report.Pairs = make([]Pair, 0, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		before, after := values[i], values[i+1]
		if (after > 0 && before < math.MinInt64+after) || (after < 0 && before > math.MaxInt64+after) {
			return nil, errors.Newf(errors.TypeInput, "pair %d: %d - %d overflows int64", i/2, before, after).
				WithContext("pair", i/2)
		}
		p := Pair{
			Index:  i / 2,
			Before: before,
			After:  after,
			Delta:  before - after,
		}
		if p.Index == 0 || p.Delta < report.Min {
			report.Min = p.Delta
		}
		if p.Index == 0 || p.Delta > report.Max {
			report.Max = p.Delta
		}
		sum = sum.Add(decimal.NewFromInt(p.Delta))
		report.Pairs = append(report.Pairs, p)
	}

	// the sum can leave int64 range, the average of int64 deltas cannot
	n := decimal.NewFromInt(int64(len(report.Pairs)))
	quotient, _ := sum.QuoRem(n, 0)
	report.Average = quotient.IntPart()
	report.Mean = sum.DivRound(n, 2)
	return report, nil
}

func readValues(r io.Reader) ([]int64, int, error) {
	var values []int64
	skipped := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			skipped++
			continue
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, errors.Wrap(errors.TypeInput, "reading log", err)
	}
	return values, skipped, nil
}

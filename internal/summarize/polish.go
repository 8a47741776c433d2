package summarize

import (
	"math"

	"affynorm/internal/numeric"
)

// PolishOptions bounds the median polish iterations
type PolishOptions struct {
	MaxIterations int
	Epsilon       float64
}

// Polish is the additive decomposition z[i][j] = Overall + Row[i] + Col[j] +
// Residuals[i][j] found by median polish.
type Polish struct {
	Overall    float64
	Row        []float64
	Col        []float64
	Residuals  [][]float64
	Iterations int
	Converged  bool
}

// Fitted returns the column estimates Overall + Col[j]
func (p Polish) Fitted() []float64 {
	out := make([]float64, len(p.Col))
	for j, c := range p.Col {
		out[j] = p.Overall + c
	}
	return out
}

// MedianPolish alternately sweeps row and column medians out of z. NaN
// cells are treated as missing. It stops when the sum of absolute residuals
// changes by less than Epsilon times itself, or after MaxIterations. z is
// not modified.
func MedianPolish(z [][]float64, opts PolishOptions) Polish {
	nr := len(z)
	nc := 0
	if nr > 0 {
		nc = len(z[0])
	}

	res := make([][]float64, nr)
	for i := range z {
		res[i] = append([]float64(nil), z[i]...)
	}
	p := Polish{
		Row:       make([]float64, nr),
		Col:       make([]float64, nc),
		Residuals: res,
	}
	if nr == 0 || nc == 0 {
		p.Converged = true
		return p
	}

	maxIter := opts.MaxIterations
	if maxIter < 1 {
		maxIter = 1
	}

	buf := make([]float64, 0, max(nr, nc))
	var oldSum float64
	for iter := 1; iter <= maxIter; iter++ {
		p.Iterations = iter

		for i := 0; i < nr; i++ {
			d := medianSkipNaN(res[i], &buf)
			if math.IsNaN(d) {
				continue
			}
			for j := range res[i] {
				res[i][j] -= d
			}
			p.Row[i] += d
		}
		if d := medianSkipNaN(p.Col, &buf); !math.IsNaN(d) {
			for j := range p.Col {
				p.Col[j] -= d
			}
			p.Overall += d
		}

		col := make([]float64, nr)
		for j := 0; j < nc; j++ {
			for i := 0; i < nr; i++ {
				col[i] = res[i][j]
			}
			d := medianSkipNaN(col, &buf)
			if math.IsNaN(d) {
				continue
			}
			for i := 0; i < nr; i++ {
				res[i][j] -= d
			}
			p.Col[j] += d
		}
		if d := medianSkipNaN(p.Row, &buf); !math.IsNaN(d) {
			for i := range p.Row {
				p.Row[i] -= d
			}
			p.Overall += d
		}

		var newSum float64
		for i := range res {
			for _, v := range res[i] {
				if !math.IsNaN(v) {
					newSum += math.Abs(v)
				}
			}
		}
		if newSum == 0 || math.Abs(newSum-oldSum) < opts.Epsilon*newSum {
			p.Converged = true
			break
		}
		oldSum = newSum
	}
	return p
}

func medianSkipNaN(x []float64, buf *[]float64) float64 {
	b := (*buf)[:0]
	for _, v := range x {
		if !math.IsNaN(v) {
			b = append(b, v)
		}
	}
	*buf = b
	return numeric.MedianInPlace(b)
}

package iron

import (
	"math"
	"sort"
)

// FitWindow is one local weighted regression of Y on X, valid over
// [Lo, Hi) of the fit axis.
type FitWindow struct {
	Slope     float64
	Intercept float64
	Lo, Hi    float64
}

// At evaluates the window's line at x
func (w FitWindow) At(x float64) float64 {
	return w.Slope*x + w.Intercept
}

// Curve is a fitted correction sampled at sorted, distinct X positions
type Curve struct {
	X []float64
	Y []float64
}

// At interpolates the curve linearly. Positions outside the sampled range
// take the mean of the nearest edgeValues samples; NaN counts as below.
func (c Curve) At(x float64) float64 {
	n := len(c.X)
	if n == 0 {
		return 0
	}
	if math.IsNaN(x) || x < c.X[0] {
		return mean(c.Y[:min(edgeValues, n)])
	}
	if x > c.X[n-1] {
		return mean(c.Y[n-min(edgeValues, n):])
	}
	i := sort.SearchFloat64s(c.X, x)
	if c.X[i] == x {
		return c.Y[i]
	}
	x0, x1 := c.X[i-1], c.X[i]
	t := (x - x0) / (x1 - x0)
	return c.Y[i-1] + t*(c.Y[i]-c.Y[i-1])
}

// windowSums holds prefix sums of the weighted and the unweighted moments
// of centered X
type windowSums struct {
	x0 float64

	w, wx, wy, wxx, wxy []float64
	x, y, xx, xy        []float64
}

func newWindowSums(points []TrainingPoint) *windowSums {
	m := len(points)
	s := &windowSums{
		w:   make([]float64, m+1),
		wx:  make([]float64, m+1),
		wy:  make([]float64, m+1),
		wxx: make([]float64, m+1),
		wxy: make([]float64, m+1),
		x:   make([]float64, m+1),
		y:   make([]float64, m+1),
		xx:  make([]float64, m+1),
		xy:  make([]float64, m+1),
	}
	for _, p := range points {
		s.x0 += p.X
	}
	s.x0 /= float64(m)

	for i, p := range points {
		x := p.X - s.x0
		s.w[i+1] = s.w[i] + p.Weight
		s.wx[i+1] = s.wx[i] + p.Weight*x
		s.wy[i+1] = s.wy[i] + p.Weight*p.Y
		s.wxx[i+1] = s.wxx[i] + p.Weight*x*x
		s.wxy[i+1] = s.wxy[i] + p.Weight*x*p.Y
		s.x[i+1] = s.x[i] + x
		s.y[i+1] = s.y[i] + p.Y
		s.xx[i+1] = s.xx[i] + x*x
		s.xy[i+1] = s.xy[i] + x*p.Y
	}
	return s
}

// line fits the weighted least squares line over points [a, b). A window
// whose weights sum to zero is fitted unweighted. A window without spread
// in X yields a flat line at the mean of Y.
func (s *windowSums) line(a, b int) (slope, intercept float64) {
	sw := s.w[b] - s.w[a]
	sx, sy := s.wx[b]-s.wx[a], s.wy[b]-s.wy[a]
	sxx, sxy := s.wxx[b]-s.wxx[a], s.wxy[b]-s.wxy[a]
	if !(sw > 0) || math.IsInf(sw, 0) {
		sw = float64(b - a)
		sx, sy = s.x[b]-s.x[a], s.y[b]-s.y[a]
		sxx, sxy = s.xx[b]-s.xx[a], s.xy[b]-s.xy[a]
	}
	mx := sx / sw
	my := sy / sw
	vxx := sxx/sw - mx*mx
	cxy := sxy/sw - mx*my

	if vxx <= 1e-12 {
		return 0, my
	}
	slope = cxy / vxx
	intercept = my - slope*mx - slope*s.x0
	return slope, intercept
}

// windowWidth converts the window fraction into a point count in [min(2,m), m]
func windowWidth(m int, fraction float64) int {
	w := int(math.Round(fraction * float64(m)))
	if w < 2 {
		w = 2
	}
	if w > m {
		w = m
	}
	return w
}

// assignWeights sets each point's pseudo-density weight from the spread of X
// in a window of w neighbours. points must be sorted by X. Weights are
// relative to the tightest window, which gets weight 1.
func assignWeights(points []TrainingPoint, w int, exponent float64) {
	m := len(points)
	if exponent == 0 || m < 2 {
		for i := range points {
			points[i].Weight = 1
		}
		return
	}

	x0 := points[m/2].X
	sx := make([]float64, m+1)
	sxx := make([]float64, m+1)
	for i, p := range points {
		d := p.X - x0
		sx[i+1] = sx[i] + d
		sxx[i+1] = sxx[i] + d*d
	}

	spread := make([]float64, m)
	tightest := math.Inf(1)
	for i := range points {
		a := i - w/2
		if a < 0 {
			a = 0
		}
		if a > m-w {
			a = m - w
		}
		b := a + w
		k := float64(b - a)
		mu := (sx[b] - sx[a]) / k
		v := (sxx[b]-sxx[a])/k - mu*mu
		spread[i] = math.Max(math.Sqrt(math.Max(v, 0)), minSpread)
		tightest = math.Min(tightest, spread[i])
	}

	for i := range points {
		points[i].Weight = math.Exp(exponent * (math.Log(tightest) - math.Log(spread[i])))
	}
}

// fitCurve sorts points by X, fits overlapping windows of the given width
// and sets every point's Fitted value to the mean prediction of the windows
// covering it. It returns the de-duplicated curve and the windows.
func fitCurve(points []TrainingPoint, fraction, exponent float64) (Curve, []FitWindow) {
	m := len(points)
	if m == 0 {
		return Curve{}, nil
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].X < points[j].X })

	w := windowWidth(m, fraction)
	assignWeights(points, w, exponent)
	sums := newWindowSums(points)

	nw := m - w + 1
	windows := make([]FitWindow, nw)
	slopeSum := make([]float64, nw+1)
	interSum := make([]float64, nw+1)
	for s := 0; s < nw; s++ {
		slope, intercept := sums.line(s, s+w)
		hi := math.Inf(1)
		if s+w < m {
			hi = points[s+w].X
		}
		windows[s] = FitWindow{Slope: slope, Intercept: intercept, Lo: points[s].X, Hi: hi}
		slopeSum[s+1] = slopeSum[s] + slope
		interSum[s+1] = interSum[s] + intercept
	}

	for j := range points {
		lo := j - w + 1
		if lo < 0 {
			lo = 0
		}
		hi := j
		if hi > nw-1 {
			hi = nw - 1
		}
		k := float64(hi - lo + 1)
		slope := (slopeSum[hi+1] - slopeSum[lo]) / k
		intercept := (interSum[hi+1] - interSum[lo]) / k
		points[j].Fitted = slope*points[j].X + intercept
		points[j].Residual = points[j].Y - points[j].Fitted
	}

	return curveOf(points), windows
}

// fitLine fits one weighted line over every point
func fitLine(points []TrainingPoint, exponent float64) FitWindow {
	m := len(points)
	if m == 0 {
		return FitWindow{}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].X < points[j].X })
	assignWeights(points, m, exponent)
	slope, intercept := newWindowSums(points).line(0, m)

	fw := FitWindow{Slope: slope, Intercept: intercept, Lo: points[0].X, Hi: math.Inf(1)}
	for j := range points {
		points[j].Fitted = fw.At(points[j].X)
		points[j].Residual = points[j].Y - points[j].Fitted
	}
	return fw
}

// curveOf collapses points sorted by X into a curve, averaging the fitted
// values of points that share an X position.
func curveOf(points []TrainingPoint) Curve {
	c := Curve{
		X: make([]float64, 0, len(points)),
		Y: make([]float64, 0, len(points)),
	}
	for i := 0; i < len(points); {
		j := i
		var sum float64
		for j < len(points) && points[j].X == points[i].X {
			sum += points[j].Fitted
			j++
		}
		c.X = append(c.X, points[i].X)
		c.Y = append(c.Y, sum/float64(j-i))
		i = j
	}
	return c
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var s float64
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}

package density

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultGridSize is the number of density evaluation points. It is
	// also half the FFT length used for the convolution.
	DefaultGridSize = 16384

	// kernelCut widens the mass grid beyond the data range, in bandwidths.
	kernelCut = 7.0
	// outputCut trims the evaluation grid back inside the mass grid.
	outputCut = 4.0
)

// Options controls the kernel density estimate
type Options struct {
	// GridSize is rounded up to the next power of two.
	GridSize int
	// Adjust multiplies the Silverman bandwidth.
	Adjust float64
}

// DefaultOptions returns the options used by the background correctors
func DefaultOptions() Options {
	return Options{
		GridSize: DefaultGridSize,
		Adjust:   1.0,
	}
}

// Density is a kernel density estimate evaluated on a regular grid
type Density struct {
	X         []float64
	Y         []float64
	Bandwidth float64
}

// Mode returns the grid point with the largest density. Ties resolve to the
// lowest x.
func (d Density) Mode() float64 {
	if len(d.X) == 0 {
		return 0
	}
	best := 0
	for i := 1; i < len(d.Y); i++ {
		if d.Y[i] > d.Y[best] {
			best = i
		}
	}
	return d.X[best]
}

// Estimate computes an Epanechnikov kernel density estimate of x. Weights
// may be nil for an unweighted estimate. The sample must contain at least two
// distinct values; callers handle the constant case (see ModeWeighted).
func Estimate(x, weights []float64, opts Options) Density {
	n := nextPow2(opts.GridSize)
	if opts.Adjust <= 0 {
		opts.Adjust = 1
	}

	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	bw := Bandwidth(sorted) * opts.Adjust
	lo := sorted[0] - kernelCut*bw
	hi := sorted[len(sorted)-1] + kernelCut*bw

	mass := massDist(x, weights, lo, hi, n)
	kords := kernelOrdinates(lo, hi, bw, n)
	dens := convolve(mass, kords)

	xords := make([]float64, n)
	for i := range xords {
		xords[i] = lo + float64(i)*(hi-lo)/float64(n-1)
	}

	from := lo + outputCut*bw
	to := hi - outputCut*bw
	out := Density{
		X:         make([]float64, n),
		Y:         make([]float64, n),
		Bandwidth: bw,
	}
	for i := range out.X {
		out.X[i] = from + float64(i)*(to-from)/float64(n-1)
	}
	interpolate(xords, dens, out.X, out.Y)
	return out
}

// Bandwidth returns Silverman's rule of thumb bandwidth for a sorted sample:
// 0.9 * min(sd, IQR/1.34) * n^(-1/5).
func Bandwidth(sorted []float64) float64 {
	n := float64(len(sorted))
	sd := stat.StdDev(sorted, nil)
	iqr := stat.Quantile(0.75, stat.LinInterp, sorted, nil) - stat.Quantile(0.25, stat.LinInterp, sorted, nil)

	lo := math.Min(sd, iqr/1.34)
	if lo <= 0 || math.IsNaN(lo) {
		switch {
		case sd > 0:
			lo = sd
		case sorted[0] != 0:
			lo = math.Abs(sorted[0])
		default:
			lo = 1
		}
	}
	return 0.9 * lo * math.Pow(n, -0.2)
}

// massDist spreads each observation linearly over its two neighbouring grid
// points. The returned slice is 2n long, zero padded for the FFT.
func massDist(x, weights []float64, lo, hi float64, n int) []float64 {
	y := make([]float64, 2*n)
	delta := (hi - lo) / float64(n-1)
	ixmax := n - 2

	var total float64
	for i, v := range x {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		total += w

		pos := (v - lo) / delta
		ix := int(math.Floor(pos))
		fx := pos - float64(ix)
		switch {
		case ix >= 0 && ix <= ixmax:
			y[ix] += w * (1 - fx)
			y[ix+1] += w * fx
		case ix == -1:
			y[0] += w * fx
		case ix == ixmax+1:
			y[ix] += w * (1 - fx)
		}
	}

	if total > 0 {
		for i := 0; i < n; i++ {
			y[i] /= total
		}
	}
	return y
}

// kernelOrdinates evaluates the kernel on the symmetric FFT grid.
func kernelOrdinates(lo, hi, bw float64, n int) []float64 {
	k := make([]float64, 2*n)
	for i := 0; i <= n; i++ {
		k[i] = float64(i) / float64(2*n-1) * 2 * (hi - lo)
	}
	for i := n + 1; i < 2*n; i++ {
		k[i] = -k[2*n-i]
	}
	for i, v := range k {
		k[i] = epanechnikov(v, bw)
	}
	return k
}

func epanechnikov(x, bw float64) float64 {
	a := bw * math.Sqrt(5)
	ax := math.Abs(x)
	if ax >= a {
		return 0
	}
	return 0.75 * (1 - (ax/a)*(ax/a)) / a
}

// convolve returns the first half of the circular convolution of mass and
// kernel, clamped at zero.
func convolve(mass, kernel []float64) []float64 {
	size := len(mass)
	fft := fourier.NewCmplxFFT(size)

	y := make([]complex128, size)
	k := make([]complex128, size)
	for i := range mass {
		y[i] = complex(mass[i], 0)
		k[i] = complex(kernel[i], 0)
	}
	yc := fft.Coefficients(nil, y)
	kc := fft.Coefficients(nil, k)
	for i := range yc {
		yc[i] *= cmplx.Conj(kc[i])
	}
	seq := fft.Sequence(nil, yc)

	n := size / 2
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Max(0, real(seq[i])/float64(size))
	}
	return out
}

// interpolate evaluates the piecewise linear curve (x, y) at u. x must be
// increasing. Points outside the curve take the nearest end value.
func interpolate(x, y, u, dst []float64) {
	last := len(x) - 1
	for i, v := range u {
		switch {
		case v <= x[0]:
			dst[i] = y[0]
		case v >= x[last]:
			dst[i] = y[last]
		default:
			j := sort.SearchFloat64s(x, v)
			if x[j] == v {
				dst[i] = y[j]
				continue
			}
			t := (v - x[j-1]) / (x[j] - x[j-1])
			dst[i] = y[j-1] + t*(y[j]-y[j-1])
		}
	}
}

func nextPow2(n int) int {
	if n < 2 {
		return 2
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

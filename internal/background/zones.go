package background

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"affynorm/internal/chipset"
)

// minIntensity is the lowest raw intensity the zone model works with
const minIntensity = 0.5

// ZoneOptions configures the zone-weighted correction
type ZoneOptions struct {
	Count         int
	Smooth        float64
	NoiseFraction float64
	LowFraction   float64
}

// Zone is the background estimate of one rectangular region
type Zone struct {
	CenterX, CenterY float64
	Background       float64
	Noise            float64
	Points           int
}

// ZoneGrid splits a rows x cols surface into approximately count zones
type ZoneGrid struct {
	Rows, Cols     int
	ZonesX, ZonesY int
	width, height  float64
}

// NewZoneGrid lays out zones as close to square as count allows
func NewZoneGrid(rows, cols, count int) ZoneGrid {
	if count < 1 {
		count = 1
	}
	gx := int(math.Round(math.Sqrt(float64(count))))
	if gx < 1 {
		gx = 1
	}
	gy := (count + gx - 1) / gx
	return ZoneGrid{
		Rows:   rows,
		Cols:   cols,
		ZonesX: gx,
		ZonesY: gy,
		width:  float64(cols) / float64(gx),
		height: float64(rows) / float64(gy),
	}
}

// Len returns the number of zones
func (g ZoneGrid) Len() int { return g.ZonesX * g.ZonesY }

// ZoneOf returns the zone index of cell (x, y)
func (g ZoneGrid) ZoneOf(x, y int) int {
	zx := int(float64(x) / g.width)
	zy := int(float64(y) / g.height)
	if zx >= g.ZonesX {
		zx = g.ZonesX - 1
	}
	if zy >= g.ZonesY {
		zy = g.ZonesY - 1
	}
	return zy*g.ZonesX + zx
}

func (g ZoneGrid) center(k int) (float64, float64) {
	zx, zy := k%g.ZonesX, k/g.ZonesX
	return (float64(zx) + 0.5) * g.width, (float64(zy) + 0.5) * g.height
}

// EstimateZones computes the background and noise of every zone from the
// lowest LowFraction of its unmasked intensities. A zone with fewer than two
// usable points has zero noise; an empty zone has zero background.
func EstimateZones(signal chipset.SignalVector, mask []bool, layout chipset.ProbeLayout, opts ZoneOptions) (ZoneGrid, []Zone) {
	rows, cols := layout.Geometry()
	grid := NewZoneGrid(rows, cols, opts.Count)

	members := make([][]float64, grid.Len())
	for i, v := range signal {
		if mask != nil && mask[i] {
			continue
		}
		x, y := layout.Location(i)
		if x < 0 || math.IsNaN(v) {
			continue
		}
		k := grid.ZoneOf(x, y)
		members[k] = append(members[k], math.Max(v, minIntensity))
	}

	zones := make([]Zone, grid.Len())
	for k, vals := range members {
		cx, cy := grid.center(k)
		zones[k] = Zone{CenterX: cx, CenterY: cy}
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		n := int(math.Ceil(opts.LowFraction * float64(len(vals))))
		if n < 1 {
			n = 1
		}
		low := vals[:n]
		zones[k].Points = n
		zones[k].Background = stat.Mean(low, nil)
		if n >= 2 {
			zones[k].Noise = stat.StdDev(low, nil)
		}
	}
	return grid, zones
}

// Zones returns the zone-weighted corrected copy of signal. Every cell gets
// an inverse squared distance weighted average of all zone backgrounds and
// noise levels and is floored at NoiseFraction times that noise. Probes with
// no known location use the unweighted zone average.
func Zones(signal chipset.SignalVector, mask []bool, layout chipset.ProbeLayout, opts ZoneOptions) chipset.SignalVector {
	_, zones := EstimateZones(signal, mask, layout, opts)

	var flatB, flatN float64
	for _, z := range zones {
		flatB += z.Background
		flatN += z.Noise
	}
	flatB /= float64(len(zones))
	flatN /= float64(len(zones))

	out := make(chipset.SignalVector, len(signal))
	for i, v := range signal {
		b, n := flatB, flatN
		if x, y := layout.Location(i); x >= 0 {
			b, n = weighted(zones, float64(x), float64(y), opts.Smooth)
		}
		out[i] = math.Max(math.Max(v, minIntensity)-b, opts.NoiseFraction*n)
	}
	return out
}

func weighted(zones []Zone, x, y, smooth float64) (float64, float64) {
	var sw, sb, sn float64
	for _, z := range zones {
		dx, dy := x-z.CenterX, y-z.CenterY
		w := 1 / (dx*dx + dy*dy + smooth)
		sw += w
		sb += w * z.Background
		sn += w * z.Noise
	}
	return sb / sw, sn / sw
}

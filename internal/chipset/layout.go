package chipset

import (
	"encoding/binary"
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Probeset groups the probes that measure one feature. PM and MM hold probe
// indices into the chip signal; MM is empty for PM-only designs.
type Probeset struct {
	Name string
	PM   []int
	MM   []int
}

// ProbeLayout maps probes to probesets and physical positions. It is
// consumed read-only and must be safe for concurrent use.
type ProbeLayout interface {
	NumProbes() int
	// Geometry returns the chip surface size in cells.
	Geometry() (rows, cols int)
	// Location returns the physical cell of probe i, or (-1, -1) if unknown.
	Location(i int) (x, y int)
	Probesets() []Probeset
	IsExcluded(probeset string) bool
	IsSpikeIn(probeset string) bool
	// Duplicates returns, for every probe, the index of the first probe that
	// shares its physical cell, or -1 if the probe is the first (or only) one.
	Duplicates() []int
}

// Layout is the in-memory ProbeLayout built by loaders
type Layout struct {
	rows, cols int
	xs, ys     []int
	sets       []Probeset
	excluded   map[string]bool
	spikeIn    map[string]bool
	dups       []int
}

// Position is the physical cell of a probe
type Position struct {
	X, Y int
}

// NewLayout builds a layout for probes at the given positions. Positions with
// negative coordinates are treated as unknown. Probeset indices must be in
// range; callers validate them before construction.
func NewLayout(rows, cols int, positions []Position, sets []Probeset) *Layout {
	l := &Layout{
		rows:     rows,
		cols:     cols,
		xs:       make([]int, len(positions)),
		ys:       make([]int, len(positions)),
		sets:     sets,
		excluded: make(map[string]bool),
		spikeIn:  make(map[string]bool),
		dups:     make([]int, len(positions)),
	}

	first := make(map[Position]int, len(positions))
	for i, p := range positions {
		l.xs[i], l.ys[i] = p.X, p.Y
		l.dups[i] = -1
		if p.X < 0 || p.Y < 0 {
			l.xs[i], l.ys[i] = -1, -1
			continue
		}
		if j, ok := first[p]; ok {
			l.dups[i] = j
			continue
		}
		first[p] = i
	}
	return l
}

// Exclude marks probesets whose probes never take part in normalization
func (l *Layout) Exclude(names ...string) {
	for _, n := range names {
		l.excluded[n] = true
	}
}

// MarkSpikeIn marks probesets as spike-in controls
func (l *Layout) MarkSpikeIn(names ...string) {
	for _, n := range names {
		l.spikeIn[n] = true
	}
}

func (l *Layout) NumProbes() int { return len(l.xs) }

func (l *Layout) Geometry() (int, int) { return l.rows, l.cols }

func (l *Layout) Location(i int) (int, int) { return l.xs[i], l.ys[i] }

func (l *Layout) Probesets() []Probeset { return l.sets }

func (l *Layout) IsExcluded(name string) bool { return l.excluded[name] }

func (l *Layout) IsSpikeIn(name string) bool { return l.spikeIn[name] }

func (l *Layout) Duplicates() []int { return l.dups }

// Fingerprint identifies a layout by its probe count, geometry and probeset
// membership. Two layouts with the same fingerprint index probes identically.
func Fingerprint(layout ProbeLayout) string {
	h, _ := blake2b.New256(nil)

	var buf [8]byte
	putInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	}

	rows, cols := layout.Geometry()
	putInt(layout.NumProbes())
	putInt(rows)
	putInt(cols)

	sets := append([]Probeset(nil), layout.Probesets()...)
	sort.SliceStable(sets, func(i, j int) bool { return sets[i].Name < sets[j].Name })
	for _, ps := range sets {
		h.Write([]byte(ps.Name))
		h.Write([]byte{0})
		putInt(len(ps.PM))
		for _, i := range ps.PM {
			putInt(i)
		}
		putInt(len(ps.MM))
		for _, i := range ps.MM {
			putInt(i)
		}
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

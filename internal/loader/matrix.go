package loader

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"affynorm/internal/chipset"
	apperrors "affynorm/internal/errors"
)

// Fixed columns of a probe matrix. Every other column is a chip.
const (
	ColProbeID  = "probe_id"
	ColProbeset = "probeset"
	ColX        = "x"
	ColY        = "y"
	// ColMMOf names the PM probe a mismatch row belongs to. Optional.
	ColMMOf = "mm_of"
)

// SpikeInPrefix marks control probesets excluded from normalization fits
const SpikeInPrefix = "AFFX-"

type columns struct {
	probeID, probeset, x, y, mmOf int
	chips                         []int
	names                         []string
}

func parseHeader(header []string) (*columns, error) {
	c := &columns{probeID: -1, probeset: -1, x: -1, y: -1, mmOf: -1}
	seen := make(map[string]bool, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			return nil, apperrors.NewParsingError(fmt.Sprintf("empty column name at position %d", i+1), nil)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, apperrors.NewParsingError(fmt.Sprintf("duplicate column %q", name), nil)
		}
		seen[key] = true

		switch key {
		case ColProbeID:
			c.probeID = i
		case ColProbeset:
			c.probeset = i
		case ColX:
			c.x = i
		case ColY:
			c.y = i
		case ColMMOf:
			c.mmOf = i
		default:
			c.chips = append(c.chips, i)
			c.names = append(c.names, name)
		}
	}

	for col, idx := range map[string]int{ColProbeID: c.probeID, ColProbeset: c.probeset, ColX: c.x, ColY: c.y} {
		if idx < 0 {
			return nil, apperrors.NewParsingError(fmt.Sprintf("missing required column %q", col), nil)
		}
	}
	if len(c.chips) == 0 {
		return nil, apperrors.NewParsingError("probe matrix has no chip columns", nil)
	}
	return c, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// coordinate parses a probe coordinate. Empty or negative means unknown.
func coordinate(s string, line int, col string) (int, error) {
	if s == "" {
		return -1, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperrors.NewParsingError(fmt.Sprintf("line %d: invalid %s coordinate %q", line, col, s), err).
			WithContext("line", line)
	}
	if v < 0 {
		return -1, nil
	}
	return v, nil
}

// intensity parses a chip cell. ok is false for unparsable or non-finite
// values.
func intensity(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

type rawChip struct {
	pm, mm []float64
	bad    []bool
}

// build assembles a chipset from a header and data rows. firstLine is the
// source line number of rows[0], used in error messages. Mismatch rows are
// folded into Chip.Mismatch at the index of the PM probe they name.
func build(header []string, rows [][]string, firstLine int, origin string, exclude []string) (*chipset.Chipset, *Report, error) {
	cols, err := parseHeader(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		positions []chipset.Position
		pmIndex   = make(map[string]int)
		setOrder  []string
		setPM     = make(map[string][]int)
		mmRows    []struct {
			of   string
			line int
			row  []string
		}
		chips  = make([]rawChip, len(cols.chips))
		report = &Report{Origin: origin, Chips: cols.names}
		maxX   = -1
		maxY   = -1
	)

	for r, row := range rows {
		line := firstLine + r
		if isBlank(row) {
			continue
		}
		id := cell(row, cols.probeID)
		if id == "" {
			return nil, nil, apperrors.NewParsingError(fmt.Sprintf("line %d: empty probe_id", line), nil).WithContext("line", line)
		}
		if of := cell(row, cols.mmOf); of != "" {
			mmRows = append(mmRows, struct {
				of   string
				line int
				row  []string
			}{of, line, row})
			continue
		}
		if _, dup := pmIndex[id]; dup {
			return nil, nil, apperrors.NewParsingError(fmt.Sprintf("line %d: duplicate probe_id %q", line, id), nil).WithContext("line", line)
		}

		x, err := coordinate(cell(row, cols.x), line, ColX)
		if err != nil {
			return nil, nil, err
		}
		y, err := coordinate(cell(row, cols.y), line, ColY)
		if err != nil {
			return nil, nil, err
		}
		if x < 0 || y < 0 {
			x, y = -1, -1
		}
		maxX, maxY = max(maxX, x), max(maxY, y)

		idx := len(positions)
		pmIndex[id] = idx
		positions = append(positions, chipset.Position{X: x, Y: y})

		if ps := cell(row, cols.probeset); ps != "" {
			if _, ok := setPM[ps]; !ok {
				setOrder = append(setOrder, ps)
			}
			setPM[ps] = append(setPM[ps], idx)
		}

		for j, ci := range cols.chips {
			v, ok := intensity(cell(row, ci))
			chips[j].pm = append(chips[j].pm, v)
			chips[j].bad = append(chips[j].bad, !ok)
			if !ok {
				report.BadCells++
			}
		}
	}

	n := len(positions)
	if n == 0 {
		return nil, nil, apperrors.NewParsingError("probe matrix has no probe rows", nil)
	}

	hasMM := len(mmRows) > 0
	if hasMM {
		for j := range chips {
			chips[j].mm = make([]float64, n)
		}
	}
	for _, m := range mmRows {
		idx, ok := pmIndex[m.of]
		if !ok {
			return nil, nil, apperrors.NewParsingError(fmt.Sprintf("line %d: mismatch row refers to unknown probe %q", m.line, m.of), nil).
				WithContext("line", m.line)
		}
		for j, ci := range cols.chips {
			v, ok := intensity(cell(m.row, ci))
			if !ok {
				report.BadCells++
				chips[j].bad[idx] = true
			}
			chips[j].mm[idx] = v
		}
	}

	sets := make([]chipset.Probeset, len(setOrder))
	var spikes []string
	for i, name := range setOrder {
		sets[i] = chipset.Probeset{Name: name, PM: setPM[name]}
		if strings.HasPrefix(name, SpikeInPrefix) {
			spikes = append(spikes, name)
		}
	}

	layout := chipset.NewLayout(maxY+1, maxX+1, positions, sets)
	layout.MarkSpikeIn(spikes...)
	for _, name := range exclude {
		if _, ok := setPM[name]; ok {
			layout.Exclude(name)
			report.Excluded++
		}
	}
	report.Probes = n
	report.Probesets = len(sets)
	report.SpikeIns = len(spikes)
	report.Mismatch = hasMM

	cs := chipset.New(layout)
	for j, name := range cols.names {
		chip := chipset.NewChip(name, chips[j].pm)
		chip.Origin = origin
		if hasMM {
			chip.Mismatch = chips[j].mm
		}
		for i, bad := range chips[j].bad {
			if bad {
				chip.SetMask(i, chipset.MaskQC)
				chip.Corrupt = true
			}
		}
		if chip.Corrupt {
			report.Corrupt = append(report.Corrupt, name)
		}
		if err := cs.Add(chip); err != nil {
			return nil, nil, err
		}
	}
	return cs, report, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

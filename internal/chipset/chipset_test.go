package chipset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "affynorm/internal/errors"
)

func testLayout() *Layout {
	positions := []Position{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {1, 1}, {-1, 0}}
	sets := []Probeset{
		{Name: "gene_a", PM: []int{0, 1}},
		{Name: "AFFX-spike", PM: []int{2}},
		{Name: "gene_b", PM: []int{3, 4}},
	}
	l := NewLayout(2, 2, positions, sets)
	l.MarkSpikeIn("AFFX-spike")
	return l
}

func TestLayoutDuplicates(t *testing.T) {
	l := testLayout()
	assert.Equal(t, []int{-1, -1, -1, -1, 3, -1}, l.Duplicates())

	x, y := l.Location(5)
	assert.Equal(t, -1, x)
	assert.Equal(t, -1, y)

	rows, cols := l.Geometry()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
}

func TestBuildMask(t *testing.T) {
	l := testLayout()

	tests := []struct {
		name     string
		chip     *Chip
		expected []bool
	}{
		{
			name:     "layout only",
			chip:     nil,
			expected: []bool{false, false, true, false, false, true},
		},
		{
			name:     "manual and qc flags",
			chip:     &Chip{Mask: []MaskFlag{MaskManual, 0, 0, MaskQC, 0, 0}},
			expected: []bool{true, false, true, true, false, true},
		},
		{
			name:     "below floor is not an exclusion",
			chip:     &Chip{Mask: []MaskFlag{MaskBelowFloor, 0, 0, 0, 0, 0}},
			expected: []bool{false, false, true, false, false, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildMask(l, tt.chip))
		})
	}
}

func TestBuildMaskWithoutProbesets(t *testing.T) {
	l := NewLayout(1, 3, []Position{{0, 0}, {1, 0}, {2, 0}}, nil)
	assert.Equal(t, []bool{false, false, false}, BuildMask(l, nil))
}

func TestChipsetAdd(t *testing.T) {
	cs := New(testLayout())

	require.NoError(t, cs.Add(NewChip("a", SignalVector{1, 2, 3, 4, 5, 6})))
	require.NoError(t, cs.Add(NewChip("b", SignalVector{1, 2, 3, 4, 5, 6})))
	assert.Equal(t, 2, cs.Len())
	assert.Equal(t, []string{"a", "b"}, cs.Names())

	err := cs.Add(NewChip("short", SignalVector{1, 2}))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLayout))

	err = cs.Add(&Chip{Name: "mm", Signal: make(SignalVector, 6), Mismatch: make(SignalVector, 3)})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLayout))

	err = cs.Add(NewChip("a", make(SignalVector, 6)))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	c, ok := cs.Chip("b")
	require.True(t, ok)
	assert.Equal(t, "b", c.Name)
	_, ok = cs.Chip("missing")
	assert.False(t, ok)
}

func TestChipsetAffinity(t *testing.T) {
	l := testLayout()
	cs := New(l)
	assert.Nil(t, cs.Affinity())

	model := &AffinityModel{Fingerprint: Fingerprint(l)}
	require.NoError(t, cs.SetAffinity(model))
	assert.Same(t, model, cs.Affinity())

	err := cs.SetAffinity(&AffinityModel{Fingerprint: "other"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLayout))
	assert.Same(t, model, cs.Affinity())
}

func TestFingerprint(t *testing.T) {
	a := testLayout()
	b := testLayout()
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 32)

	c := NewLayout(2, 2, []Position{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {1, 1}, {-1, 0}},
		[]Probeset{{Name: "gene_a", PM: []int{0}}})
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestMarkBelowFloor(t *testing.T) {
	c := NewChip("a", SignalVector{0, 5, -1, 10})
	assert.Equal(t, 2, c.MarkBelowFloor(0))
	assert.True(t, c.Masked(0))
	assert.False(t, c.Masked(1))
	assert.True(t, c.Masked(2))

	clone := c.Signal.Clone()
	clone[1] = 99
	assert.Equal(t, 5.0, c.Signal[1])
}

package exporter

import (
	"encoding/json"
	"errors"
	"math"
	"os"

	"affynorm/internal/chipset"
	apperrors "affynorm/internal/errors"
	"affynorm/internal/files"
)

// ModelFormatVersion is bumped when the affinity model file changes shape
const ModelFormatVersion = 1

// nullableFloat encodes NaN as JSON null
type nullableFloat float64

func (f nullableFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *nullableFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = nullableFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = nullableFloat(v)
	return nil
}

type probesetFile struct {
	Overall nullableFloat   `json:"overall"`
	Probe   []nullableFloat `json:"probe"`
	Chip    []nullableFloat `json:"chip"`
}

type modelFile struct {
	Version     int                     `json:"version"`
	Fingerprint string                  `json:"fingerprint"`
	Chips       []string                `json:"chips"`
	Probesets   map[string]probesetFile `json:"probesets"`
}

func toNullable(xs []float64) []nullableFloat {
	out := make([]nullableFloat, len(xs))
	for i, x := range xs {
		out[i] = nullableFloat(x)
	}
	return out
}

func fromNullable(xs []nullableFloat) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

// SaveAffinityModel writes model as JSON. Missing effects are stored as null.
func SaveAffinityModel(model *chipset.AffinityModel, path string) error {
	file := modelFile{
		Version:     ModelFormatVersion,
		Fingerprint: model.Fingerprint,
		Chips:       model.Chips,
		Probesets:   make(map[string]probesetFile, len(model.Probesets)),
	}
	for name, ps := range model.Probesets {
		file.Probesets[name] = probesetFile{
			Overall: nullableFloat(ps.Overall),
			Probe:   toNullable(ps.Probe),
			Chip:    toNullable(ps.Chip),
		}
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("failed to encode affinity model", err)
	}
	return files.WriteAtomic(path, data)
}

// LoadAffinityModel reads a model written by SaveAffinityModel
func LoadAffinityModel(path string) (*chipset.AffinityModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("affinity model " + path)
		}
		return nil, apperrors.NewStorageError("failed to read affinity model", err).WithContext("path", path)
	}

	var file modelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, apperrors.NewParsingError("invalid affinity model file", err).WithContext("path", path)
	}
	if file.Version != ModelFormatVersion {
		return nil, apperrors.NewParsingError("unsupported affinity model version", nil).
			WithContext("version", file.Version)
	}
	if file.Fingerprint == "" {
		return nil, apperrors.NewParsingError("affinity model has no layout fingerprint", nil)
	}

	model := &chipset.AffinityModel{
		Fingerprint: file.Fingerprint,
		Chips:       file.Chips,
		Probesets:   make(map[string]chipset.ProbesetAffinity, len(file.Probesets)),
	}
	for name, ps := range file.Probesets {
		model.Probesets[name] = chipset.ProbesetAffinity{
			Overall: float64(ps.Overall),
			Probe:   fromNullable(ps.Probe),
			Chip:    fromNullable(ps.Chip),
		}
	}
	return model, nil
}

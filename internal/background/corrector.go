package background

import (
	"context"
	"fmt"
	"log/slog"

	"affynorm/internal/chipset"
	"affynorm/internal/config"
	"affynorm/internal/density"
	apperrors "affynorm/internal/errors"
)

// Corrector applies the configured background strategy to chips of one
// layout. It holds no per-chip state and is safe for concurrent use.
type Corrector struct {
	method config.BackgroundMethod
	layout chipset.ProbeLayout
	rma    RMAOptions
	zones  ZoneOptions
	logger *slog.Logger
}

// NewCorrector creates a corrector from cfg
func NewCorrector(layout chipset.ProbeLayout, cfg config.NormalizationConfig, logger *slog.Logger) *Corrector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Corrector{
		method: cfg.Background,
		layout: layout,
		rma: RMAOptions{
			MinSignal: cfg.MinSignal,
			Density:   density.DefaultOptions(),
		},
		zones: ZoneOptions{
			Count:         cfg.Zones.Count,
			Smooth:        cfg.Zones.Smooth,
			NoiseFraction: cfg.Zones.NoiseFraction,
			LowFraction:   cfg.Zones.LowFraction,
		},
		logger: logger.With(slog.String("component", "background")),
	}
}

// Correct replaces chip.Signal with its background corrected values. Probe
// order and count are unchanged.
func (c *Corrector) Correct(ctx context.Context, chip *chipset.Chip) error {
	var corrected chipset.SignalVector

	switch c.method {
	case config.BackgroundNone, "":
		return nil

	case config.BackgroundRMA, config.BackgroundRMAPMMM:
		var mm chipset.SignalVector
		if c.method == config.BackgroundRMAPMMM {
			if chip.Mismatch == nil {
				return apperrors.NewValidationError(fmt.Sprintf("chip %s has no mismatch intensities for %s background", chip.Name, c.method)).
					WithContext("chip", chip.Name)
			}
			mm = chip.Mismatch
		}
		var p RMAParams
		corrected, p = RMA(chip.Signal, mm, c.layout.Duplicates(), c.rma)
		c.logger.DebugContext(ctx, "density model fitted",
			slog.String("chip", chip.Name),
			slog.Float64("mu", p.Mu),
			slog.Float64("sigma", p.Sigma),
			slog.Float64("alpha", p.Alpha),
			slog.Float64("offset", p.Offset))

	case config.BackgroundMAS5:
		corrected = Zones(chip.Signal, chipset.BuildMask(c.layout, chip), c.layout, c.zones)
		c.logger.DebugContext(ctx, "zone background removed",
			slog.String("chip", chip.Name),
			slog.Int("zones", c.zones.Count))

	default:
		return apperrors.NewConfigError(fmt.Sprintf("unknown background method %q", c.method), nil)
	}

	copy(chip.Signal, corrected)
	return nil
}

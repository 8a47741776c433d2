package http

import (
	"context"

	"affynorm/internal/services"
	"affynorm/pkg/contracts"
	api "affynorm/pkg/contracts/api/v1"
)

// EngineServiceInterface defines the numeric operations served over HTTP
type EngineServiceInterface interface {
	Pairwise(ctx context.Context, req api.PairwiseRequest) (*api.PairwiseResponse, error)
	Biweight(ctx context.Context, req api.BiweightRequest) (*api.SummaryResponse, error)
	MedianPolish(ctx context.Context, req api.MedianPolishRequest) (*api.MedianPolishResponse, error)
	DensityMode(ctx context.Context, req api.DensityModeRequest) (*api.DensityModeResponse, error)
}

// HealthServiceInterface defines the probes served over HTTP
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() contracts.VersionInfo
}

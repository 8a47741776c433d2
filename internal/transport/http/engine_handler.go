package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "affynorm/internal/errors"
	"affynorm/internal/middleware"
	api "affynorm/pkg/contracts/api/v1"
)

// EngineHandler serves the pairwise normalization, summarization and
// density endpoints
type EngineHandler struct {
	service      EngineServiceInterface
	validator    *middleware.RequestValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewEngineHandler creates an engine handler
func NewEngineHandler(service EngineServiceInterface, validator *middleware.RequestValidator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *EngineHandler {
	return &EngineHandler{
		service:      service,
		validator:    validator,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "engine_handler")),
	}
}

// Routes returns the engine routes
func (h *EngineHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.ContentTypeValidator("application/json"))

	r.Post("/normalize/pairwise", h.Pairwise)
	r.Post("/summarize/biweight", h.Biweight)
	r.Post("/summarize/median-polish", h.MedianPolish)
	r.Post("/density/mode", h.DensityMode)
	return r
}

// Pairwise handles POST /api/v1/normalize/pairwise
func (h *EngineHandler) Pairwise(w http.ResponseWriter, r *http.Request) {
	var req api.PairwiseRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.Pairwise(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "pairwise normalization served",
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.Int("probes", len(req.Current)),
		slog.String("mode", resp.Diagnostics.Mode),
	)
	render.JSON(w, r, resp)
}

// Biweight handles POST /api/v1/summarize/biweight
func (h *EngineHandler) Biweight(w http.ResponseWriter, r *http.Request) {
	var req api.BiweightRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.Biweight(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// MedianPolish handles POST /api/v1/summarize/median-polish
func (h *EngineHandler) MedianPolish(w http.ResponseWriter, r *http.Request) {
	var req api.MedianPolishRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.MedianPolish(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// DensityMode handles POST /api/v1/density/mode
func (h *EngineHandler) DensityMode(w http.ResponseWriter, r *http.Request) {
	var req api.DensityModeRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.DensityMode(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

func (h *EngineHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := h.validator.Decode(r, dst); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

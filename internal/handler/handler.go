package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"resume-pricing-api/internal/features"
	"resume-pricing-api/internal/models"
	"resume-pricing-api/internal/refresh"
	"resume-pricing-api/internal/service"
	"resume-pricing-api/internal/validation"
)

// Service is the pricing service as seen by the HTTP layer.
type Service interface {
	GetPricing(ctx context.Context, locale string) (models.PricingResponse, error)
	Refresh(ctx context.Context) (models.AcceptedResponse, error)
	SetCurrency(ctx context.Context, code string) (models.AcceptedResponse, error)
	SetVisibility(ctx context.Context, visible bool) error
	EvaluateOffers(ctx context.Context, at string) (models.EvaluateResponse, error)
	History(ctx context.Context, limit string) (models.HistoryResponse, error)
	Flags() []features.FeatureFlag
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     Service
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 64 << 10, // 64KB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc Service, opts NewHandlerOptions) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultHandlerOptions().MaxBodySize
	}
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
	}
}

// Routes mounts the API. refreshMW wraps only the manual refresh route.
func (h *Handler) Routes(r chi.Router, refreshMW ...func(http.Handler) http.Handler) {
	r.Route("/pricing", func(r chi.Router) {
		r.Get("/", h.GetPricing)
		r.With(refreshMW...).Post("/refresh", h.Refresh)
		r.Put("/currency", h.SetCurrency)
		r.Post("/visibility", h.SetVisibility)
		r.Get("/offers/evaluate", h.EvaluateOffers)
		r.Get("/history", h.History)
	})

	r.Get("/features", h.Features)
	r.Get("/health", h.Health)
}

// GetPricing handles GET /pricing
func (h *Handler) GetPricing(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetPricing(r.Context(), r.URL.Query().Get("locale"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /pricing/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Refresh(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusAccepted, resp)
}

// SetCurrency handles PUT /pricing/currency
func (h *Handler) SetCurrency(w http.ResponseWriter, r *http.Request) {
	var req models.SetCurrencyRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.SetCurrency(r.Context(), req.Currency)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusAccepted, resp)
}

// SetVisibility handles POST /pricing/visibility
func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req models.VisibilityRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.service.SetVisibility(r.Context(), req.Visible); err != nil {
		h.respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EvaluateOffers handles GET /pricing/offers/evaluate
func (h *Handler) EvaluateOffers(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.EvaluateOffers(r.Context(), r.URL.Query().Get("at"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// History handles GET /pricing/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.History(r.Context(), r.URL.Query().Get("limit"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Features handles GET /features
func (h *Handler) Features(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Flags())
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return false
	}
	return true
}

// respondServiceError maps service errors onto HTTP statuses.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrFeatureDisabled):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrHistoryUnavailable), errors.Is(err, refresh.ErrStopped):
		h.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Printf("request failed: %v", err)
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}

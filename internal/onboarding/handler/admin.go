package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"onramp/internal/audit"
	"onramp/internal/onboarding/models"
	"onramp/internal/platform/metrics"
	"onramp/internal/platform/middleware"
	id "onramp/pkg/domain"
	dErrors "onramp/pkg/domain-errors"
	"onramp/pkg/platform/httputil"
	"onramp/pkg/requestcontext"
)

// AuditReader exposes the stored audit trail for review tooling.
type AuditReader interface {
	List(ctx context.Context, driverID id.DriverID) ([]audit.Event, error)
}

// AdminHandler handles the review-side endpoints.
type AdminHandler struct {
	service      Service
	auditReader  AuditReader
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// NewAdmin creates an AdminHandler. auditReader may be nil; the trail
// endpoint then returns an empty list.
func NewAdmin(svc Service, auditReader AuditReader, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *AdminHandler {
	return &AdminHandler{
		service:      svc,
		auditReader:  auditReader,
		logger:       logger,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the admin routes under /admin.
func (h *AdminHandler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Latency(h.metrics))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	router.Use(middleware.RequireAdmin(h.logger))

	router.Get("/drivers/{driverID}/onboarding", h.handleGetOnboarding)
	router.Post("/drivers/{driverID}/documents/review", h.handleReviewDocument)
	router.Post("/drivers/{driverID}/vehicle/review", h.handleReviewVehicle)
	router.Put("/drivers/{driverID}/background-check", h.handleUpdateBackgroundCheck)
	router.Put("/drivers/{driverID}/status", h.handleSetDriverStatus)
	router.Get("/drivers/{driverID}/audit", h.handleAuditTrail)

	r.Mount("/admin", router)
}

func (h *AdminHandler) handleGetOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := pathDriverID(w, r)
	if !ok {
		return
	}
	payload, err := h.service.GetOnboarding(ctx, driverID)
	if err != nil {
		h.writeServiceError(w, ctx, "admin get onboarding failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payload)
}

func (h *AdminHandler) handleReviewDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := pathDriverID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ReviewDocumentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	doc, err := h.service.ReviewDocument(ctx, driverID, req)
	if err != nil {
		h.writeServiceError(w, ctx, "review document failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *AdminHandler) handleReviewVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := pathDriverID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ReviewVehicleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	vehicle, err := h.service.ReviewVehicle(ctx, driverID, req)
	if err != nil {
		h.writeServiceError(w, ctx, "review vehicle failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, vehicle)
}

func (h *AdminHandler) handleUpdateBackgroundCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := pathDriverID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateBackgroundCheckRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	check, err := h.service.UpdateBackgroundCheck(ctx, driverID, req)
	if err != nil {
		h.writeServiceError(w, ctx, "update background check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, check)
}

func (h *AdminHandler) handleSetDriverStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := pathDriverID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SetDriverStatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	driver, err := h.service.SetDriverStatus(ctx, driverID, req)
	if err != nil {
		h.writeServiceError(w, ctx, "set driver status failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, driver)
}

func (h *AdminHandler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := pathDriverID(w, r)
	if !ok {
		return
	}
	if h.auditReader == nil {
		httputil.WriteJSON(w, http.StatusOK, []audit.Event{})
		return
	}
	events, err := h.auditReader.List(ctx, driverID)
	if err != nil {
		h.writeServiceError(w, ctx, "list audit trail failed", err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *AdminHandler) writeServiceError(w http.ResponseWriter, ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func pathDriverID(w http.ResponseWriter, r *http.Request) (id.DriverID, bool) {
	driverID := id.DriverID(chi.URLParam(r, "driverID"))
	if driverID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "driver id is required"))
		return "", false
	}
	return driverID, true
}

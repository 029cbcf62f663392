// Package handler exposes the onboarding HTTP API. Driver routes operate on
// the authenticated driver from the JWT; admin routes address drivers by URL
// parameter and require the admin role.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"onramp/internal/onboarding/models"
	"onramp/internal/onboarding/service"
	"onramp/internal/platform/metrics"
	"onramp/internal/platform/middleware"
	id "onramp/pkg/domain"
	dErrors "onramp/pkg/domain-errors"
	"onramp/pkg/platform/httputil"
	"onramp/pkg/requestcontext"
)

// Service is the onboarding surface the handler needs.
type Service interface {
	EnsureDriver(ctx context.Context, driverID id.DriverID) (*models.Driver, error)
	SaveProfile(ctx context.Context, driverID id.DriverID, req *models.SaveProfileRequest) (*models.Driver, error)
	SaveDocument(ctx context.Context, driverID id.DriverID, req *models.SaveDocumentRequest) (*models.Document, error)
	SaveVehicle(ctx context.Context, driverID id.DriverID, req *models.SaveVehicleRequest) (*models.Vehicle, error)
	SaveAgreements(ctx context.Context, driverID id.DriverID, req *models.SaveAgreementsRequest) (*models.Agreements, error)
	SubmitForReview(ctx context.Context, driverID id.DriverID) (*service.SubmitResult, error)
	SetAvailability(ctx context.Context, driverID id.DriverID, online bool) (*service.AvailabilityResult, error)
	GetOnboarding(ctx context.Context, driverID id.DriverID) (*service.OnboardingPayload, error)
	ReviewDocument(ctx context.Context, driverID id.DriverID, req *models.ReviewDocumentRequest) (*models.Document, error)
	ReviewVehicle(ctx context.Context, driverID id.DriverID, req *models.ReviewVehicleRequest) (*models.Vehicle, error)
	UpdateBackgroundCheck(ctx context.Context, driverID id.DriverID, req *models.UpdateBackgroundCheckRequest) (*models.BackgroundCheck, error)
	SetDriverStatus(ctx context.Context, driverID id.DriverID, req *models.SetDriverStatusRequest) (*models.Driver, error)
}

// Handler handles onboarding endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates an onboarding Handler.
func New(svc Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		service:      svc,
		logger:       logger,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the driver-facing routes.
func (h *Handler) Register(r chi.Router) {
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

	router.Get("/onboarding", h.handleGetOnboarding)
	router.Put("/onboarding/profile", h.handleSaveProfile)
	router.Put("/onboarding/documents", h.handleSaveDocument)
	router.Put("/onboarding/vehicle", h.handleSaveVehicle)
	router.Put("/onboarding/agreements", h.handleSaveAgreements)
	router.Post("/onboarding/submit", h.handleSubmit)
	router.Put("/onboarding/availability", h.handleSetAvailability)

	r.Mount("/", router)
}

func (h *Handler) handleGetOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := h.authedDriver(w, ctx)
	if !ok {
		return
	}

	// First contact initializes the driver record.
	if _, err := h.service.EnsureDriver(ctx, driverID); err != nil {
		h.writeServiceError(w, ctx, "ensure driver failed", err)
		return
	}
	payload, err := h.service.GetOnboarding(ctx, driverID)
	if err != nil {
		h.writeServiceError(w, ctx, "get onboarding failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := h.authedDriver(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SaveProfileRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	driver, err := h.service.SaveProfile(ctx, driverID, req)
	if err != nil {
		h.writeServiceError(w, ctx, "save profile failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, driver)
}

func (h *Handler) handleSaveDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := h.authedDriver(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SaveDocumentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	doc, err := h.service.SaveDocument(ctx, driverID, req)
	if err != nil {
		h.writeServiceError(w, ctx, "save document failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleSaveVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := h.authedDriver(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SaveVehicleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	vehicle, err := h.service.SaveVehicle(ctx, driverID, req)
	if err != nil {
		h.writeServiceError(w, ctx, "save vehicle failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, vehicle)
}

func (h *Handler) handleSaveAgreements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := h.authedDriver(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SaveAgreementsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	agreements, err := h.service.SaveAgreements(ctx, driverID, req)
	if err != nil {
		h.writeServiceError(w, ctx, "save agreements failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agreements)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := h.authedDriver(w, ctx)
	if !ok {
		return
	}

	result, err := h.service.SubmitForReview(ctx, driverID)
	if err != nil {
		h.writeServiceError(w, ctx, "submit failed", err)
		return
	}
	// A blocked submission is 200 with the verdict; clients render the
	// blocking reasons, they don't handle an error.
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	driverID, ok := h.authedDriver(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SetAvailabilityRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result, err := h.service.SetAvailability(ctx, driverID, req.Online)
	if err != nil {
		h.writeServiceError(w, ctx, "set availability failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// authedDriver pulls the authenticated driver from context. RequireAuth
// guarantees presence; the guard covers misconfigured routers.
func (h *Handler) authedDriver(w http.ResponseWriter, ctx context.Context) (id.DriverID, bool) {
	driverID := requestcontext.DriverID(ctx)
	if driverID.IsZero() {
		h.logger.ErrorContext(ctx, "driver id missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return driverID, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, ctx context.Context, msg string, err error) {
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

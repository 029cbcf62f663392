// Package service orchestrates driver onboarding: record upserts, the gated
// submit and go-online transitions, and admin review actions. Every gated
// transition re-evaluates eligibility against freshly loaded records, so a
// verdict a client fetched earlier can never authorize a write.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"onramp/internal/audit"
	"onramp/internal/onboarding/eligibility"
	"onramp/internal/onboarding/metrics"
	"onramp/internal/onboarding/models"
	"onramp/internal/onboarding/store"
	id "onramp/pkg/domain"
	dErrors "onramp/pkg/domain-errors"
	"onramp/pkg/platform/device"
	"onramp/pkg/requestcontext"
)

// PlateConflictMessage is surfaced verbatim when a vehicle save loses the
// plate claim.
const PlateConflictMessage = "This plate is already assigned to another driver."

// AuditPublisher records onboarding events. Optional; a nil publisher
// disables auditing.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// PayloadCache caches assembled onboarding payloads on the read path. Gated
// transitions never consult it.
type PayloadCache interface {
	Get(ctx context.Context, driverID id.DriverID) (*OnboardingPayload, bool)
	Set(ctx context.Context, driverID id.DriverID, payload *OnboardingPayload)
	Invalidate(ctx context.Context, driverID id.DriverID)
}

// Service orchestrates onboarding over a Store.
type Service struct {
	store                   store.Store
	logger                  *slog.Logger
	auditPublisher          AuditPublisher
	metrics                 *metrics.Metrics
	cache                   PayloadCache
	backgroundCheckRequired bool
	tracer                  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPayloadCache(cache PayloadCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithBackgroundCheckRequired turns the background check into an online gate.
func WithBackgroundCheckRequired(required bool) Option {
	return func(s *Service) {
		s.backgroundCheckRequired = required
	}
}

// New constructs a Service.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: slog.Default(),
		tracer: otel.Tracer("onramp/onboarding"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// EnsureDriver returns the driver record, creating a fresh UNVERIFIED one on
// first contact. The agreements and background check records are initialized
// alongside it (all-null acceptances, NOT_STARTED) so the payload always
// carries all three. Idempotent; existing records are returned untouched.
func (s *Service) EnsureDriver(ctx context.Context, driverID id.DriverID) (*models.Driver, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.EnsureDriver")
	defer span.End()

	if driverID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "driver id is required")
	}

	now := requestcontext.Now(ctx)
	driver, err := s.store.GetDriver(ctx, driverID)
	switch {
	case err == nil:
		return driver, s.ensureSupportingRecords(ctx, driverID, now)
	case !errors.Is(err, store.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load driver")
	}

	driver = &models.Driver{
		ID:             driverID,
		Status:         models.DriverStatusUnverified,
		OnboardingStep: models.StepAccount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SaveDriver(ctx, driver); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create driver")
	}
	if err := s.ensureSupportingRecords(ctx, driverID, now); err != nil {
		return nil, err
	}
	s.logAudit(ctx, driverID, audit.ActionDriverCreated, "")
	return driver, nil
}

// ensureSupportingRecords creates the agreements and background check records
// when absent. Existing records are never modified.
func (s *Service) ensureSupportingRecords(ctx context.Context, driverID id.DriverID, now time.Time) error {
	if _, err := s.store.GetAgreements(ctx, driverID); errors.Is(err, store.ErrNotFound) {
		agreements := &models.Agreements{DriverID: driverID, UpdatedAt: now}
		if err := s.store.SaveAgreements(ctx, agreements); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize agreements")
		}
	} else if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load agreements")
	}

	if _, err := s.store.GetBackgroundCheck(ctx, driverID); errors.Is(err, store.ErrNotFound) {
		check := &models.BackgroundCheck{
			DriverID:  driverID,
			Status:    models.BackgroundNotStarted,
			UpdatedAt: now,
		}
		if err := s.store.SaveBackgroundCheck(ctx, check); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize background check")
		}
	} else if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load background check")
	}
	return nil
}

// SaveProfile upserts the driver's profile fields and marks the account
// verified. Advances the onboarding step to DOCUMENTS.
func (s *Service) SaveProfile(ctx context.Context, driverID id.DriverID, req *models.SaveProfileRequest) (*models.Driver, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.SaveProfile")
	defer span.End()

	driver, err := s.EnsureDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	driver.FullName = req.FullName
	driver.DateOfBirth = req.DateOfBirth
	driver.Phone = req.Phone
	driver.Email = req.Email
	driver.AccountVerified = true
	driver.AdvanceStep(models.StepDocuments)
	driver.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.SaveDriver(ctx, driver); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save profile")
	}
	s.invalidateCache(ctx, driverID)
	s.logAudit(ctx, driverID, audit.ActionProfileSaved, "")
	return driver, nil
}

// SaveDocument upserts metadata for one uploaded document. Every save resets
// review state: a fresh tracking ID, PENDING status, and a cleared rejection
// reason, so a re-upload always goes back through review.
func (s *Service) SaveDocument(ctx context.Context, driverID id.DriverID, req *models.SaveDocumentRequest) (*models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.SaveDocument")
	defer span.End()

	driver, err := s.EnsureDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	doc := &models.Document{
		DriverID:    driverID,
		Type:        req.DocumentType(),
		TrackingID:  uuid.NewString(),
		Number:      req.Number,
		ExpiresAt:   req.ExpiryTime(),
		FilePath:    req.FilePath,
		DownloadURL: req.DownloadURL,
		MimeType:    req.MimeType,
		Status:      models.StatusPending,
		SubmittedAt: now,
	}
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save document")
	}

	driver.AdvanceStep(models.StepVehicle)
	driver.UpdatedAt = now
	if err := s.store.SaveDriver(ctx, driver); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance onboarding step")
	}

	s.invalidateCache(ctx, driverID)
	s.logAudit(ctx, driverID, audit.ActionDocumentUploaded, string(doc.Type))
	return doc, nil
}

// SaveVehicle registers or replaces the driver's vehicle. The plate claim and
// the vehicle write commit atomically; losing the claim surfaces as a conflict
// and leaves the previous vehicle untouched. Every save resets the vehicle to
// PENDING review.
func (s *Service) SaveVehicle(ctx context.Context, driverID id.DriverID, req *models.SaveVehicleRequest) (*models.Vehicle, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.SaveVehicle")
	defer span.End()

	driver, err := s.EnsureDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	vehicle := &models.Vehicle{
		DriverID:  driverID,
		Make:      req.Make,
		Model:     req.Model,
		Year:      req.Year,
		Color:     req.Color,
		Plate:     req.PlateNumber(),
		Category:  models.VehicleCategory(req.Category),
		Status:    models.StatusPending,
		Images:    req.ImageMap(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, err := s.store.GetVehicle(ctx, driverID); err == nil {
		vehicle.CreatedAt = existing.CreatedAt
	}

	if err := s.store.SaveVehicleAndClaimPlate(ctx, vehicle); err != nil {
		if errors.Is(err, store.ErrPlateTaken) {
			s.incrementPlateConflict()
			s.logAudit(ctx, driverID, audit.ActionPlateConflict, vehicle.Plate.String())
			return nil, dErrors.New(dErrors.CodeConflict, PlateConflictMessage)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save vehicle")
	}

	driver.AdvanceStep(models.StepAgreements)
	driver.UpdatedAt = now
	if err := s.store.SaveDriver(ctx, driver); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance onboarding step")
	}

	s.invalidateCache(ctx, driverID)
	s.logAudit(ctx, driverID, audit.ActionVehicleSaved, vehicle.Plate.String())
	return vehicle, nil
}

// SaveAgreements records the driver's acceptance state. Acceptance is not
// additive: a flag omitted on re-submission clears its timestamp.
func (s *Service) SaveAgreements(ctx context.Context, driverID id.DriverID, req *models.SaveAgreementsRequest) (*models.Agreements, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.SaveAgreements")
	defer span.End()

	driver, err := s.EnsureDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	stamp := func(accepted bool) *time.Time {
		if accepted {
			return &now
		}
		return nil
	}
	agreements := &models.Agreements{
		DriverID:             driverID,
		TermsAcceptedAt:      stamp(req.AcceptTerms),
		SafetyAcceptedAt:     stamp(req.AcceptSafety),
		CommissionAcceptedAt: stamp(req.AcceptCommission),
		TrainingPassedAt:     stamp(req.TrainingPassed),
		UpdatedAt:            now,
	}
	if err := s.store.SaveAgreements(ctx, agreements); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save agreements")
	}

	driver.AdvanceStep(models.StepReview)
	driver.UpdatedAt = now
	if err := s.store.SaveDriver(ctx, driver); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance onboarding step")
	}

	s.invalidateCache(ctx, driverID)
	s.logAudit(ctx, driverID, audit.ActionAgreementsSaved, "")
	return agreements, nil
}

// loadSnapshot reads every onboarding record for one driver. Absent records
// come back as nil entries; only unexpected store failures error.
func (s *Service) loadSnapshot(ctx context.Context, driverID id.DriverID) (eligibility.Snapshot, error) {
	var snap eligibility.Snapshot

	driver, err := s.store.GetDriver(ctx, driverID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return snap, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load driver")
	}
	snap.Driver = driver

	snap.Documents, err = s.store.GetDocuments(ctx, driverID)
	if err != nil {
		return snap, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}

	vehicle, err := s.store.GetVehicle(ctx, driverID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return snap, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vehicle")
	}
	snap.Vehicle = vehicle

	agreements, err := s.store.GetAgreements(ctx, driverID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return snap, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load agreements")
	}
	snap.Agreements = agreements

	check, err := s.store.GetBackgroundCheck(ctx, driverID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return snap, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load background check")
	}
	snap.BackgroundCheck = check

	return snap, nil
}

func (s *Service) evaluate(ctx context.Context, snap eligibility.Snapshot) eligibility.Verdict {
	start := time.Now()
	verdict := eligibility.Evaluate(snap, eligibility.Options{
		BackgroundCheckRequired: s.backgroundCheckRequired,
		Now:                     requestcontext.Now(ctx),
	})
	if s.metrics != nil {
		s.metrics.ObserveEvaluation(start)
	}
	return verdict
}

func (s *Service) invalidateCache(ctx context.Context, driverID id.DriverID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, driverID)
	}
}

func (s *Service) incrementPlateConflict() {
	if s.metrics != nil {
		s.metrics.IncrementPlateConflict()
	}
}

func (s *Service) logAudit(ctx context.Context, driverID id.DriverID, action audit.Action, detail string) {
	args := []any{
		"event", string(action),
		"driver_id", driverID.String(),
		"log_type", "audit",
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	if detail != "" {
		args = append(args, "detail", detail)
	}
	s.logger.InfoContext(ctx, string(action), args...)

	if s.auditPublisher == nil {
		return
	}
	actor := driverID.String()
	if requestcontext.IsAdmin(ctx) {
		actor = "admin"
	}
	s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		DriverID:  driverID,
		Action:    action,
		Actor:     actor,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		Detail:    detail,
	})
}

package service

import (
	"context"

	"onramp/internal/audit"
	"onramp/internal/onboarding/eligibility"
	"onramp/internal/onboarding/models"
	id "onramp/pkg/domain"
	dErrors "onramp/pkg/domain-errors"
	"onramp/pkg/requestcontext"
)

// SubmitResult reports the outcome of a submission attempt. A blocked attempt
// is a normal result carrying the verdict, not an error.
type SubmitResult struct {
	Submitted   bool                `json:"submitted"`
	Driver      *models.Driver      `json:"driver,omitempty"`
	Eligibility eligibility.Verdict `json:"eligibility"`
}

// AvailabilityResult reports the outcome of an availability toggle. Going
// online while ineligible is blocked, not an error.
type AvailabilityResult struct {
	Online      bool                `json:"online"`
	Changed     bool                `json:"changed"`
	Eligibility eligibility.Verdict `json:"eligibility"`
}

// SubmitForReview moves an eligible driver to PENDING_REVIEW. Eligibility is
// evaluated against records loaded inside this call; a blocked submission
// writes nothing and returns the verdict.
func (s *Service) SubmitForReview(ctx context.Context, driverID id.DriverID) (*SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.SubmitForReview")
	defer span.End()

	snap, err := s.loadSnapshot(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if snap.Driver == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "driver not found")
	}

	verdict := s.evaluate(ctx, snap)
	if !verdict.CanSubmitForReview {
		s.recordSubmission(false)
		s.logAudit(ctx, driverID, audit.ActionSubmitBlocked, "")
		return &SubmitResult{Submitted: false, Driver: snap.Driver, Eligibility: verdict}, nil
	}

	driver := snap.Driver
	if !driver.Status.CanTransitionTo(models.DriverStatusPendingReview) {
		return nil, dErrors.New(dErrors.CodeConflict,
			"driver cannot be submitted from status "+string(driver.Status))
	}

	driver.Status = models.DriverStatusPendingReview
	driver.AdvanceStep(models.StepReview)
	driver.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.SaveDriver(ctx, driver); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to submit driver")
	}

	s.invalidateCache(ctx, driverID)
	s.recordSubmission(true)
	s.logAudit(ctx, driverID, audit.ActionDriverSubmitted, "")
	return &SubmitResult{Submitted: true, Driver: driver, Eligibility: verdict}, nil
}

// SetAvailability toggles the driver online or offline. Going online is gated
// by a fresh evaluation; going offline always succeeds so a driver can never
// be trapped on the road.
func (s *Service) SetAvailability(ctx context.Context, driverID id.DriverID, online bool) (*AvailabilityResult, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.SetAvailability")
	defer span.End()

	snap, err := s.loadSnapshot(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if snap.Driver == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "driver not found")
	}
	driver := snap.Driver
	verdict := s.evaluate(ctx, snap)

	if online && !verdict.CanGoOnline {
		s.recordOnlineTransition("blocked")
		s.logAudit(ctx, driverID, audit.ActionOnlineBlocked, "")
		return &AvailabilityResult{Online: driver.Online, Changed: false, Eligibility: verdict}, nil
	}

	changed := driver.Online != online
	if changed {
		driver.Online = online
		driver.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.SaveDriver(ctx, driver); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to set availability")
		}
		s.invalidateCache(ctx, driverID)
		if online {
			s.recordOnlineTransition("online")
			s.logAudit(ctx, driverID, audit.ActionDriverOnline, "")
		} else {
			s.recordOnlineTransition("offline")
			s.logAudit(ctx, driverID, audit.ActionDriverOffline, "")
		}
	}
	return &AvailabilityResult{Online: driver.Online, Changed: changed, Eligibility: verdict}, nil
}

// GetOnboarding assembles the full onboarding payload. Served from the cache
// when possible; the verdict inside a cached payload is at most one TTL stale
// and is never used to authorize anything.
func (s *Service) GetOnboarding(ctx context.Context, driverID id.DriverID) (*OnboardingPayload, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.GetOnboarding")
	defer span.End()

	if s.cache != nil {
		if payload, ok := s.cache.Get(ctx, driverID); ok {
			return payload, nil
		}
	}

	snap, err := s.loadSnapshot(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if snap.Driver == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "driver not found")
	}

	verdict := s.evaluate(ctx, snap)
	payload := buildPayload(snap, verdict, requestcontext.Now(ctx))
	if s.cache != nil {
		s.cache.Set(ctx, driverID, payload)
	}
	return payload, nil
}

func (s *Service) recordSubmission(submitted bool) {
	if s.metrics != nil {
		s.metrics.RecordSubmission(submitted)
	}
}

func (s *Service) recordOnlineTransition(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordOnlineTransition(outcome)
	}
}

package service

import (
	"context"
	"errors"

	"onramp/internal/audit"
	"onramp/internal/onboarding/models"
	"onramp/internal/onboarding/store"
	id "onramp/pkg/domain"
	dErrors "onramp/pkg/domain-errors"
	"onramp/pkg/requestcontext"
)

// ReviewDocument records an admin decision on one uploaded document.
// EXPIRED is derived at read time and can never be written here.
func (s *Service) ReviewDocument(ctx context.Context, driverID id.DriverID, req *models.ReviewDocumentRequest) (*models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.ReviewDocument")
	defer span.End()

	docs, err := s.store.GetDocuments(ctx, driverID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}
	doc, ok := docs[req.DocumentType()]
	if !ok || !doc.HasFile() {
		return nil, dErrors.New(dErrors.CodeNotFound, "document not uploaded")
	}

	now := requestcontext.Now(ctx)
	doc.Status = models.ReviewStatus(req.Status)
	doc.RejectionReason = req.RejectionReason
	doc.ReviewedAt = &now
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save review decision")
	}

	s.invalidateCache(ctx, driverID)
	s.logAudit(ctx, driverID, audit.ActionDocumentReviewed, string(doc.Type)+":"+req.Status)
	return doc, nil
}

// ReviewVehicle records an admin decision on the driver's vehicle.
func (s *Service) ReviewVehicle(ctx context.Context, driverID id.DriverID, req *models.ReviewVehicleRequest) (*models.Vehicle, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.ReviewVehicle")
	defer span.End()

	vehicle, err := s.store.GetVehicle(ctx, driverID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "vehicle not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vehicle")
	}

	vehicle.Status = models.ReviewStatus(req.Status)
	vehicle.RejectionReason = req.RejectionReason
	vehicle.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.SaveVehicleAndClaimPlate(ctx, vehicle); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save review decision")
	}

	s.invalidateCache(ctx, driverID)
	s.logAudit(ctx, driverID, audit.ActionVehicleReviewed, req.Status)
	return vehicle, nil
}

// UpdateBackgroundCheck records the vetting provider's latest status.
func (s *Service) UpdateBackgroundCheck(ctx context.Context, driverID id.DriverID, req *models.UpdateBackgroundCheckRequest) (*models.BackgroundCheck, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.UpdateBackgroundCheck")
	defer span.End()

	if _, err := s.store.GetDriver(ctx, driverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "driver not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load driver")
	}

	check := &models.BackgroundCheck{
		DriverID:  driverID,
		Status:    models.BackgroundCheckStatus(req.Status),
		UpdatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.SaveBackgroundCheck(ctx, check); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save background check")
	}

	s.invalidateCache(ctx, driverID)
	s.logAudit(ctx, driverID, audit.ActionBackgroundCheck, req.Status)
	return check, nil
}

// SetDriverStatus applies an admin lifecycle action. Only transitions the
// lifecycle permits are accepted; everything else is a conflict.
func (s *Service) SetDriverStatus(ctx context.Context, driverID id.DriverID, req *models.SetDriverStatusRequest) (*models.Driver, error) {
	ctx, span := s.tracer.Start(ctx, "onboarding.SetDriverStatus")
	defer span.End()

	driver, err := s.store.GetDriver(ctx, driverID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "driver not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load driver")
	}

	target := models.DriverStatus(req.Status)
	if !driver.Status.CanTransitionTo(target) {
		return nil, dErrors.New(dErrors.CodeConflict,
			"cannot transition driver from "+string(driver.Status)+" to "+string(target))
	}

	driver.Status = target
	// Suspension and rejection force the driver offline.
	if target != models.DriverStatusActive {
		driver.Online = false
	}
	driver.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.SaveDriver(ctx, driver); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save driver status")
	}

	s.invalidateCache(ctx, driverID)
	s.logAudit(ctx, driverID, audit.ActionStatusChanged, string(target))
	return driver, nil
}

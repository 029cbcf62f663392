package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onramp/internal/audit"
	"onramp/internal/onboarding/models"
	"onramp/internal/onboarding/store"
	id "onramp/pkg/domain"
	dErrors "onramp/pkg/domain-errors"
	"onramp/pkg/requestcontext"
)

type fakeCache struct {
	mu       sync.Mutex
	payloads map[id.DriverID]*OnboardingPayload
	hits     int
	deletes  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{payloads: make(map[id.DriverID]*OnboardingPayload)}
}

func (c *fakeCache) Get(_ context.Context, driverID id.DriverID) (*OnboardingPayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.payloads[driverID]
	if ok {
		c.hits++
	}
	return payload, ok
}

func (c *fakeCache) Set(_ context.Context, driverID id.DriverID, payload *OnboardingPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads[driverID] = payload
}

func (c *fakeCache) Invalidate(_ context.Context, driverID id.DriverID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.payloads, driverID)
	c.deletes++
}

type ServiceSuite struct {
	suite.Suite
	ctx        context.Context
	now        time.Time
	store      *store.MemoryStore
	auditStore *audit.InMemoryStore
	service    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = store.NewMemoryStore()
	s.auditStore = audit.NewInMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	publisher := audit.NewPublisher(s.auditStore, logger)
	s.service = New(s.store,
		WithLogger(logger),
		WithAuditPublisher(publisher),
	)
}

// completeOnboarding walks one driver through every step so the gated
// transitions have a fully satisfied snapshot to work with.
func (s *ServiceSuite) completeOnboarding(driverID id.DriverID) {
	profile := &models.SaveProfileRequest{FullName: "Askar Yergaliyev", Email: "askar@example.com"}
	profile.Normalize()
	s.Require().NoError(profile.Validate())
	_, err := s.service.SaveProfile(s.ctx, driverID, profile)
	s.Require().NoError(err)

	for _, docType := range models.RequiredDocumentTypes {
		req := &models.SaveDocumentRequest{
			Type:      string(docType),
			FilePath:  "uploads/" + string(docType),
			ExpiresAt: s.now.AddDate(1, 0, 0).Format(time.RFC3339),
		}
		req.Normalize()
		s.Require().NoError(req.Validate())
		_, err := s.service.SaveDocument(s.ctx, driverID, req)
		s.Require().NoError(err)
	}

	vehicle := &models.SaveVehicleRequest{
		Make: "Toyota", Model: "Camry", Year: "2022", Color: "Black",
		Plate: "kz 123 abc", Category: "economy",
	}
	vehicle.Normalize()
	s.Require().NoError(vehicle.Validate())
	_, err = s.service.SaveVehicle(s.ctx, driverID, vehicle)
	s.Require().NoError(err)

	agreements := &models.SaveAgreementsRequest{
		AcceptTerms: true, AcceptSafety: true, AcceptCommission: true,
	}
	_, err = s.service.SaveAgreements(s.ctx, driverID, agreements)
	s.Require().NoError(err)
}

// approveEverything applies admin approvals so the driver can go online.
func (s *ServiceSuite) approveEverything(driverID id.DriverID) {
	adminCtx := requestcontext.WithAdmin(s.ctx, true)
	for _, docType := range models.RequiredDocumentTypes {
		req := &models.ReviewDocumentRequest{Type: string(docType), Status: "APPROVED"}
		req.Normalize()
		s.Require().NoError(req.Validate())
		_, err := s.service.ReviewDocument(adminCtx, driverID, req)
		s.Require().NoError(err)
	}
	vehicleReq := &models.ReviewVehicleRequest{Status: "APPROVED"}
	vehicleReq.Normalize()
	s.Require().NoError(vehicleReq.Validate())
	_, err := s.service.ReviewVehicle(adminCtx, driverID, vehicleReq)
	s.Require().NoError(err)

	statusReq := &models.SetDriverStatusRequest{Status: "ACTIVE"}
	statusReq.Normalize()
	s.Require().NoError(statusReq.Validate())
	_, err = s.service.SetDriverStatus(adminCtx, driverID, statusReq)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestEnsureDriverIdempotent() {
	first, err := s.service.EnsureDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Equal(models.DriverStatusUnverified, first.Status)
	s.Equal(models.StepAccount, first.OnboardingStep)
	s.False(first.AccountVerified)

	again, err := s.service.EnsureDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Equal(first.CreatedAt, again.CreatedAt)

	events, err := s.auditStore.ListByDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Len(events, 1, "creation is audited once")
	s.Equal(audit.ActionDriverCreated, events[0].Action)
}

func (s *ServiceSuite) TestEnsureDriverInitializesSupportingRecords() {
	_, err := s.service.EnsureDriver(s.ctx, "driver-1")
	s.Require().NoError(err)

	agreements, err := s.store.GetAgreements(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Nil(agreements.TermsAcceptedAt)
	s.Nil(agreements.SafetyAcceptedAt)
	s.Nil(agreements.CommissionAcceptedAt)

	check, err := s.store.GetBackgroundCheck(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Equal(models.BackgroundNotStarted, check.Status)

	// A fresh driver's payload carries all records, never nulls.
	payload, err := s.service.GetOnboarding(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.NotNil(payload.Agreements)
	s.NotNil(payload.BackgroundCheck)

	// Re-entry does not clobber accepted agreements.
	accepted := s.now.Add(-time.Hour)
	agreements.TermsAcceptedAt = &accepted
	s.Require().NoError(s.store.SaveAgreements(s.ctx, agreements))
	_, err = s.service.EnsureDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	agreements, err = s.store.GetAgreements(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.NotNil(agreements.TermsAcceptedAt)
}

func (s *ServiceSuite) TestEnsureDriverRejectsEmptyID() {
	_, err := s.service.EnsureDriver(s.ctx, "  ")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestSaveProfileVerifiesAccount() {
	req := &models.SaveProfileRequest{FullName: "  Dana Akhmetova ", Email: "DANA@Example.com"}
	req.Normalize()
	s.Require().NoError(req.Validate())

	driver, err := s.service.SaveProfile(s.ctx, "driver-1", req)
	s.Require().NoError(err)
	s.Equal("Dana Akhmetova", driver.FullName)
	s.Equal("dana@example.com", driver.Email)
	s.True(driver.AccountVerified)
	s.Equal(models.StepDocuments, driver.OnboardingStep)
}

func (s *ServiceSuite) TestSaveDocumentResetsReviewState() {
	req := &models.SaveDocumentRequest{Type: "LICENSE", FilePath: "a.pdf"}
	req.Normalize()
	s.Require().NoError(req.Validate())
	first, err := s.service.SaveDocument(s.ctx, "driver-1", req)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, first.Status)
	s.NotEmpty(first.TrackingID)

	// Reject it, then re-upload: review state must reset.
	adminReq := &models.ReviewDocumentRequest{Type: "LICENSE", Status: "REJECTED", RejectionReason: "blurry scan"}
	adminReq.Normalize()
	s.Require().NoError(adminReq.Validate())
	_, err = s.service.ReviewDocument(s.ctx, "driver-1", adminReq)
	s.Require().NoError(err)

	retry := &models.SaveDocumentRequest{Type: "LICENSE", FilePath: "b.pdf"}
	retry.Normalize()
	s.Require().NoError(retry.Validate())
	second, err := s.service.SaveDocument(s.ctx, "driver-1", retry)
	s.Require().NoError(err)

	s.Equal(models.StatusPending, second.Status)
	s.Empty(second.RejectionReason)
	s.Nil(second.ReviewedAt)
	s.NotEqual(first.TrackingID, second.TrackingID, "every upload gets a fresh tracking id")
}

func (s *ServiceSuite) TestOnboardingStepNeverRegresses() {
	s.completeOnboarding("driver-1")

	driver, err := s.store.GetDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Equal(models.StepReview, driver.OnboardingStep)

	// Re-uploading a document after reaching REVIEW keeps the step at REVIEW.
	req := &models.SaveDocumentRequest{Type: "LICENSE", FilePath: "c.pdf"}
	req.Normalize()
	s.Require().NoError(req.Validate())
	_, err = s.service.SaveDocument(s.ctx, "driver-1", req)
	s.Require().NoError(err)

	driver, err = s.store.GetDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Equal(models.StepReview, driver.OnboardingStep)
}

func (s *ServiceSuite) TestSaveVehiclePlateConflict() {
	s.completeOnboarding("driver-1")

	req := &models.SaveVehicleRequest{
		Make: "Kia", Model: "K5", Year: "2023", Color: "White",
		Plate: "KZ123ABC", Category: "ECONOMY",
	}
	req.Normalize()
	s.Require().NoError(req.Validate())

	_, err := s.service.SaveVehicle(s.ctx, "driver-2", req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal(PlateConflictMessage, dErrors.MessageOf(err))

	// The losing driver has no vehicle row.
	_, err = s.store.GetVehicle(s.ctx, "driver-2")
	s.ErrorIs(err, store.ErrNotFound)

	events, listErr := s.auditStore.ListByDriver(s.ctx, "driver-2")
	s.Require().NoError(listErr)
	var sawConflict bool
	for _, event := range events {
		if event.Action == audit.ActionPlateConflict {
			sawConflict = true
		}
	}
	s.True(sawConflict)
}

func (s *ServiceSuite) TestSaveVehicleNormalizesPlateForClaim() {
	s.completeOnboarding("driver-1") // claims "kz 123 abc" -> KZ123ABC

	req := &models.SaveVehicleRequest{
		Make: "Kia", Model: "K5", Year: "2023", Color: "White",
		Plate: " kz123abc ", Category: "XL",
	}
	req.Normalize()
	s.Require().NoError(req.Validate())

	_, err := s.service.SaveVehicle(s.ctx, "driver-2", req)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "spacing and case differences hit the same claim")
}

func (s *ServiceSuite) TestSaveAgreementsIsNotAdditive() {
	_, err := s.service.SaveAgreements(s.ctx, "driver-1", &models.SaveAgreementsRequest{
		AcceptTerms: true, AcceptSafety: true, AcceptCommission: true,
	})
	s.Require().NoError(err)

	// Re-submit with commission omitted: its acceptance is cleared.
	agreements, err := s.service.SaveAgreements(s.ctx, "driver-1", &models.SaveAgreementsRequest{
		AcceptTerms: true, AcceptSafety: true,
	})
	s.Require().NoError(err)
	s.NotNil(agreements.TermsAcceptedAt)
	s.Nil(agreements.CommissionAcceptedAt)
	s.False(agreements.Complete())
}

func (s *ServiceSuite) TestSubmitForReviewBlockedWritesNothing() {
	_, err := s.service.EnsureDriver(s.ctx, "driver-1")
	s.Require().NoError(err)

	result, err := s.service.SubmitForReview(s.ctx, "driver-1")
	s.Require().NoError(err, "a blocked submission is a result, not an error")
	s.False(result.Submitted)
	s.NotEmpty(result.Eligibility.BlockingReasons)

	driver, err := s.store.GetDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Equal(models.DriverStatusUnverified, driver.Status, "blocked submission writes nothing")
}

func (s *ServiceSuite) TestSubmitForReviewSuccess() {
	s.completeOnboarding("driver-1")

	result, err := s.service.SubmitForReview(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.True(result.Submitted)
	s.Equal(models.DriverStatusPendingReview, result.Driver.Status)

	// A second submission while pending is a conflict.
	_, err = s.service.SubmitForReview(s.ctx, "driver-1")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestResubmitAfterRejection() {
	s.completeOnboarding("driver-1")
	_, err := s.service.SubmitForReview(s.ctx, "driver-1")
	s.Require().NoError(err)

	statusReq := &models.SetDriverStatusRequest{Status: "REJECTED"}
	statusReq.Normalize()
	s.Require().NoError(statusReq.Validate())
	_, err = s.service.SetDriverStatus(s.ctx, "driver-1", statusReq)
	s.Require().NoError(err)

	result, err := s.service.SubmitForReview(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.True(result.Submitted, "rejected drivers may resubmit")
}

func (s *ServiceSuite) TestSetAvailabilityGatesOnline() {
	s.completeOnboarding("driver-1")
	_, err := s.service.SubmitForReview(s.ctx, "driver-1")
	s.Require().NoError(err)

	// Not yet approved: going online is blocked without a write.
	result, err := s.service.SetAvailability(s.ctx, "driver-1", true)
	s.Require().NoError(err)
	s.False(result.Online)
	s.False(result.Changed)
	s.Contains(result.Eligibility.BlockingReasons, "Driver account is not active.")

	s.approveEverything("driver-1")

	result, err = s.service.SetAvailability(s.ctx, "driver-1", true)
	s.Require().NoError(err)
	s.True(result.Online)
	s.True(result.Changed)
}

func (s *ServiceSuite) TestGoingOfflineIsUnconditional() {
	s.completeOnboarding("driver-1")
	_, err := s.service.SubmitForReview(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.approveEverything("driver-1")
	_, err = s.service.SetAvailability(s.ctx, "driver-1", true)
	s.Require().NoError(err)

	// Suspend the driver; going offline must still work.
	statusReq := &models.SetDriverStatusRequest{Status: "SUSPENDED"}
	statusReq.Normalize()
	s.Require().NoError(statusReq.Validate())
	_, err = s.service.SetDriverStatus(s.ctx, "driver-1", statusReq)
	s.Require().NoError(err)

	driver, err := s.store.GetDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.False(driver.Online, "suspension forces the driver offline")

	result, err := s.service.SetAvailability(s.ctx, "driver-1", false)
	s.Require().NoError(err)
	s.False(result.Online)
}

func (s *ServiceSuite) TestGetOnboardingDerivesExpiredStatus() {
	s.completeOnboarding("driver-1")
	s.approveEverythingDocsOnly("driver-1")

	// Age the insurance document past its expiry by moving request time.
	future := requestcontext.WithTime(context.Background(), s.now.AddDate(2, 0, 0))
	payload, err := s.service.GetOnboarding(future, "driver-1")
	s.Require().NoError(err)

	var insurance *DocumentView
	for i := range payload.Documents {
		if payload.Documents[i].Type == models.DocInsurance {
			insurance = &payload.Documents[i]
		}
	}
	s.Require().NotNil(insurance)
	s.Equal(models.StatusExpired, insurance.Status, "payload carries the derived status")
	s.Len(payload.DocumentsByType, len(payload.Documents))
	s.Equal(*insurance, payload.DocumentsByType[models.DocInsurance], "by-type map mirrors the list")

	// Storage still holds APPROVED.
	docs, err := s.store.GetDocuments(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, docs[models.DocInsurance].Status)
}

func (s *ServiceSuite) approveEverythingDocsOnly(driverID id.DriverID) {
	for _, docType := range models.RequiredDocumentTypes {
		req := &models.ReviewDocumentRequest{Type: string(docType), Status: "APPROVED"}
		req.Normalize()
		s.Require().NoError(req.Validate())
		_, err := s.service.ReviewDocument(s.ctx, driverID, req)
		s.Require().NoError(err)
	}
}

func (s *ServiceSuite) TestGetOnboardingUsesCacheAndWritesInvalidate() {
	cache := newFakeCache()
	s.service = New(s.store,
		WithLogger(slog.New(slog.DiscardHandler)),
		WithPayloadCache(cache),
	)
	s.completeOnboarding("driver-1")

	_, err := s.service.GetOnboarding(s.ctx, "driver-1")
	s.Require().NoError(err)
	_, err = s.service.GetOnboarding(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Equal(1, cache.hits, "second read is served from cache")

	deletesBefore := cache.deletes
	req := &models.SaveDocumentRequest{Type: "LICENSE", FilePath: "new.pdf"}
	req.Normalize()
	s.Require().NoError(req.Validate())
	_, err = s.service.SaveDocument(s.ctx, "driver-1", req)
	s.Require().NoError(err)
	s.Greater(cache.deletes, deletesBefore, "writes invalidate the cached payload")
}

func (s *ServiceSuite) TestReviewDocumentRequiresUpload() {
	_, err := s.service.EnsureDriver(s.ctx, "driver-1")
	s.Require().NoError(err)

	req := &models.ReviewDocumentRequest{Type: "LICENSE", Status: "APPROVED"}
	req.Normalize()
	s.Require().NoError(req.Validate())
	_, err = s.service.ReviewDocument(s.ctx, "driver-1", req)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestSetDriverStatusRejectsInvalidTransition() {
	_, err := s.service.EnsureDriver(s.ctx, "driver-1")
	s.Require().NoError(err)

	req := &models.SetDriverStatusRequest{Status: "ACTIVE"}
	req.Normalize()
	s.Require().NoError(req.Validate())
	_, err = s.service.SetDriverStatus(s.ctx, "driver-1", req)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "UNVERIFIED cannot jump straight to ACTIVE")
}

func (s *ServiceSuite) TestBackgroundCheckGatesOnlineWhenRequired() {
	s.service = New(s.store,
		WithLogger(slog.New(slog.DiscardHandler)),
		WithBackgroundCheckRequired(true),
	)
	s.completeOnboarding("driver-1")
	_, err := s.service.SubmitForReview(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.approveEverything("driver-1")

	result, err := s.service.SetAvailability(s.ctx, "driver-1", true)
	s.Require().NoError(err)
	s.False(result.Online)
	s.Contains(result.Eligibility.BlockingReasons, "Background check has not passed.")

	checkReq := &models.UpdateBackgroundCheckRequest{Status: "PASSED"}
	checkReq.Normalize()
	s.Require().NoError(checkReq.Validate())
	_, err = s.service.UpdateBackgroundCheck(s.ctx, "driver-1", checkReq)
	s.Require().NoError(err)

	result, err = s.service.SetAvailability(s.ctx, "driver-1", true)
	s.Require().NoError(err)
	s.True(result.Online)
}

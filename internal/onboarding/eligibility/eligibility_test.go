package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onramp/internal/onboarding/models"
)

type EvaluateSuite struct {
	suite.Suite
	now time.Time
}

func TestEvaluateSuite(t *testing.T) {
	suite.Run(t, new(EvaluateSuite))
}

func (s *EvaluateSuite) SetupTest() {
	s.now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
}

// completeSnapshot returns a snapshot satisfying every gate: verified active
// driver, six approved unexpired documents, approved complete vehicle, and all
// agreements accepted.
func (s *EvaluateSuite) completeSnapshot() Snapshot {
	docs := make(map[models.DocumentType]*models.Document, len(models.RequiredDocumentTypes))
	expiry := s.now.AddDate(1, 0, 0)
	for _, docType := range models.RequiredDocumentTypes {
		docs[docType] = &models.Document{
			DriverID:  "driver-1",
			Type:      docType,
			FilePath:  "drivers/driver-1/documents/" + string(docType),
			Status:    models.StatusApproved,
			ExpiresAt: &expiry,
		}
	}
	accepted := s.now.AddDate(0, -1, 0)
	return Snapshot{
		Driver: &models.Driver{
			ID:              "driver-1",
			Status:          models.DriverStatusActive,
			AccountVerified: true,
		},
		Documents: docs,
		Vehicle: &models.Vehicle{
			DriverID: "driver-1",
			Make:     "Toyota",
			Model:    "Camry",
			Year:     "2022",
			Color:    "Black",
			Plate:    "KZ123ABC",
			Category: models.CategoryEconomy,
			Status:   models.StatusApproved,
		},
		Agreements: &models.Agreements{
			DriverID:             "driver-1",
			TermsAcceptedAt:      &accepted,
			SafetyAcceptedAt:     &accepted,
			CommissionAcceptedAt: &accepted,
		},
		BackgroundCheck: &models.BackgroundCheck{
			DriverID: "driver-1",
			Status:   models.BackgroundPassed,
		},
	}
}

func (s *EvaluateSuite) opts() Options {
	return Options{BackgroundCheckRequired: false, Now: s.now}
}

func (s *EvaluateSuite) TestAllRequirementsMet() {
	verdict := Evaluate(s.completeSnapshot(), s.opts())

	s.True(verdict.CanSubmitForReview)
	s.True(verdict.CanGoOnline)
	s.Empty(verdict.BlockingReasons)
	s.Empty(verdict.MissingItems.Documents)
	s.Empty(verdict.MissingItems.NotApprovedDocuments)
	s.Empty(verdict.MissingItems.RejectedOrExpiredDocuments)
	s.False(verdict.MissingItems.Vehicle)
	s.False(verdict.MissingItems.Agreements)
	s.False(verdict.MissingItems.BackgroundCheck)
}

func (s *EvaluateSuite) TestDeterminism() {
	snap := s.completeSnapshot()
	snap.Documents[models.DocGovID].Status = models.StatusRejected
	snap.Vehicle.Status = models.StatusPending

	first := Evaluate(snap, s.opts())
	for range 5 {
		s.Equal(first, Evaluate(snap, s.opts()))
	}
}

func (s *EvaluateSuite) TestEmptySnapshot() {
	verdict := Evaluate(Snapshot{}, s.opts())

	s.False(verdict.CanSubmitForReview)
	s.False(verdict.CanGoOnline)
	s.Equal(models.RequiredDocumentTypes, verdict.MissingItems.Documents)
	s.True(verdict.MissingItems.Vehicle)
	s.True(verdict.MissingItems.Agreements)
	s.NotEmpty(verdict.BlockingReasons)
}

func (s *EvaluateSuite) TestDocumentPresenceDominatesStatus() {
	s.Run("missing file hides stored status entirely", func() {
		snap := s.completeSnapshot()
		// Rejected in storage but no file attached: only "missing" applies.
		snap.Documents[models.DocLicense].FilePath = "   "
		snap.Documents[models.DocLicense].DownloadURL = ""
		snap.Documents[models.DocLicense].Status = models.StatusRejected

		verdict := Evaluate(snap, s.opts())

		s.False(verdict.CanSubmitForReview)
		s.Equal([]models.DocumentType{models.DocLicense}, verdict.MissingItems.Documents)
		s.NotContains(verdict.MissingItems.NotApprovedDocuments, models.DocLicense)
		s.NotContains(verdict.MissingItems.RejectedOrExpiredDocuments, models.DocLicense)
	})

	s.Run("missing document names the type in a reason", func() {
		snap := s.completeSnapshot()
		snap.Documents[models.DocLicense].FilePath = ""
		snap.Documents[models.DocLicense].DownloadURL = ""

		verdict := Evaluate(snap, s.opts())

		s.Contains(verdict.BlockingReasons, "Missing required documents: LICENSE.")
	})

	s.Run("download URL alone counts as a file", func() {
		snap := s.completeSnapshot()
		snap.Documents[models.DocInsurance].FilePath = ""
		snap.Documents[models.DocInsurance].DownloadURL = "https://files.example/insurance.pdf"

		verdict := Evaluate(snap, s.opts())
		s.NotContains(verdict.MissingItems.Documents, models.DocInsurance)
	})
}

func (s *EvaluateSuite) TestExpiryIsLiveDerived() {
	snap := s.completeSnapshot()
	past := s.now.AddDate(0, 0, -1)
	// Approved in storage, but the expiry date has passed.
	snap.Documents[models.DocInsurance].Status = models.StatusApproved
	snap.Documents[models.DocInsurance].ExpiresAt = &past

	verdict := Evaluate(snap, s.opts())

	s.True(verdict.CanSubmitForReview, "expiry never blocks submission")
	s.False(verdict.CanGoOnline)
	s.Contains(verdict.MissingItems.NotApprovedDocuments, models.DocInsurance)
	s.Contains(verdict.MissingItems.RejectedOrExpiredDocuments, models.DocInsurance)

	s.Contains(verdict.BlockingReasons, "Documents not fully approved: INSURANCE.")

	s.Run("stored record is not mutated", func() {
		s.Equal(models.StatusApproved, snap.Documents[models.DocInsurance].Status)
	})

	s.Run("same snapshot before expiry is clean", func() {
		earlier := Options{Now: past.AddDate(0, -1, 0)}
		verdict := Evaluate(snap, earlier)
		s.Empty(verdict.MissingItems.RejectedOrExpiredDocuments)
	})
}

func (s *EvaluateSuite) TestPendingDocumentBlocksOnlineOnly() {
	snap := s.completeSnapshot()
	snap.Documents[models.DocGovID].Status = models.StatusPending

	verdict := Evaluate(snap, s.opts())

	s.True(verdict.CanSubmitForReview)
	s.False(verdict.CanGoOnline)
	s.Contains(verdict.MissingItems.NotApprovedDocuments, models.DocGovID)
	s.NotContains(verdict.MissingItems.RejectedOrExpiredDocuments, models.DocGovID)
}

func (s *EvaluateSuite) TestBackgroundCheckGate() {
	s.Run("required and in review blocks going online", func() {
		snap := s.completeSnapshot()
		snap.BackgroundCheck.Status = models.BackgroundInReview

		verdict := Evaluate(snap, Options{BackgroundCheckRequired: true, Now: s.now})

		s.True(verdict.CanSubmitForReview)
		s.False(verdict.CanGoOnline)
		s.True(verdict.MissingItems.BackgroundCheck)
		s.Contains(verdict.BlockingReasons, "Background check has not passed.")
	})

	s.Run("not required ignores failed status", func() {
		snap := s.completeSnapshot()
		snap.BackgroundCheck.Status = models.BackgroundFailed

		verdict := Evaluate(snap, Options{BackgroundCheckRequired: false, Now: s.now})

		s.True(verdict.CanGoOnline)
		s.False(verdict.MissingItems.BackgroundCheck)
	})

	s.Run("required with absent record blocks", func() {
		snap := s.completeSnapshot()
		snap.BackgroundCheck = nil

		verdict := Evaluate(snap, Options{BackgroundCheckRequired: true, Now: s.now})
		s.False(verdict.CanGoOnline)
	})
}

func (s *EvaluateSuite) TestVehicleGates() {
	s.Run("rejected vehicle blocks online but not submission", func() {
		snap := s.completeSnapshot()
		snap.Vehicle.Status = models.StatusRejected

		verdict := Evaluate(snap, s.opts())

		s.True(verdict.CanSubmitForReview)
		s.False(verdict.MissingItems.Vehicle)
		s.False(verdict.CanGoOnline)
		s.Contains(verdict.BlockingReasons, "Vehicle is not approved.")
	})

	s.Run("incomplete core fields block submission", func() {
		snap := s.completeSnapshot()
		snap.Vehicle.Color = "  "

		verdict := Evaluate(snap, s.opts())

		s.False(verdict.CanSubmitForReview)
		s.True(verdict.MissingItems.Vehicle)
	})

	s.Run("unknown category counts as incomplete", func() {
		snap := s.completeSnapshot()
		snap.Vehicle.Category = "LUXURY"

		verdict := Evaluate(snap, s.opts())
		s.True(verdict.MissingItems.Vehicle)
	})
}

func (s *EvaluateSuite) TestDriverStatusGate() {
	snap := s.completeSnapshot()
	snap.Driver.Status = models.DriverStatusPendingReview

	verdict := Evaluate(snap, s.opts())

	s.True(verdict.CanSubmitForReview)
	s.False(verdict.CanGoOnline)
	s.Contains(verdict.BlockingReasons, "Driver account is not active.")
}

func (s *EvaluateSuite) TestAgreementsGateIsSilentForOnline() {
	snap := s.completeSnapshot()
	snap.Agreements.CommissionAcceptedAt = nil

	verdict := Evaluate(snap, s.opts())

	s.False(verdict.CanSubmitForReview)
	s.False(verdict.CanGoOnline)
	s.True(verdict.MissingItems.Agreements)
	// One agreements reason only: the submission gate's. The online gate
	// folds in silently.
	count := 0
	for _, reason := range verdict.BlockingReasons {
		if reason == "Agreements have not been fully accepted." {
			count++
		}
	}
	s.Equal(1, count)
}

func (s *EvaluateSuite) TestAccountNotVerified() {
	snap := s.completeSnapshot()
	snap.Driver.AccountVerified = false

	verdict := Evaluate(snap, s.opts())

	s.False(verdict.CanSubmitForReview)
	s.Contains(verdict.BlockingReasons, "Account is not verified.")
}

func (s *EvaluateSuite) TestReasonsDeduplicatedAndOrdered() {
	verdict := Evaluate(Snapshot{}, Options{BackgroundCheckRequired: true, Now: s.now})

	seen := make(map[string]int)
	for _, reason := range verdict.BlockingReasons {
		seen[reason]++
	}
	for reason, n := range seen {
		s.Equal(1, n, "duplicate reason: %s", reason)
	}

	// Submission reasons precede online-gate reasons.
	s.Equal("Account is not verified.", verdict.BlockingReasons[0])
	s.Contains(verdict.BlockingReasons, "Driver account is not active.")
	s.Contains(verdict.BlockingReasons, "Background check has not passed.")
}

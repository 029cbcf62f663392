package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onramp/internal/onboarding/models"
	id "onramp/pkg/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemoryStore()
}

func (s *MemoryStoreSuite) TestDriverRoundTrip() {
	_, err := s.store.GetDriver(s.ctx, "driver-1")
	s.ErrorIs(err, ErrNotFound)

	driver := &models.Driver{
		ID:     "driver-1",
		Status: models.DriverStatusUnverified,
	}
	s.Require().NoError(s.store.SaveDriver(s.ctx, driver))

	got, err := s.store.GetDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Equal(*driver, *got)

	// Returned record is a copy; mutating it must not touch the store.
	got.Status = models.DriverStatusActive
	again, err := s.store.GetDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Equal(models.DriverStatusUnverified, again.Status)
}

func (s *MemoryStoreSuite) TestDocumentsUpsertByType() {
	docs, err := s.store.GetDocuments(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Empty(docs)

	first := &models.Document{
		DriverID:   "driver-1",
		Type:       models.DocLicense,
		TrackingID: "t-1",
		FilePath:   "a.pdf",
		Status:     models.StatusPending,
	}
	s.Require().NoError(s.store.SaveDocument(s.ctx, first))

	replacement := &models.Document{
		DriverID:   "driver-1",
		Type:       models.DocLicense,
		TrackingID: "t-2",
		FilePath:   "b.pdf",
		Status:     models.StatusPending,
	}
	s.Require().NoError(s.store.SaveDocument(s.ctx, replacement))

	docs, err = s.store.GetDocuments(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Len(docs, 1)
	s.Equal("t-2", docs[models.DocLicense].TrackingID)
}

func (s *MemoryStoreSuite) TestPlateClaim() {
	s.Run("conflict with another driver writes nothing", func() {
		s.Require().NoError(s.store.SaveVehicleAndClaimPlate(s.ctx, &models.Vehicle{
			DriverID: "driver-1", Plate: "KZ111AA",
		}))

		err := s.store.SaveVehicleAndClaimPlate(s.ctx, &models.Vehicle{
			DriverID: "driver-2", Plate: "KZ111AA", Make: "Kia",
		})
		s.ErrorIs(err, ErrPlateTaken)

		_, err = s.store.GetVehicle(s.ctx, "driver-2")
		s.ErrorIs(err, ErrNotFound)
	})

	s.Run("same driver re-claims own plate", func() {
		s.Require().NoError(s.store.SaveVehicleAndClaimPlate(s.ctx, &models.Vehicle{
			DriverID: "driver-1", Plate: "KZ111AA", Color: "Red",
		}))
		got, err := s.store.GetVehicle(s.ctx, "driver-1")
		s.Require().NoError(err)
		s.Equal("Red", got.Color)
	})

	s.Run("changing plate releases the old claim", func() {
		s.Require().NoError(s.store.SaveVehicleAndClaimPlate(s.ctx, &models.Vehicle{
			DriverID: "driver-1", Plate: "KZ222BB",
		}))
		// KZ111AA is free again.
		s.NoError(s.store.SaveVehicleAndClaimPlate(s.ctx, &models.Vehicle{
			DriverID: "driver-2", Plate: "KZ111AA",
		}))
	})
}

func (s *MemoryStoreSuite) TestPlateClaimConcurrent() {
	const racers = 32
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs <- s.store.SaveVehicleAndClaimPlate(s.ctx, &models.Vehicle{
				DriverID: id.DriverID(fmt.Sprintf("racer-%d", n)),
				Plate:    "KZ999ZZ",
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	winners := 0
	for err := range errs {
		if err == nil {
			winners++
		} else {
			s.ErrorIs(err, ErrPlateTaken)
		}
	}
	s.Equal(1, winners)
}

func (s *MemoryStoreSuite) TestAgreementsAndBackgroundCheck() {
	now := time.Now().UTC()
	agreements := &models.Agreements{
		DriverID:        "driver-1",
		TermsAcceptedAt: &now,
		UpdatedAt:       now,
	}
	s.Require().NoError(s.store.SaveAgreements(s.ctx, agreements))
	got, err := s.store.GetAgreements(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.NotNil(got.TermsAcceptedAt)
	s.Nil(got.SafetyAcceptedAt)

	check := &models.BackgroundCheck{
		DriverID:  "driver-1",
		Status:    models.BackgroundInReview,
		UpdatedAt: now,
	}
	s.Require().NoError(s.store.SaveBackgroundCheck(s.ctx, check))
	gotCheck, err := s.store.GetBackgroundCheck(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Equal(models.BackgroundInReview, gotCheck.Status)
}

// Package store persists onboarding records. Two implementations exist: an
// in-memory store for tests and single-node development, and a postgres store
// for production. Both guarantee plate uniqueness through the same claim
// semantics so the service layer never needs to know which one it holds.
package store

import (
	"context"

	"onramp/internal/onboarding/models"
	id "onramp/pkg/domain"
	dErrors "onramp/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across
	// implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

	// ErrPlateTaken is returned by SaveVehicleAndClaimPlate when the plate is
	// already claimed by a different driver.
	ErrPlateTaken = dErrors.New(dErrors.CodeConflict, "plate already claimed by another driver")
)

// Store is the full persistence surface for onboarding. Get methods return
// ErrNotFound for absent records; the service maps absence to nil snapshot
// entries.
type Store interface {
	GetDriver(ctx context.Context, driverID id.DriverID) (*models.Driver, error)
	SaveDriver(ctx context.Context, driver *models.Driver) error

	GetDocuments(ctx context.Context, driverID id.DriverID) (map[models.DocumentType]*models.Document, error)
	SaveDocument(ctx context.Context, doc *models.Document) error

	GetVehicle(ctx context.Context, driverID id.DriverID) (*models.Vehicle, error)
	// SaveVehicleAndClaimPlate atomically releases the driver's previous plate
	// claim, claims the new plate, and upserts the vehicle. It fails with
	// ErrPlateTaken, writing nothing, when another driver holds the plate.
	// Re-claiming a plate the same driver already holds succeeds.
	SaveVehicleAndClaimPlate(ctx context.Context, vehicle *models.Vehicle) error

	GetAgreements(ctx context.Context, driverID id.DriverID) (*models.Agreements, error)
	SaveAgreements(ctx context.Context, agreements *models.Agreements) error

	GetBackgroundCheck(ctx context.Context, driverID id.DriverID) (*models.BackgroundCheck, error)
	SaveBackgroundCheck(ctx context.Context, check *models.BackgroundCheck) error
}

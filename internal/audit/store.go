package audit

import (
	"context"

	id "onramp/pkg/domain"
)

// Store is the append-only persistence surface for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDriver(ctx context.Context, driverID id.DriverID) ([]Event, error)
}

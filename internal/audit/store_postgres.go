package audit

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the postgres driver for database/sql.
	_ "github.com/lib/pq"

	id "onramp/pkg/domain"
)

// PostgresStore persists audit events in PostgreSQL. The audit trail is an
// append-only side channel, so it rides on database/sql rather than sharing
// the onboarding store's pool.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the audit schema. Idempotent; called at startup.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id         BIGSERIAL PRIMARY KEY,
	ts         TIMESTAMPTZ NOT NULL,
	driver_id  TEXT NOT NULL,
	action     TEXT NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	client_ip  TEXT NOT NULL DEFAULT '',
	device     TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_driver_idx ON audit_events (driver_id, ts)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	const query = `
		INSERT INTO audit_events (ts, driver_id, action, actor, request_id, client_ip, device, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.Timestamp, string(event.DriverID), string(event.Action),
		event.Actor, event.RequestID, event.ClientIP, event.Device, event.Detail,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDriver(ctx context.Context, driverID id.DriverID) ([]Event, error) {
	const query = `
		SELECT ts, driver_id, action, actor, request_id, client_ip, device, detail
		FROM audit_events WHERE driver_id = $1 ORDER BY ts, id
	`
	rows, err := s.db.QueryContext(ctx, query, string(driverID))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.Timestamp, &e.DriverID, &e.Action, &e.Actor,
			&e.RequestID, &e.ClientIP, &e.Device, &e.Detail,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

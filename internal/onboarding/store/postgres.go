package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"onramp/internal/onboarding/models"
	id "onramp/pkg/domain"
	dErrors "onramp/pkg/domain-errors"
)

const (
	pgSerializationFailure = "40001"
	pgUniqueViolation      = "23505"

	// plateClaimRetries bounds retries of the plate transaction when postgres
	// aborts it with a serialization failure under concurrent claims.
	plateClaimRetries = 3
)

// PostgresStore is the production Store backed by pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the onboarding schema. Idempotent; called at startup.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS drivers (
	id               TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	onboarding_step  TEXT NOT NULL,
	account_verified BOOLEAN NOT NULL DEFAULT FALSE,
	full_name        TEXT NOT NULL DEFAULT '',
	date_of_birth    TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL DEFAULT '',
	online           BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
	driver_id        TEXT NOT NULL,
	type             TEXT NOT NULL,
	tracking_id      TEXT NOT NULL,
	number           TEXT NOT NULL DEFAULT '',
	expires_at       TIMESTAMPTZ,
	file_path        TEXT NOT NULL DEFAULT '',
	download_url     TEXT NOT NULL DEFAULT '',
	mime_type        TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	rejection_reason TEXT NOT NULL DEFAULT '',
	submitted_at     TIMESTAMPTZ NOT NULL,
	reviewed_at      TIMESTAMPTZ,
	PRIMARY KEY (driver_id, type)
);
CREATE TABLE IF NOT EXISTS vehicles (
	driver_id        TEXT PRIMARY KEY,
	make             TEXT NOT NULL,
	model            TEXT NOT NULL,
	year             TEXT NOT NULL,
	color            TEXT NOT NULL,
	plate            TEXT NOT NULL,
	category         TEXT NOT NULL,
	status           TEXT NOT NULL,
	rejection_reason TEXT NOT NULL DEFAULT '',
	images           JSONB NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS plate_claims (
	plate     TEXT PRIMARY KEY,
	driver_id TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS agreements (
	driver_id              TEXT PRIMARY KEY,
	terms_accepted_at      TIMESTAMPTZ,
	safety_accepted_at     TIMESTAMPTZ,
	commission_accepted_at TIMESTAMPTZ,
	training_passed_at     TIMESTAMPTZ,
	updated_at             TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS background_checks (
	driver_id  TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "migrate onboarding schema")
	}
	return nil
}

func (s *PostgresStore) GetDriver(ctx context.Context, driverID id.DriverID) (*models.Driver, error) {
	const q = `
SELECT id, status, onboarding_step, account_verified, full_name, date_of_birth,
       phone, email, online, created_at, updated_at
FROM drivers WHERE id = $1`
	var (
		d         models.Driver
		rawStatus string
		rawStep   string
	)
	err := s.pool.QueryRow(ctx, q, string(driverID)).Scan(
		&d.ID, &rawStatus, &rawStep, &d.AccountVerified, &d.FullName, &d.DateOfBirth,
		&d.Phone, &d.Email, &d.Online, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get driver")
	}
	// Stored enums are repaired on read so evaluation never sees junk values.
	d.Status = models.NormalizeDriverStatus(rawStatus)
	d.OnboardingStep = models.NormalizeOnboardingStep(rawStep)
	return &d, nil
}

func (s *PostgresStore) SaveDriver(ctx context.Context, driver *models.Driver) error {
	const q = `
INSERT INTO drivers (id, status, onboarding_step, account_verified, full_name,
                     date_of_birth, phone, email, online, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	onboarding_step = EXCLUDED.onboarding_step,
	account_verified = EXCLUDED.account_verified,
	full_name = EXCLUDED.full_name,
	date_of_birth = EXCLUDED.date_of_birth,
	phone = EXCLUDED.phone,
	email = EXCLUDED.email,
	online = EXCLUDED.online,
	updated_at = EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, q,
		string(driver.ID), string(driver.Status), string(driver.OnboardingStep),
		driver.AccountVerified, driver.FullName, driver.DateOfBirth,
		driver.Phone, driver.Email, driver.Online, driver.CreatedAt, driver.UpdatedAt,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save driver")
	}
	return nil
}

func (s *PostgresStore) GetDocuments(ctx context.Context, driverID id.DriverID) (map[models.DocumentType]*models.Document, error) {
	const q = `
SELECT driver_id, type, tracking_id, number, expires_at, file_path, download_url,
       mime_type, status, rejection_reason, submitted_at, reviewed_at
FROM documents WHERE driver_id = $1`
	rows, err := s.pool.Query(ctx, q, string(driverID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get documents")
	}
	defer rows.Close()

	out := make(map[models.DocumentType]*models.Document)
	for rows.Next() {
		var (
			doc       models.Document
			rawStatus string
		)
		if err := rows.Scan(
			&doc.DriverID, &doc.Type, &doc.TrackingID, &doc.Number, &doc.ExpiresAt,
			&doc.FilePath, &doc.DownloadURL, &doc.MimeType, &rawStatus,
			&doc.RejectionReason, &doc.SubmittedAt, &doc.ReviewedAt,
		); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scan document")
		}
		doc.Status = models.NormalizeReviewStatus(rawStatus)
		out[doc.Type] = &doc
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "iterate documents")
	}
	return out, nil
}

func (s *PostgresStore) SaveDocument(ctx context.Context, doc *models.Document) error {
	const q = `
INSERT INTO documents (driver_id, type, tracking_id, number, expires_at, file_path,
                       download_url, mime_type, status, rejection_reason,
                       submitted_at, reviewed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (driver_id, type) DO UPDATE SET
	tracking_id = EXCLUDED.tracking_id,
	number = EXCLUDED.number,
	expires_at = EXCLUDED.expires_at,
	file_path = EXCLUDED.file_path,
	download_url = EXCLUDED.download_url,
	mime_type = EXCLUDED.mime_type,
	status = EXCLUDED.status,
	rejection_reason = EXCLUDED.rejection_reason,
	submitted_at = EXCLUDED.submitted_at,
	reviewed_at = EXCLUDED.reviewed_at`
	_, err := s.pool.Exec(ctx, q,
		string(doc.DriverID), string(doc.Type), doc.TrackingID, doc.Number,
		doc.ExpiresAt, doc.FilePath, doc.DownloadURL, doc.MimeType,
		string(doc.Status), doc.RejectionReason, doc.SubmittedAt, doc.ReviewedAt,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save document")
	}
	return nil
}

func (s *PostgresStore) GetVehicle(ctx context.Context, driverID id.DriverID) (*models.Vehicle, error) {
	const query = `
SELECT driver_id, make, model, year, color, plate, category, status,
       rejection_reason, images, created_at, updated_at
FROM vehicles WHERE driver_id = $1`
	var (
		v         models.Vehicle
		rawStatus string
		rawImages []byte
	)
	err := s.pool.QueryRow(ctx, query, string(driverID)).Scan(
		&v.DriverID, &v.Make, &v.Model, &v.Year, &v.Color, &v.Plate, &v.Category,
		&rawStatus, &v.RejectionReason, &rawImages, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get vehicle")
	}
	v.Status = models.NormalizeReviewStatus(rawStatus)
	if len(rawImages) > 0 {
		if err := json.Unmarshal(rawImages, &v.Images); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode vehicle images")
		}
	}
	return &v, nil
}

// SaveVehicleAndClaimPlate runs the plate claim and vehicle upsert in one
// serializable transaction. Serialization failures are retried a bounded
// number of times; a losing race surfaces as ErrPlateTaken with no write.
func (s *PostgresStore) SaveVehicleAndClaimPlate(ctx context.Context, vehicle *models.Vehicle) error {
	var lastErr error
	for attempt := 0; attempt < plateClaimRetries; attempt++ {
		err := s.claimPlateTx(ctx, vehicle)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
		lastErr = err
	}
	return dErrors.Wrap(lastErr, dErrors.CodeTimeout, "plate claim did not serialize")
}

func (s *PostgresStore) claimPlateTx(ctx context.Context, vehicle *models.Vehicle) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin plate transaction")
	}
	defer tx.Rollback(ctx)

	var owner string
	err = tx.QueryRow(ctx,
		`SELECT driver_id FROM plate_claims WHERE plate = $1`,
		string(vehicle.Plate),
	).Scan(&owner)
	switch {
	case err == nil:
		if owner != string(vehicle.DriverID) {
			return ErrPlateTaken
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up plate claim")
	}

	// Release the driver's previous claim, then take the new one. The unique
	// index backstops the check above under concurrency.
	if _, err := tx.Exec(ctx,
		`DELETE FROM plate_claims WHERE driver_id = $1 AND plate <> $2`,
		string(vehicle.DriverID), string(vehicle.Plate),
	); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "release previous plate claim")
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO plate_claims (plate, driver_id) VALUES ($1, $2)
		 ON CONFLICT (plate) DO NOTHING`,
		string(vehicle.Plate), string(vehicle.DriverID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPlateTaken
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "claim plate")
	}
	// Zero rows with no prior ownership means a concurrent claim won.
	if tag.RowsAffected() == 0 && owner != string(vehicle.DriverID) {
		return ErrPlateTaken
	}

	images, err := json.Marshal(vehicle.Images)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode vehicle images")
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO vehicles (driver_id, make, model, year, color, plate, category,
                      status, rejection_reason, images, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (driver_id) DO UPDATE SET
	make = EXCLUDED.make,
	model = EXCLUDED.model,
	year = EXCLUDED.year,
	color = EXCLUDED.color,
	plate = EXCLUDED.plate,
	category = EXCLUDED.category,
	status = EXCLUDED.status,
	rejection_reason = EXCLUDED.rejection_reason,
	images = EXCLUDED.images,
	updated_at = EXCLUDED.updated_at`,
		string(vehicle.DriverID), vehicle.Make, vehicle.Model, vehicle.Year,
		vehicle.Color, string(vehicle.Plate), string(vehicle.Category),
		string(vehicle.Status), vehicle.RejectionReason, images,
		vehicle.CreatedAt, vehicle.UpdatedAt,
	); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save vehicle")
	}

	if err := tx.Commit(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit plate transaction")
	}
	return nil
}

func (s *PostgresStore) GetAgreements(ctx context.Context, driverID id.DriverID) (*models.Agreements, error) {
	const q = `
SELECT driver_id, terms_accepted_at, safety_accepted_at, commission_accepted_at,
       training_passed_at, updated_at
FROM agreements WHERE driver_id = $1`
	var a models.Agreements
	err := s.pool.QueryRow(ctx, q, string(driverID)).Scan(
		&a.DriverID, &a.TermsAcceptedAt, &a.SafetyAcceptedAt,
		&a.CommissionAcceptedAt, &a.TrainingPassedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get agreements")
	}
	return &a, nil
}

func (s *PostgresStore) SaveAgreements(ctx context.Context, agreements *models.Agreements) error {
	const q = `
INSERT INTO agreements (driver_id, terms_accepted_at, safety_accepted_at,
                        commission_accepted_at, training_passed_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (driver_id) DO UPDATE SET
	terms_accepted_at = EXCLUDED.terms_accepted_at,
	safety_accepted_at = EXCLUDED.safety_accepted_at,
	commission_accepted_at = EXCLUDED.commission_accepted_at,
	training_passed_at = EXCLUDED.training_passed_at,
	updated_at = EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, q,
		string(agreements.DriverID), agreements.TermsAcceptedAt,
		agreements.SafetyAcceptedAt, agreements.CommissionAcceptedAt,
		agreements.TrainingPassedAt, agreements.UpdatedAt,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save agreements")
	}
	return nil
}

func (s *PostgresStore) GetBackgroundCheck(ctx context.Context, driverID id.DriverID) (*models.BackgroundCheck, error) {
	const q = `SELECT driver_id, status, updated_at FROM background_checks WHERE driver_id = $1`
	var (
		check     models.BackgroundCheck
		rawStatus string
	)
	err := s.pool.QueryRow(ctx, q, string(driverID)).Scan(&check.DriverID, &rawStatus, &check.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get background check")
	}
	check.Status = models.NormalizeBackgroundCheckStatus(rawStatus)
	return &check, nil
}

func (s *PostgresStore) SaveBackgroundCheck(ctx context.Context, check *models.BackgroundCheck) error {
	const q = `
INSERT INTO background_checks (driver_id, status, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (driver_id) DO UPDATE SET
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, q, string(check.DriverID), string(check.Status), check.UpdatedAt)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save background check")
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgSerializationFailure
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

package models

import (
	"strings"
	"time"

	id "onramp/pkg/domain"
)

// Driver is the onboarding record for one driver account. Owned exclusively
// by the driver during onboarding; mutated by admin review afterward.
type Driver struct {
	ID              id.DriverID    `json:"id"`
	Status          DriverStatus   `json:"status"`
	OnboardingStep  OnboardingStep `json:"onboarding_step"`
	AccountVerified bool           `json:"account_verified"`
	FullName        string         `json:"full_name"`
	DateOfBirth     string         `json:"date_of_birth,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	Email           string         `json:"email,omitempty"`
	Online          bool           `json:"online"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// AdvanceStep moves the onboarding step forward, never backward. The step is
// advisory UI state; regressing it after a re-upload would hide screens the
// driver already completed.
func (d *Driver) AdvanceStep(target OnboardingStep) {
	order := map[OnboardingStep]int{
		StepAccount:    0,
		StepDocuments:  1,
		StepVehicle:    2,
		StepAgreements: 3,
		StepReview:     4,
	}
	if order[target] > order[d.OnboardingStep] {
		d.OnboardingStep = target
	}
}

// VehicleImage is one photo slot on the vehicle record.
type VehicleImage struct {
	FilePath    string `json:"file_path,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

// Vehicle is the driver's current vehicle. At most one per driver; the plate
// is globally unique across all drivers via the plate-claim record.
type Vehicle struct {
	DriverID        id.DriverID                       `json:"driver_id"`
	Make            string                            `json:"make"`
	Model           string                            `json:"model"`
	Year            string                            `json:"year"`
	Color           string                            `json:"color"`
	Plate           id.PlateNumber                    `json:"plate"`
	Category        VehicleCategory                   `json:"category"`
	Status          ReviewStatus                      `json:"status"`
	RejectionReason string                            `json:"rejection_reason,omitempty"`
	Images          map[VehicleImageSlot]VehicleImage `json:"images,omitempty"`
	CreatedAt       time.Time                         `json:"created_at"`
	UpdatedAt       time.Time                         `json:"updated_at"`
}

// CoreFieldsComplete reports whether all registration fields are filled in and
// the category is a known service class. Review status is deliberately not
// part of completeness: an unapproved-but-complete vehicle still lets the
// driver submit for review.
func (v *Vehicle) CoreFieldsComplete() bool {
	if v == nil {
		return false
	}
	for _, field := range []string{v.Make, v.Model, v.Year, v.Color, string(v.Plate)} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return v.Category.IsValid()
}

// Document is one uploaded onboarding document. One record per
// (driver, document type) pair; re-uploads overwrite in place.
type Document struct {
	DriverID        id.DriverID  `json:"driver_id"`
	Type            DocumentType `json:"type"`
	TrackingID      string       `json:"tracking_id"`
	Number          string       `json:"number,omitempty"`
	ExpiresAt       *time.Time   `json:"expires_at,omitempty"`
	FilePath        string       `json:"file_path,omitempty"`
	DownloadURL     string       `json:"download_url,omitempty"`
	MimeType        string       `json:"mime_type,omitempty"`
	Status          ReviewStatus `json:"status"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	SubmittedAt     time.Time    `json:"submitted_at"`
	ReviewedAt      *time.Time   `json:"reviewed_at,omitempty"`
}

// HasFile reports whether an upload is attached: either the storage path or
// the direct download reference is non-empty after trimming.
func (d *Document) HasFile() bool {
	if d == nil {
		return false
	}
	return strings.TrimSpace(d.FilePath) != "" || strings.TrimSpace(d.DownloadURL) != ""
}

// EffectiveStatus applies the live expiry check: a document whose expiry date
// has passed now is EXPIRED regardless of its stored status. The derived value
// is never written back; persistence of expiry, if any, is a review-tooling
// concern.
func (d *Document) EffectiveStatus(now time.Time) ReviewStatus {
	if d == nil {
		return StatusPending
	}
	if d.ExpiresAt != nil && d.ExpiresAt.Before(now) {
		return StatusExpired
	}
	if !d.Status.IsStorable() {
		return StatusPending
	}
	return d.Status
}

// Agreements holds the driver's acceptance timestamps. A nil timestamp means
// not accepted; acceptance is not additive, so re-submitting without a flag
// clears it.
type Agreements struct {
	DriverID             id.DriverID `json:"driver_id"`
	TermsAcceptedAt      *time.Time  `json:"terms_accepted_at,omitempty"`
	SafetyAcceptedAt     *time.Time  `json:"safety_accepted_at,omitempty"`
	CommissionAcceptedAt *time.Time  `json:"commission_accepted_at,omitempty"`
	TrainingPassedAt     *time.Time  `json:"training_passed_at,omitempty"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Complete reports whether terms, safety, and commission are all accepted.
// Training is tracked but not required.
func (a *Agreements) Complete() bool {
	if a == nil {
		return false
	}
	return a.TermsAcceptedAt != nil && a.SafetyAcceptedAt != nil && a.CommissionAcceptedAt != nil
}

// BackgroundCheck is the third-party vetting record for one driver.
type BackgroundCheck struct {
	DriverID  id.DriverID           `json:"driver_id"`
	Status    BackgroundCheckStatus `json:"status"`
	UpdatedAt time.Time             `json:"updated_at"`
}

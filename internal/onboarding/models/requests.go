package models

import (
	"strings"
	"time"

	id "onramp/pkg/domain"
	dErrors "onramp/pkg/domain-errors"
)

// Request DTOs decode straight from JSON bodies. Each normalizes and validates
// itself before the service sees it; validation failures surface before any
// write.

// SaveProfileRequest carries the profile fields from the account screen.
type SaveProfileRequest struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

func (r *SaveProfileRequest) Normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
}

func (r *SaveProfileRequest) Validate() error {
	if r.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full_name is required")
	}
	if r.DateOfBirth != "" {
		if _, err := ParseTimestamp(r.DateOfBirth); err != nil {
			return dErrors.New(dErrors.CodeValidation, "date_of_birth is not a valid date")
		}
	}
	return nil
}

// SaveDocumentRequest upserts metadata for one uploaded document. The file
// itself is uploaded out of band; only the storage references travel here.
type SaveDocumentRequest struct {
	Type        string `json:"type"`
	Number      string `json:"number"`
	ExpiresAt   string `json:"expires_at"`
	FilePath    string `json:"file_path"`
	DownloadURL string `json:"download_url"`
	MimeType    string `json:"mime_type"`

	parsedType      DocumentType
	parsedExpiresAt *time.Time
}

func (r *SaveDocumentRequest) Normalize() {
	r.Type = strings.ToUpper(strings.TrimSpace(r.Type))
	r.Number = strings.TrimSpace(r.Number)
	r.ExpiresAt = strings.TrimSpace(r.ExpiresAt)
	r.FilePath = strings.TrimSpace(r.FilePath)
	r.DownloadURL = strings.TrimSpace(r.DownloadURL)
	r.MimeType = strings.TrimSpace(r.MimeType)
}

func (r *SaveDocumentRequest) Validate() error {
	docType, ok := ParseDocumentType(r.Type)
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "invalid document type: "+r.Type)
	}
	r.parsedType = docType

	if r.FilePath == "" && r.DownloadURL == "" {
		return dErrors.New(dErrors.CodeValidation, "document upload reference is required")
	}

	expiresAt, err := ParseTimestamp(r.ExpiresAt)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "expires_at is not a valid date")
	}
	r.parsedExpiresAt = expiresAt
	return nil
}

// DocumentType returns the parsed type. Valid only after Validate succeeds.
func (r *SaveDocumentRequest) DocumentType() DocumentType {
	return r.parsedType
}

// ExpiryTime returns the parsed expiry. Valid only after Validate succeeds.
func (r *SaveDocumentRequest) ExpiryTime() *time.Time {
	return r.parsedExpiresAt
}

// VehicleImagePayload is one photo slot in a vehicle save.
type VehicleImagePayload struct {
	FilePath    string `json:"file_path"`
	DownloadURL string `json:"download_url"`
	MimeType    string `json:"mime_type"`
}

// SaveVehicleRequest registers or replaces the driver's current vehicle.
type SaveVehicleRequest struct {
	Make     string                         `json:"make"`
	Model    string                         `json:"model"`
	Year     string                         `json:"year"`
	Color    string                         `json:"color"`
	Plate    string                         `json:"plate"`
	Category string                         `json:"category"`
	Images   map[string]VehicleImagePayload `json:"images"`

	parsedPlate  id.PlateNumber
	parsedImages map[VehicleImageSlot]VehicleImage
}

func (r *SaveVehicleRequest) Normalize() {
	r.Make = strings.TrimSpace(r.Make)
	r.Model = strings.TrimSpace(r.Model)
	r.Year = strings.TrimSpace(r.Year)
	r.Color = strings.TrimSpace(r.Color)
	r.Category = strings.ToUpper(strings.TrimSpace(r.Category))
	r.parsedPlate = id.NormalizePlate(r.Plate)
}

func (r *SaveVehicleRequest) Validate() error {
	for name, value := range map[string]string{
		"make": r.Make, "model": r.Model, "year": r.Year, "color": r.Color,
	} {
		if value == "" {
			return dErrors.New(dErrors.CodeValidation, name+" is required")
		}
	}
	if r.parsedPlate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "plate is required")
	}
	if !VehicleCategory(r.Category).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid vehicle category: "+r.Category)
	}

	r.parsedImages = make(map[VehicleImageSlot]VehicleImage, len(r.Images))
	for rawSlot, img := range r.Images {
		slot, ok := ParseVehicleImageSlot(rawSlot)
		if !ok {
			return dErrors.New(dErrors.CodeValidation, "invalid vehicle image slot: "+rawSlot)
		}
		r.parsedImages[slot] = VehicleImage{
			FilePath:    strings.TrimSpace(img.FilePath),
			DownloadURL: strings.TrimSpace(img.DownloadURL),
			MimeType:    strings.TrimSpace(img.MimeType),
		}
	}
	return nil
}

// PlateNumber returns the normalized plate. Valid only after Normalize.
func (r *SaveVehicleRequest) PlateNumber() id.PlateNumber {
	return r.parsedPlate
}

// ImageMap returns the parsed image slots. Valid only after Validate succeeds.
func (r *SaveVehicleRequest) ImageMap() map[VehicleImageSlot]VehicleImage {
	return r.parsedImages
}

// SaveAgreementsRequest sets agreement acceptance. Omitting a flag clears the
// corresponding acceptance; submitting is not additive.
type SaveAgreementsRequest struct {
	AcceptTerms      bool `json:"accept_terms"`
	AcceptSafety     bool `json:"accept_safety"`
	AcceptCommission bool `json:"accept_commission"`
	TrainingPassed   bool `json:"training_passed"`
}

func (r *SaveAgreementsRequest) Normalize() {}

func (r *SaveAgreementsRequest) Validate() error { return nil }

// SetAvailabilityRequest toggles the driver online or offline.
type SetAvailabilityRequest struct {
	Online bool `json:"online"`
}

func (r *SetAvailabilityRequest) Normalize() {}

func (r *SetAvailabilityRequest) Validate() error { return nil }

// ReviewDocumentRequest is the admin decision on one document.
type ReviewDocumentRequest struct {
	Type            string `json:"type"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason"`

	parsedType DocumentType
}

func (r *ReviewDocumentRequest) Normalize() {
	r.Type = strings.ToUpper(strings.TrimSpace(r.Type))
	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
	r.RejectionReason = strings.TrimSpace(r.RejectionReason)
}

func (r *ReviewDocumentRequest) Validate() error {
	docType, ok := ParseDocumentType(r.Type)
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "invalid document type: "+r.Type)
	}
	r.parsedType = docType
	return validateReviewDecision(r.Status, r.RejectionReason)
}

func (r *ReviewDocumentRequest) DocumentType() DocumentType {
	return r.parsedType
}

// ReviewVehicleRequest is the admin decision on the driver's vehicle.
type ReviewVehicleRequest struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason"`
}

func (r *ReviewVehicleRequest) Normalize() {
	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
	r.RejectionReason = strings.TrimSpace(r.RejectionReason)
}

func (r *ReviewVehicleRequest) Validate() error {
	return validateReviewDecision(r.Status, r.RejectionReason)
}

// UpdateBackgroundCheckRequest records the vetting provider's outcome.
type UpdateBackgroundCheckRequest struct {
	Status string `json:"status"`
}

func (r *UpdateBackgroundCheckRequest) Normalize() {
	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
}

func (r *UpdateBackgroundCheckRequest) Validate() error {
	if !BackgroundCheckStatus(r.Status).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid background check status: "+r.Status)
	}
	return nil
}

// SetDriverStatusRequest is the admin lifecycle action (approve, reject,
// suspend, reactivate).
type SetDriverStatusRequest struct {
	Status string `json:"status"`
}

func (r *SetDriverStatusRequest) Normalize() {
	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
}

func (r *SetDriverStatusRequest) Validate() error {
	if !DriverStatus(r.Status).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid driver status: "+r.Status)
	}
	return nil
}

func validateReviewDecision(status, rejectionReason string) error {
	switch ReviewStatus(status) {
	case StatusApproved:
		return nil
	case StatusRejected:
		if rejectionReason == "" {
			return dErrors.New(dErrors.CodeValidation, "rejection_reason is required when rejecting")
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeValidation, "review status must be APPROVED or REJECTED")
	}
}

package models

import "strings"

// DriverStatus is the review lifecycle state of a driver account.
//
// Transitions:
//
//	UNVERIFIED  -> PENDING_REVIEW            (driver submits, gated by eligibility)
//	REJECTED    -> PENDING_REVIEW            (driver resubmits after fixing issues)
//	PENDING_REVIEW -> ACTIVE | REJECTED      (admin review)
//	ACTIVE      -> SUSPENDED                 (admin action)
//	SUSPENDED   -> ACTIVE                    (admin action)
type DriverStatus string

const (
	DriverStatusUnverified    DriverStatus = "UNVERIFIED"
	DriverStatusPendingReview DriverStatus = "PENDING_REVIEW"
	DriverStatusActive        DriverStatus = "ACTIVE"
	DriverStatusRejected      DriverStatus = "REJECTED"
	DriverStatusSuspended     DriverStatus = "SUSPENDED"
)

var driverTransitions = map[DriverStatus][]DriverStatus{
	DriverStatusUnverified:    {DriverStatusPendingReview},
	DriverStatusRejected:      {DriverStatusPendingReview},
	DriverStatusPendingReview: {DriverStatusActive, DriverStatusRejected},
	DriverStatusActive:        {DriverStatusSuspended},
	DriverStatusSuspended:     {DriverStatusActive},
}

// CanTransitionTo reports whether the lifecycle permits moving to target.
func (s DriverStatus) CanTransitionTo(target DriverStatus) bool {
	for _, allowed := range driverTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsValid reports whether s is one of the known lifecycle states.
func (s DriverStatus) IsValid() bool {
	switch s {
	case DriverStatusUnverified, DriverStatusPendingReview, DriverStatusActive,
		DriverStatusRejected, DriverStatusSuspended:
		return true
	}
	return false
}

// NormalizeDriverStatus repairs an unknown stored value to the safe default.
// Applied at the store boundary so evaluation never sees junk enums.
func NormalizeDriverStatus(raw string) DriverStatus {
	s := DriverStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return DriverStatusUnverified
	}
	return s
}

// OnboardingStep tracks UI progress through onboarding. Advisory only;
// eligibility never consults it.
type OnboardingStep string

const (
	StepAccount    OnboardingStep = "ACCOUNT"
	StepDocuments  OnboardingStep = "DOCUMENTS"
	StepVehicle    OnboardingStep = "VEHICLE"
	StepAgreements OnboardingStep = "AGREEMENTS"
	StepReview     OnboardingStep = "REVIEW"
)

func (s OnboardingStep) IsValid() bool {
	switch s {
	case StepAccount, StepDocuments, StepVehicle, StepAgreements, StepReview:
		return true
	}
	return false
}

func NormalizeOnboardingStep(raw string) OnboardingStep {
	s := OnboardingStep(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return StepAccount
	}
	return s
}

// DocumentType identifies one of the required onboarding documents.
type DocumentType string

const (
	DocLicense        DocumentType = "LICENSE"
	DocGovID          DocumentType = "GOV_ID"
	DocProfilePhoto   DocumentType = "PROFILE_PHOTO"
	DocVehicleReg     DocumentType = "VEHICLE_REG"
	DocInsurance      DocumentType = "INSURANCE"
	DocRoadworthiness DocumentType = "ROADWORTHINESS"
)

// RequiredDocumentTypes is the fixed, ordered set every driver must upload.
// Evaluation and payload assembly iterate this slice so output ordering is
// stable.
var RequiredDocumentTypes = []DocumentType{
	DocLicense,
	DocGovID,
	DocProfilePhoto,
	DocVehicleReg,
	DocInsurance,
	DocRoadworthiness,
}

func (t DocumentType) IsValid() bool {
	for _, known := range RequiredDocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseDocumentType validates caller-supplied document types.
func ParseDocumentType(raw string) (DocumentType, bool) {
	t := DocumentType(strings.ToUpper(strings.TrimSpace(raw)))
	return t, t.IsValid()
}

// ReviewStatus is the review state shared by documents and vehicles.
// StatusExpired is derived at evaluation time from the expiry date and is
// never written to storage.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "PENDING"
	StatusApproved ReviewStatus = "APPROVED"
	StatusRejected ReviewStatus = "REJECTED"
	StatusExpired  ReviewStatus = "EXPIRED"
)

// IsStorable reports whether the status may be persisted. EXPIRED is derived
// only.
func (s ReviewStatus) IsStorable() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func NormalizeReviewStatus(raw string) ReviewStatus {
	s := ReviewStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsStorable() {
		return StatusPending
	}
	return s
}

// VehicleCategory is the service class a vehicle is registered under.
type VehicleCategory string

const (
	CategoryEconomy VehicleCategory = "ECONOMY"
	CategoryPremium VehicleCategory = "PREMIUM"
	CategoryXL      VehicleCategory = "XL"
)

func (c VehicleCategory) IsValid() bool {
	switch c {
	case CategoryEconomy, CategoryPremium, CategoryXL:
		return true
	}
	return false
}

// VehicleImageSlot names the three required vehicle photos.
type VehicleImageSlot string

const (
	SlotExterior VehicleImageSlot = "EXTERIOR"
	SlotInterior VehicleImageSlot = "INTERIOR"
	SlotPlate    VehicleImageSlot = "PLATE"
)

func (s VehicleImageSlot) IsValid() bool {
	switch s {
	case SlotExterior, SlotInterior, SlotPlate:
		return true
	}
	return false
}

// ParseVehicleImageSlot validates caller-supplied image slots.
func ParseVehicleImageSlot(raw string) (VehicleImageSlot, bool) {
	s := VehicleImageSlot(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.IsValid()
}

// BackgroundCheckStatus is the state of the third-party background check.
type BackgroundCheckStatus string

const (
	BackgroundNotStarted BackgroundCheckStatus = "NOT_STARTED"
	BackgroundInReview   BackgroundCheckStatus = "IN_REVIEW"
	BackgroundPassed     BackgroundCheckStatus = "PASSED"
	BackgroundFailed     BackgroundCheckStatus = "FAILED"
)

func (s BackgroundCheckStatus) IsValid() bool {
	switch s {
	case BackgroundNotStarted, BackgroundInReview, BackgroundPassed, BackgroundFailed:
		return true
	}
	return false
}

func NormalizeBackgroundCheckStatus(raw string) BackgroundCheckStatus {
	s := BackgroundCheckStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return BackgroundNotStarted
	}
	return s
}

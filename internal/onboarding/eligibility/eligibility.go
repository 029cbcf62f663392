// Package eligibility decides whether a driver's onboarding state qualifies
// them to submit their application for review and to go online for trips.
//
// Evaluate is a pure function over a snapshot of onboarding records plus a
// reference "now". It performs no I/O and never mutates its input; the
// orchestrator re-runs it at write time for every gated transition so a stale
// verdict from earlier UI state can never authorize a write.
package eligibility

import (
	"strings"
	"time"

	"onramp/internal/onboarding/models"
)

// Snapshot is the normalized read of one driver's onboarding records. Nil
// pointers mean the record does not exist yet; a missing documents entry is
// treated as an absent upload.
type Snapshot struct {
	Driver          *models.Driver
	Documents       map[models.DocumentType]*models.Document
	Vehicle         *models.Vehicle
	Agreements      *models.Agreements
	BackgroundCheck *models.BackgroundCheck
}

// Options carries the configuration and reference time for one evaluation.
type Options struct {
	BackgroundCheckRequired bool
	Now                     time.Time
}

// MissingItems is the structured breakdown of what blocks the driver.
type MissingItems struct {
	// Documents lists required types with no uploaded file.
	Documents []models.DocumentType `json:"documents"`
	// Vehicle is set when vehicle core fields are incomplete.
	Vehicle bool `json:"vehicle"`
	// Agreements is set when terms, safety, or commission is unaccepted.
	Agreements bool `json:"agreements"`
	// BackgroundCheck is set when a check is required and has not passed.
	BackgroundCheck bool `json:"background_check"`
	// RejectedOrExpiredDocuments lists uploaded types whose effective status
	// is REJECTED or EXPIRED.
	RejectedOrExpiredDocuments []models.DocumentType `json:"rejected_or_expired_documents"`
	// NotApprovedDocuments lists uploaded types whose effective status is
	// anything but APPROVED.
	NotApprovedDocuments []models.DocumentType `json:"not_approved_documents"`
}

// Verdict is the evaluation result consumed by the UI and by the gated
// state-transition operations. It is derived fresh on every call and never
// persisted.
type Verdict struct {
	CanSubmitForReview bool         `json:"can_submit_for_review"`
	CanGoOnline        bool         `json:"can_go_online"`
	BlockingReasons    []string     `json:"blocking_reasons"`
	MissingItems       MissingItems `json:"missing_items"`
}

// Reason strings surfaced verbatim to the driver.
const (
	reasonAccountNotVerified   = "Account is not verified."
	reasonVehicleIncomplete    = "Vehicle details are incomplete."
	reasonAgreementsIncomplete = "Agreements have not been fully accepted."
	reasonDriverNotActive      = "Driver account is not active."
	reasonVehicleNotApproved   = "Vehicle is not approved."
	reasonBackgroundNotPassed  = "Background check has not passed."
)

// Evaluate computes the eligibility verdict for the snapshot at opts.Now.
//
// Rule order (submission gates first, then online gates) fixes the insertion
// order of BlockingReasons; duplicates are dropped.
func Evaluate(snap Snapshot, opts Options) Verdict {
	verdict := Verdict{
		CanSubmitForReview: true,
		CanGoOnline:        true,
	}
	reasons := newReasonList()

	resolveDocuments(&snap, opts.Now, &verdict.MissingItems)

	// Submission gates. Document approval status is deliberately irrelevant
	// here; only the presence of an upload per required type matters.
	if snap.Driver == nil || !snap.Driver.AccountVerified {
		verdict.CanSubmitForReview = false
		reasons.add(reasonAccountNotVerified)
	}
	if len(verdict.MissingItems.Documents) > 0 {
		verdict.CanSubmitForReview = false
		reasons.add(missingDocumentsReason(verdict.MissingItems.Documents))
	}
	if !snap.Vehicle.CoreFieldsComplete() {
		verdict.MissingItems.Vehicle = true
		verdict.CanSubmitForReview = false
		reasons.add(reasonVehicleIncomplete)
	}
	agreementsComplete := snap.Agreements.Complete()
	if !agreementsComplete {
		verdict.MissingItems.Agreements = true
		verdict.CanSubmitForReview = false
		reasons.add(reasonAgreementsIncomplete)
	}

	// Online gates.
	if snap.Driver == nil || snap.Driver.Status != models.DriverStatusActive {
		verdict.CanGoOnline = false
		reasons.add(reasonDriverNotActive)
	}
	if len(verdict.MissingItems.NotApprovedDocuments) > 0 {
		verdict.CanGoOnline = false
		reasons.add(notApprovedDocumentsReason(verdict.MissingItems.NotApprovedDocuments))
	}
	if snap.Vehicle == nil || snap.Vehicle.Status != models.StatusApproved {
		verdict.CanGoOnline = false
		reasons.add(reasonVehicleNotApproved)
	}
	if opts.BackgroundCheckRequired {
		if snap.BackgroundCheck == nil || snap.BackgroundCheck.Status != models.BackgroundPassed {
			verdict.MissingItems.BackgroundCheck = true
			verdict.CanGoOnline = false
			reasons.add(reasonBackgroundNotPassed)
		}
	}
	// Incomplete agreements block going online without a second reason
	// string; the submission gate above already covers the messaging.
	if !agreementsComplete {
		verdict.CanGoOnline = false
	}

	verdict.BlockingReasons = reasons.slice()
	return verdict
}

// resolveDocuments classifies every required document type into the missing /
// not-approved / rejected-or-expired buckets. Types without an uploaded file
// are only ever "missing"; their stored status is not consulted.
func resolveDocuments(snap *Snapshot, now time.Time, items *MissingItems) {
	items.Documents = []models.DocumentType{}
	items.NotApprovedDocuments = []models.DocumentType{}
	items.RejectedOrExpiredDocuments = []models.DocumentType{}

	for _, docType := range models.RequiredDocumentTypes {
		doc := snap.Documents[docType]
		if !doc.HasFile() {
			items.Documents = append(items.Documents, docType)
			continue
		}
		switch doc.EffectiveStatus(now) {
		case models.StatusApproved:
		case models.StatusRejected, models.StatusExpired:
			items.NotApprovedDocuments = append(items.NotApprovedDocuments, docType)
			items.RejectedOrExpiredDocuments = append(items.RejectedOrExpiredDocuments, docType)
		default:
			items.NotApprovedDocuments = append(items.NotApprovedDocuments, docType)
		}
	}
}

func missingDocumentsReason(types []models.DocumentType) string {
	return "Missing required documents: " + joinTypes(types) + "."
}

func notApprovedDocumentsReason(types []models.DocumentType) string {
	return "Documents not fully approved: " + joinTypes(types) + "."
}

func joinTypes(types []models.DocumentType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

// reasonList preserves insertion order while deduplicating.
type reasonList struct {
	seen  map[string]struct{}
	order []string
}

func newReasonList() *reasonList {
	return &reasonList{seen: make(map[string]struct{})}
}

func (r *reasonList) add(reason string) {
	if _, ok := r.seen[reason]; ok {
		return
	}
	r.seen[reason] = struct{}{}
	r.order = append(r.order, reason)
}

func (r *reasonList) slice() []string {
	if r.order == nil {
		return []string{}
	}
	return r.order
}

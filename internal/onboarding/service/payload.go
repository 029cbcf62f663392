package service

import (
	"time"

	"onramp/internal/onboarding/eligibility"
	"onramp/internal/onboarding/models"
)

// DocumentView is the read-side shape of one document. Status carries the
// effective value with expiry applied, which is why the stored record is not
// exposed directly.
type DocumentView struct {
	Type            models.DocumentType `json:"type"`
	TrackingID      string              `json:"tracking_id"`
	Number          string              `json:"number,omitempty"`
	ExpiresAt       *time.Time          `json:"expires_at,omitempty"`
	FilePath        string              `json:"file_path,omitempty"`
	DownloadURL     string              `json:"download_url,omitempty"`
	MimeType        string              `json:"mime_type,omitempty"`
	Status          models.ReviewStatus `json:"status"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	SubmittedAt     time.Time           `json:"submitted_at"`
	ReviewedAt      *time.Time          `json:"reviewed_at,omitempty"`
}

// OnboardingPayload is the full onboarding screen state for one driver:
// every record plus the current eligibility verdict. Documents appear twice,
// as an ordered list and keyed by type; both carry the same views.
type OnboardingPayload struct {
	Driver          *models.Driver                       `json:"driver"`
	Documents       []DocumentView                       `json:"documents"`
	DocumentsByType map[models.DocumentType]DocumentView `json:"documents_by_type"`
	Vehicle         *models.Vehicle                      `json:"vehicle,omitempty"`
	Agreements      *models.Agreements                   `json:"agreements,omitempty"`
	BackgroundCheck *models.BackgroundCheck              `json:"background_check,omitempty"`
	Eligibility     eligibility.Verdict                  `json:"eligibility"`
}

// buildPayload assembles the payload from a snapshot. Documents come out in
// the canonical required order; types without a record are skipped.
func buildPayload(snap eligibility.Snapshot, verdict eligibility.Verdict, now time.Time) *OnboardingPayload {
	payload := &OnboardingPayload{
		Driver:          snap.Driver,
		Documents:       make([]DocumentView, 0, len(snap.Documents)),
		DocumentsByType: make(map[models.DocumentType]DocumentView, len(snap.Documents)),
		Vehicle:         snap.Vehicle,
		Agreements:      snap.Agreements,
		BackgroundCheck: snap.BackgroundCheck,
		Eligibility:     verdict,
	}
	for _, docType := range models.RequiredDocumentTypes {
		doc, ok := snap.Documents[docType]
		if !ok {
			continue
		}
		view := DocumentView{
			Type:            doc.Type,
			TrackingID:      doc.TrackingID,
			Number:          doc.Number,
			ExpiresAt:       doc.ExpiresAt,
			FilePath:        doc.FilePath,
			DownloadURL:     doc.DownloadURL,
			MimeType:        doc.MimeType,
			Status:          doc.EffectiveStatus(now),
			RejectionReason: doc.RejectionReason,
			SubmittedAt:     doc.SubmittedAt,
			ReviewedAt:      doc.ReviewedAt,
		}
		payload.Documents = append(payload.Documents, view)
		payload.DocumentsByType[doc.Type] = view
	}
	return payload
}

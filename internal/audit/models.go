package audit

import (
	"time"

	id "onramp/pkg/domain"
)

// Action names the onboarding event being recorded.
type Action string

const (
	ActionDriverCreated    Action = "driver_created"
	ActionProfileSaved     Action = "profile_saved"
	ActionDocumentUploaded Action = "document_uploaded"
	ActionVehicleSaved     Action = "vehicle_saved"
	ActionPlateConflict    Action = "plate_conflict"
	ActionAgreementsSaved  Action = "agreements_saved"
	ActionDriverSubmitted  Action = "driver_submitted"
	ActionSubmitBlocked    Action = "submit_blocked"
	ActionDriverOnline     Action = "driver_online"
	ActionDriverOffline    Action = "driver_offline"
	ActionOnlineBlocked    Action = "online_blocked"
	ActionDocumentReviewed Action = "document_reviewed"
	ActionVehicleReviewed  Action = "vehicle_reviewed"
	ActionBackgroundCheck  Action = "background_check_updated"
	ActionStatusChanged    Action = "driver_status_changed"
)

// Event is emitted from domain logic to capture key onboarding actions. Keep
// it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	DriverID  id.DriverID `json:"driver_id"`
	Action    Action      `json:"action"`
	Actor     string      `json:"actor,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	ClientIP  string      `json:"client_ip,omitempty"`
	Device    string      `json:"device,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}

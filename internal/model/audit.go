package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is a write-once record of who touched what patient data.
// Entries are never mutated or deleted.
type AuditLog struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ActorID      uuid.UUID `json:"actor_id" db:"actor_id"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	Action       string    `json:"action" db:"action"`
	Detail       string    `json:"detail" db:"detail"`
	IPAddress    string    `json:"ip_address" db:"ip_address"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Audit action vocabulary. Every data-touching endpoint logs exactly one
// entry tagged with one of these.
const (
	AuditActionList               = "list"
	AuditActionView               = "view"
	AuditActionCreate             = "create"
	AuditActionUpdate             = "update"
	AuditActionArchive            = "archive"
	AuditActionViewMedicalHistory = "view_medical_history"
	AuditActionViewVitalSigns     = "view_vital_signs"
	AuditActionSearch             = "search"
)

// Resource types
const (
	AuditResourcePatient = "patient"
	AuditResourceUser    = "user"
)

type AuditFilters struct {
	Pagination
	ActorID   *uuid.UUID `form:"actor_id"`
	Action    string     `form:"action"`
	StartDate time.Time  `form:"start_date" time_format:"2006-01-02"`
	EndDate   time.Time  `form:"end_date" time_format:"2006-01-02"`
}

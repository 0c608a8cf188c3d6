package model

import (
	"time"

	"github.com/google/uuid"
)

type HistoryStatus string

const (
	HistoryStatusActive         HistoryStatus = "active"
	HistoryStatusResolved       HistoryStatus = "resolved"
	HistoryStatusChronic        HistoryStatus = "chronic"
	HistoryStatusUnderTreatment HistoryStatus = "under_treatment"
)

func (s HistoryStatus) Valid() bool {
	switch s {
	case HistoryStatusActive, HistoryStatusResolved, HistoryStatusChronic, HistoryStatusUnderTreatment:
		return true
	}
	return false
}

// MedicalHistoryEntry belongs to exactly one patient. Entries are
// append-mostly; only the status may change over time.
type MedicalHistoryEntry struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	Condition   string    `db:"condition" json:"condition"`
	DiagnosedAt time.Time `db:"diagnosed_at" json:"diagnosed_at"`
	Status      string    `db:"status" json:"status"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type UpdateHistoryStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type AddHistoryEntryRequest struct {
	Condition   string     `json:"condition" binding:"required"`
	DiagnosedAt *time.Time `json:"diagnosed_at" binding:"required,notfuture"`
	Status      string     `json:"status" binding:"required"`
	Notes       string     `json:"notes"`
}

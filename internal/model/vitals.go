package model

import (
	"time"

	"github.com/google/uuid"
)

// VitalSigns is an immutable measurement snapshot for one patient.
type VitalSigns struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientID        uuid.UUID `db:"patient_id" json:"patient_id"`
	RecordedAt       time.Time `db:"recorded_at" json:"recorded_at"`
	RecordedBy       uuid.UUID `db:"recorded_by" json:"recorded_by"`
	HeartRate        *int      `db:"heart_rate" json:"heart_rate,omitempty"`
	SystolicBP       *int      `db:"systolic_bp" json:"systolic_bp,omitempty"`
	DiastolicBP      *int      `db:"diastolic_bp" json:"diastolic_bp,omitempty"`
	TemperatureC     *float64  `db:"temperature_c" json:"temperature_c,omitempty"`
	RespiratoryRate  *int      `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	OxygenSaturation *float64  `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
	Notes            string    `db:"notes" json:"notes,omitempty"`
}

type RecordVitalSignsRequest struct {
	HeartRate        *int     `json:"heart_rate" binding:"omitempty,min=0,max=400"`
	SystolicBP       *int     `json:"systolic_bp" binding:"omitempty,min=0,max=400"`
	DiastolicBP      *int     `json:"diastolic_bp" binding:"omitempty,min=0,max=300"`
	TemperatureC     *float64 `json:"temperature_c" binding:"omitempty,min=20,max=46"`
	RespiratoryRate  *int     `json:"respiratory_rate" binding:"omitempty,min=0,max=120"`
	OxygenSaturation *float64 `json:"oxygen_saturation" binding:"omitempty,min=0,max=100"`
	Notes            string   `json:"notes"`
}

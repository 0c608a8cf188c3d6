package model

import (
	"time"

	"github.com/google/uuid"
)

type PatientStatus string

const (
	PatientStatusActive      PatientStatus = "active"
	PatientStatusInactive    PatientStatus = "inactive"
	PatientStatusDeceased    PatientStatus = "deceased"
	PatientStatusTransferred PatientStatus = "transferred"
	PatientStatusArchived    PatientStatus = "archived"
)

// Valid reports whether s is a known patient status.
func (s PatientStatus) Valid() bool {
	switch s {
	case PatientStatusActive, PatientStatusInactive, PatientStatusDeceased,
		PatientStatusTransferred, PatientStatusArchived:
		return true
	}
	return false
}

// Terminal reports whether s ends the patient lifecycle. Terminal records
// are retained but no longer mutable through the update operation.
func (s PatientStatus) Terminal() bool {
	return s == PatientStatusArchived || s == PatientStatusDeceased
}

type Patient struct {
	Base
	MRN                 string     `db:"mrn" json:"mrn"`
	FirstName           string     `db:"first_name" json:"first_name"`
	LastName            string     `db:"last_name" json:"last_name"`
	DateOfBirth         time.Time  `db:"date_of_birth" json:"date_of_birth"`
	Gender              string     `db:"gender" json:"gender"`
	Email               string     `db:"email" json:"email"`
	Phone               string     `db:"phone" json:"phone"`
	Address             string     `db:"address" json:"address"`
	BloodType           string     `db:"blood_type" json:"blood_type,omitempty"`
	Allergies           string     `db:"allergies" json:"allergies,omitempty"`
	Medications         string     `db:"medications" json:"medications,omitempty"`
	Status              string     `db:"status" json:"status"`
	AssignedPhysicianID *uuid.UUID `db:"assigned_physician_id" json:"assigned_physician_id,omitempty"`
	CreatedBy           uuid.UUID  `db:"created_by" json:"created_by"`
	LastModifiedBy      uuid.UUID  `db:"last_modified_by" json:"last_modified_by"`
	Version             int64      `db:"version" json:"version"`

	EmergencyContact     *EmergencyContact `db:"-" json:"emergency_contact,omitempty"`
	EmergencyContactJSON string            `db:"emergency_contact" json:"-"`
	Insurance            *InsuranceInfo    `db:"-" json:"insurance,omitempty"`
	InsuranceJSON        string            `db:"insurance" json:"-"`
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

type InsuranceInfo struct {
	Provider     string `json:"provider"`
	PolicyNumber string `json:"policy_number"`
	GroupNumber  string `json:"group_number,omitempty"`
}

type CreatePatientRequest struct {
	FirstName        string            `json:"first_name"`
	LastName         string            `json:"last_name"`
	DateOfBirth      *time.Time        `json:"date_of_birth"`
	Gender           string            `json:"gender"`
	Email            string            `json:"email" binding:"omitempty,email"`
	Phone            string            `json:"phone"`
	Address          string            `json:"address"`
	BloodType        string            `json:"blood_type"`
	Allergies        string            `json:"allergies"`
	Medications      string            `json:"medications"`
	EmergencyContact *EmergencyContact `json:"emergency_contact"`
	Insurance        *InsuranceInfo    `json:"insurance"`
	AssignedPhysicianID *uuid.UUID     `json:"assigned_physician_id"`
}

// UpdatePatientRequest carries a partial update: only non-nil fields
// overwrite the stored record.
type UpdatePatientRequest struct {
	FirstName           *string           `json:"first_name"`
	LastName            *string           `json:"last_name"`
	DateOfBirth         *time.Time        `json:"date_of_birth"`
	Gender              *string           `json:"gender"`
	Email               *string           `json:"email" binding:"omitempty,email"`
	Phone               *string           `json:"phone"`
	Address             *string           `json:"address"`
	BloodType           *string           `json:"blood_type"`
	Allergies           *string           `json:"allergies"`
	Medications         *string           `json:"medications"`
	Status              *string           `json:"status"`
	EmergencyContact    *EmergencyContact `json:"emergency_contact"`
	Insurance           *InsuranceInfo    `json:"insurance"`
	AssignedPhysicianID *uuid.UUID        `json:"assigned_physician_id"`
	Version             *int64            `json:"version"`
}

type PatientFilters struct {
	Pagination
	SearchTerm          string     `json:"search_term" form:"search"`
	Status              string     `json:"status" form:"status"`
	AssignedPhysicianID *uuid.UUID `json:"assigned_physician_id" form:"assigned_physician_id"`
}

type SearchPatientsRequest struct {
	Name      string     `json:"name"`
	MRN       string     `json:"mrn"`
	BirthDate *time.Time `json:"birth_date"`
	Status    string     `json:"status"`
}

// PatientSummary is the list/search projection of a patient record.
type PatientSummary struct {
	ID                  uuid.UUID  `json:"id"`
	MRN                 string     `json:"mrn"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	DateOfBirth         time.Time  `json:"date_of_birth"`
	Gender              string     `json:"gender"`
	Status              string     `json:"status"`
	AssignedPhysicianID *uuid.UUID `json:"assigned_physician_id,omitempty"`
}

// Summary projects the patient to its list representation.
func (p *Patient) Summary() PatientSummary {
	return PatientSummary{
		ID:                  p.ID,
		MRN:                 p.MRN,
		FirstName:           p.FirstName,
		LastName:            p.LastName,
		DateOfBirth:         p.DateOfBirth,
		Gender:              p.Gender,
		Status:              p.Status,
		AssignedPhysicianID: p.AssignedPhysicianID,
	}
}

// ValidationResult accumulates every business-rule violation found in a
// create request rather than stopping at the first.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/patient-api/internal/model"
)

// All repository interfaces in one file
type (
	// PatientRepository handles patient records and their sub-resources.
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByMRN(ctx context.Context, mrn string) (*model.Patient, error)
		// Update applies the patient row guarded by its version; a stale
		// version yields a conflict error, a missing row a not-found error.
		Update(ctx context.Context, patient *model.Patient) error
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.PatientStatus, actorID uuid.UUID) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int64, error)
		Search(ctx context.Context, criteria *model.SearchPatientsRequest) ([]*model.Patient, error)

		GetMedicalHistory(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalHistoryEntry, error)
		AddMedicalHistoryEntry(ctx context.Context, entry *model.MedicalHistoryEntry) error
		UpdateMedicalHistoryStatus(ctx context.Context, entryID uuid.UUID, status model.HistoryStatus) error

		GetVitalSigns(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*model.VitalSigns, error)
		AddVitalSigns(ctx context.Context, vitals *model.VitalSigns) error
	}

	// AuditRepository owns audit log entries. Append-only: there is no
	// update or delete operation.
	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		ListWithPagination(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int64, error)
	}

	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	}
)

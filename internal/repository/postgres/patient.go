package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/careloop/patient-api/internal/model"
	"github.com/careloop/patient-api/internal/repository"
	apperrors "github.com/careloop/patient-api/pkg/errors"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, mrn, first_name, last_name, date_of_birth, gender,
			email, phone, address, blood_type, allergies, medications,
			emergency_contact, insurance, status, assigned_physician_id,
			created_by, last_modified_by, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21
		)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		patient.ID,
		patient.MRN,
		patient.FirstName,
		patient.LastName,
		patient.DateOfBirth,
		patient.Gender,
		patient.Email,
		patient.Phone,
		patient.Address,
		patient.BloodType,
		patient.Allergies,
		patient.Medications,
		patient.EmergencyContactJSON,
		patient.InsuranceJSON,
		patient.Status,
		patient.AssignedPhysicianID,
		patient.CreatedBy,
		patient.LastModifiedBy,
		patient.Version,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE id = $1`
	var patient model.Patient
	err := r.GetDB().GetContext(ctx, &patient, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("patient", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByMRN(ctx context.Context, mrn string) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE mrn = $1`
	var patient model.Patient
	err := r.GetDB().GetContext(ctx, &patient, query, mrn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperrors.AppError{
			Code:    apperrors.ErrNotFound,
			Message: fmt.Sprintf("patient with MRN %s not found", mrn),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient by mrn: %w", err)
	}
	return &patient, nil
}

// Update writes every mutable column guarded by the row version. The MRN
// is immutable and deliberately absent from the SET list.
func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients SET
			first_name = $1, last_name = $2, date_of_birth = $3, gender = $4,
			email = $5, phone = $6, address = $7, blood_type = $8,
			allergies = $9, medications = $10, emergency_contact = $11,
			insurance = $12, status = $13, assigned_physician_id = $14,
			last_modified_by = $15, version = version + 1, updated_at = $16
		WHERE id = $17 AND version = $18
	`
	result, err := r.GetDB().ExecContext(ctx, query,
		patient.FirstName,
		patient.LastName,
		patient.DateOfBirth,
		patient.Gender,
		patient.Email,
		patient.Phone,
		patient.Address,
		patient.BloodType,
		patient.Allergies,
		patient.Medications,
		patient.EmergencyContactJSON,
		patient.InsuranceJSON,
		patient.Status,
		patient.AssignedPhysicianID,
		patient.LastModifiedBy,
		patient.UpdatedAt,
		patient.ID,
		patient.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a stale version.
		if _, err := r.Get(ctx, patient.ID); err != nil {
			return err
		}
		return apperrors.NewConflict("patient record was modified by another request")
	}
	patient.Version++
	return nil
}

func (r *patientRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PatientStatus, actorID uuid.UUID) error {
	query := `
		UPDATE patients
		SET status = $1, last_modified_by = $2, version = version + 1, updated_at = $3
		WHERE id = $4
	`
	result, err := r.GetDB().ExecContext(ctx, query, status, actorID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update patient status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read status update result: %w", err)
	}
	if affected == 0 {
		return apperrors.NewNotFound("patient", id)
	}
	return nil
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int64, error) {
	baseQuery := `FROM patients WHERE 1=1`
	var args []interface{}

	if filters.SearchTerm != "" {
		args = append(args, "%"+filters.SearchTerm+"%")
		baseQuery += fmt.Sprintf(" AND (first_name ILIKE $%d OR last_name ILIKE $%d OR mrn ILIKE $%d)", len(args), len(args), len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		baseQuery += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.AssignedPhysicianID != nil {
		args = append(args, *filters.AssignedPhysicianID)
		baseQuery += fmt.Sprintf(" AND assigned_physician_id = $%d", len(args))
	}

	var total int64
	if err := r.GetDB().GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	args = append(args, filters.PageSize, filters.Offset())
	query := "SELECT * " + baseQuery + fmt.Sprintf(" ORDER BY last_name, first_name LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var patients []*model.Patient
	if err := r.GetDB().SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}

func (r *patientRepository) Search(ctx context.Context, criteria *model.SearchPatientsRequest) ([]*model.Patient, error) {
	query := `SELECT * FROM patients WHERE 1=1`
	var args []interface{}

	if criteria.Name != "" {
		args = append(args, "%"+criteria.Name+"%")
		query += fmt.Sprintf(" AND (first_name ILIKE $%d OR last_name ILIKE $%d)", len(args), len(args))
	}
	if criteria.MRN != "" {
		args = append(args, criteria.MRN)
		query += fmt.Sprintf(" AND mrn = $%d", len(args))
	}
	if criteria.BirthDate != nil {
		args = append(args, *criteria.BirthDate)
		query += fmt.Sprintf(" AND date_of_birth = $%d", len(args))
	}
	if criteria.Status != "" {
		args = append(args, criteria.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY last_name, first_name"

	var patients []*model.Patient
	if err := r.GetDB().SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) GetMedicalHistory(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalHistoryEntry, error) {
	// created_at breaks diagnosis-date ties in insertion order.
	query := `
		SELECT * FROM medical_history
		WHERE patient_id = $1
		ORDER BY diagnosed_at, created_at
	`
	var entries []*model.MedicalHistoryEntry
	if err := r.GetDB().SelectContext(ctx, &entries, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to get medical history: %w", err)
	}
	return entries, nil
}

func (r *patientRepository) AddMedicalHistoryEntry(ctx context.Context, entry *model.MedicalHistoryEntry) error {
	query := `
		INSERT INTO medical_history (
			id, patient_id, condition, diagnosed_at, status, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		entry.ID,
		entry.PatientID,
		entry.Condition,
		entry.DiagnosedAt,
		entry.Status,
		entry.Notes,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add medical history entry: %w", err)
	}
	return nil
}

func (r *patientRepository) UpdateMedicalHistoryStatus(ctx context.Context, entryID uuid.UUID, status model.HistoryStatus) error {
	query := `UPDATE medical_history SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.GetDB().ExecContext(ctx, query, status, time.Now(), entryID)
	if err != nil {
		return fmt.Errorf("failed to update history status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read history update result: %w", err)
	}
	if affected == 0 {
		return apperrors.NewNotFound("medical history entry", entryID)
	}
	return nil
}

func (r *patientRepository) GetVitalSigns(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*model.VitalSigns, error) {
	query := `
		SELECT * FROM vital_signs
		WHERE patient_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC
	`
	var vitals []*model.VitalSigns
	if err := r.GetDB().SelectContext(ctx, &vitals, query, patientID, since); err != nil {
		return nil, fmt.Errorf("failed to get vital signs: %w", err)
	}
	return vitals, nil
}

func (r *patientRepository) AddVitalSigns(ctx context.Context, vitals *model.VitalSigns) error {
	query := `
		INSERT INTO vital_signs (
			id, patient_id, recorded_at, recorded_by, heart_rate,
			systolic_bp, diastolic_bp, temperature_c, respiratory_rate,
			oxygen_saturation, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		vitals.ID,
		vitals.PatientID,
		vitals.RecordedAt,
		vitals.RecordedBy,
		vitals.HeartRate,
		vitals.SystolicBP,
		vitals.DiastolicBP,
		vitals.TemperatureC,
		vitals.RespiratoryRate,
		vitals.OxygenSaturation,
		vitals.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to add vital signs: %w", err)
	}
	return nil
}

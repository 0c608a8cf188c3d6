package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/patient-api/internal/model"
	"github.com/careloop/patient-api/internal/repository"
	apperrors "github.com/careloop/patient-api/pkg/errors"
)

// AccessChecker gates search results so the result set never leaks a
// patient the actor cannot access directly.
type AccessChecker interface {
	CanAccess(ctx context.Context, patientID, actorID uuid.UUID, role model.Role) (bool, error)
}

type PatientService interface {
	ListPatients(ctx context.Context, filters *model.PatientFilters) (*model.PagedResult[model.PatientSummary], error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	ValidateCreate(req *model.CreatePatientRequest) model.ValidationResult
	CreatePatient(ctx context.Context, req *model.CreatePatientRequest, actorID uuid.UUID) (*model.Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest, actorID uuid.UUID) (*model.Patient, error)
	ArchivePatient(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error
	GetMedicalHistory(ctx context.Context, id uuid.UUID) ([]*model.MedicalHistoryEntry, error)
	AddMedicalHistoryEntry(ctx context.Context, id uuid.UUID, req *model.AddHistoryEntryRequest) (*model.MedicalHistoryEntry, error)
	UpdateMedicalHistoryStatus(ctx context.Context, id, entryID uuid.UUID, status string) error
	GetVitalSigns(ctx context.Context, id uuid.UUID, days int) ([]*model.VitalSigns, error)
	RecordVitalSigns(ctx context.Context, id uuid.UUID, req *model.RecordVitalSignsRequest, actorID uuid.UUID) (*model.VitalSigns, error)
	SearchPatients(ctx context.Context, criteria *model.SearchPatientsRequest, actorID uuid.UUID, role model.Role) ([]model.PatientSummary, error)
}

type Service struct {
	repo   repository.PatientRepository
	access AccessChecker
}

func NewService(repo repository.PatientRepository, access AccessChecker) *Service {
	return &Service{
		repo:   repo,
		access: access,
	}
}

func (s *Service) ListPatients(ctx context.Context, filters *model.PatientFilters) (*model.PagedResult[model.PatientSummary], error) {
	filters.Normalize()

	patients, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	summaries := make([]model.PatientSummary, 0, len(patients))
	for _, p := range patients {
		summaries = append(summaries, p.Summary())
	}

	return model.NewPagedResult(summaries, total, filters.Pagination), nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.unmarshalJSONFields(patient); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON fields: %w", err)
	}
	return patient, nil
}

// ValidateCreate accumulates every violation rather than stopping at the
// first, so the client sees the full list.
func (s *Service) ValidateCreate(req *model.CreatePatientRequest) model.ValidationResult {
	var errs []string

	if strings.TrimSpace(req.FirstName) == "" {
		errs = append(errs, "First name is required")
	}
	if strings.TrimSpace(req.LastName) == "" {
		errs = append(errs, "Last name is required")
	}
	if req.DateOfBirth == nil || req.DateOfBirth.IsZero() {
		errs = append(errs, "Date of birth is required")
	} else if req.DateOfBirth.After(time.Now()) {
		errs = append(errs, "Date of birth must be in the past")
	}
	if strings.TrimSpace(req.Gender) == "" {
		errs = append(errs, "Gender is required")
	}
	if strings.TrimSpace(req.Address) == "" {
		errs = append(errs, "Address is required")
	}
	if req.EmergencyContact == nil || req.EmergencyContact.Name == "" || req.EmergencyContact.Phone == "" {
		errs = append(errs, "Emergency contact is required")
	}
	if req.Insurance == nil || req.Insurance.Provider == "" || req.Insurance.PolicyNumber == "" {
		errs = append(errs, "Insurance information is required")
	}

	return model.ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}

// CreatePatient assigns a new identity and medical record number.
// Validation is the caller's gate; this fails only on store errors.
func (s *Service) CreatePatient(ctx context.Context, req *model.CreatePatientRequest, actorID uuid.UUID) (*model.Patient, error) {
	now := time.Now()
	patient := &model.Patient{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		MRN:                 generateMRN(),
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		DateOfBirth:         *req.DateOfBirth,
		Gender:              req.Gender,
		Email:               req.Email,
		Phone:               req.Phone,
		Address:             req.Address,
		BloodType:           req.BloodType,
		Allergies:           req.Allergies,
		Medications:         req.Medications,
		Status:              string(model.PatientStatusActive),
		AssignedPhysicianID: req.AssignedPhysicianID,
		CreatedBy:           actorID,
		LastModifiedBy:      actorID,
		Version:             1,
		EmergencyContact:    req.EmergencyContact,
		Insurance:           req.Insurance,
	}

	if err := s.marshalJSONFields(patient); err != nil {
		return nil, fmt.Errorf("failed to marshal JSON fields: %w", err)
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	return patient, nil
}

// UpdatePatient applies partial update semantics: only present fields
// overwrite. The write is version-checked so concurrent edits surface as
// conflicts instead of silently clobbering each other.
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest, actorID uuid.UUID) (*model.Patient, error) {
	if req.Status != nil && !model.PatientStatus(*req.Status).Valid() {
		return nil, apperrors.NewValidation([]string{"Status is invalid"})
	}

	patient, err := s.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}

	// Terminal records are retained but closed to further edits.
	if model.PatientStatus(patient.Status).Terminal() {
		return nil, apperrors.NewConflict("patient record is in a terminal status and cannot be modified")
	}

	if req.FirstName != nil {
		patient.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		patient.LastName = *req.LastName
	}
	if req.DateOfBirth != nil {
		patient.DateOfBirth = *req.DateOfBirth
	}
	if req.Gender != nil {
		patient.Gender = *req.Gender
	}
	if req.Email != nil {
		patient.Email = *req.Email
	}
	if req.Phone != nil {
		patient.Phone = *req.Phone
	}
	if req.Address != nil {
		patient.Address = *req.Address
	}
	if req.BloodType != nil {
		patient.BloodType = *req.BloodType
	}
	if req.Allergies != nil {
		patient.Allergies = *req.Allergies
	}
	if req.Medications != nil {
		patient.Medications = *req.Medications
	}
	if req.Status != nil {
		patient.Status = *req.Status
	}
	if req.EmergencyContact != nil {
		patient.EmergencyContact = req.EmergencyContact
	}
	if req.Insurance != nil {
		patient.Insurance = req.Insurance
	}
	if req.AssignedPhysicianID != nil {
		patient.AssignedPhysicianID = req.AssignedPhysicianID
	}
	if req.Version != nil {
		patient.Version = *req.Version
	}

	patient.UpdatedAt = time.Now()
	patient.LastModifiedBy = actorID

	if err := s.marshalJSONFields(patient); err != nil {
		return nil, fmt.Errorf("failed to marshal JSON fields: %w", err)
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, err
	}

	return patient, nil
}

// ArchivePatient sets a terminal status. The record is retained; there is
// no physical deletion anywhere in this service.
func (s *Service) ArchivePatient(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, id, model.PatientStatusArchived, actorID)
}

func (s *Service) GetMedicalHistory(ctx context.Context, id uuid.UUID) ([]*model.MedicalHistoryEntry, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetMedicalHistory(ctx, id)
}

func (s *Service) AddMedicalHistoryEntry(ctx context.Context, id uuid.UUID, req *model.AddHistoryEntryRequest) (*model.MedicalHistoryEntry, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if !model.HistoryStatus(req.Status).Valid() {
		return nil, apperrors.NewValidation([]string{"History status is invalid"})
	}

	now := time.Now()
	entry := &model.MedicalHistoryEntry{
		ID:          uuid.New(),
		PatientID:   id,
		Condition:   req.Condition,
		DiagnosedAt: *req.DiagnosedAt,
		Status:      req.Status,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.AddMedicalHistoryEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateMedicalHistoryStatus moves an entry through its lifecycle; the
// entry itself is otherwise immutable.
func (s *Service) UpdateMedicalHistoryStatus(ctx context.Context, id, entryID uuid.UUID, status string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if !model.HistoryStatus(status).Valid() {
		return apperrors.NewValidation([]string{"History status is invalid"})
	}
	return s.repo.UpdateMedicalHistoryStatus(ctx, entryID, model.HistoryStatus(status))
}

func (s *Service) GetVitalSigns(ctx context.Context, id uuid.UUID, days int) ([]*model.VitalSigns, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -days)
	return s.repo.GetVitalSigns(ctx, id, since)
}

func (s *Service) RecordVitalSigns(ctx context.Context, id uuid.UUID, req *model.RecordVitalSignsRequest, actorID uuid.UUID) (*model.VitalSigns, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	vitals := &model.VitalSigns{
		ID:               uuid.New(),
		PatientID:        id,
		RecordedAt:       time.Now(),
		RecordedBy:       actorID,
		HeartRate:        req.HeartRate,
		SystolicBP:       req.SystolicBP,
		DiastolicBP:      req.DiastolicBP,
		TemperatureC:     req.TemperatureC,
		RespiratoryRate:  req.RespiratoryRate,
		OxygenSaturation: req.OxygenSaturation,
		Notes:            req.Notes,
	}
	if err := s.repo.AddVitalSigns(ctx, vitals); err != nil {
		return nil, err
	}
	return vitals, nil
}

// SearchPatients filters results through the same access rules as a
// direct lookup, so an actor never sees a patient it could not fetch.
func (s *Service) SearchPatients(ctx context.Context, criteria *model.SearchPatientsRequest, actorID uuid.UUID, role model.Role) ([]model.PatientSummary, error) {
	var patients []*model.Patient
	var err error

	// An MRN is unique, so an exact-MRN search resolves through the
	// indexed lookup; remaining criteria are applied to the one match.
	if criteria.MRN != "" {
		patient, err := s.repo.GetByMRN(ctx, criteria.MRN)
		if apperrors.IsNotFound(err) {
			return []model.PatientSummary{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up patient by MRN: %w", err)
		}
		if matchesSearch(patient, criteria) {
			patients = []*model.Patient{patient}
		}
	} else {
		patients, err = s.repo.Search(ctx, criteria)
		if err != nil {
			return nil, fmt.Errorf("failed to search patients: %w", err)
		}
	}

	results := make([]model.PatientSummary, 0, len(patients))
	for _, p := range patients {
		allowed, err := s.access.CanAccess(ctx, p.ID, actorID, role)
		if err != nil {
			return nil, err
		}
		if !allowed {
			continue
		}
		results = append(results, p.Summary())
	}
	return results, nil
}

func matchesSearch(p *model.Patient, criteria *model.SearchPatientsRequest) bool {
	if criteria.Name != "" {
		name := strings.ToLower(criteria.Name)
		if !strings.Contains(strings.ToLower(p.FirstName), name) &&
			!strings.Contains(strings.ToLower(p.LastName), name) {
			return false
		}
	}
	if criteria.BirthDate != nil && !sameDay(p.DateOfBirth, *criteria.BirthDate) {
		return false
	}
	if criteria.Status != "" && p.Status != criteria.Status {
		return false
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func generateMRN() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "MRN-" + strings.ToUpper(raw[:10])
}

func (s *Service) marshalJSONFields(patient *model.Patient) error {
	if patient.EmergencyContact != nil {
		data, err := json.Marshal(patient.EmergencyContact)
		if err != nil {
			return err
		}
		patient.EmergencyContactJSON = string(data)
	}

	if patient.Insurance != nil {
		data, err := json.Marshal(patient.Insurance)
		if err != nil {
			return err
		}
		patient.InsuranceJSON = string(data)
	}

	return nil
}

func (s *Service) unmarshalJSONFields(patient *model.Patient) error {
	if patient.EmergencyContactJSON != "" {
		var contact model.EmergencyContact
		if err := json.Unmarshal([]byte(patient.EmergencyContactJSON), &contact); err != nil {
			return err
		}
		patient.EmergencyContact = &contact
	}

	if patient.InsuranceJSON != "" {
		var info model.InsuranceInfo
		if err := json.Unmarshal([]byte(patient.InsuranceJSON), &info); err != nil {
			return err
		}
		patient.Insurance = &info
	}

	return nil
}

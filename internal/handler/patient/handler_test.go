package patient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/patient-api/internal/handler"
	"github.com/careloop/patient-api/internal/middleware"
	"github.com/careloop/patient-api/internal/model"
	"github.com/careloop/patient-api/internal/service/audit"
	apperrors "github.com/careloop/patient-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockService struct {
	patients map[uuid.UUID]*model.Patient

	listResult   *model.PagedResult[model.PatientSummary]
	created      *model.Patient
	createCalls  int
	updateErr    error
	updateCalls  int
	archiveCalls int
	getCalls     int
	searchResult []model.PatientSummary

	vitalsDays int

	historyStatusErr   error
	historyStatusCalls int
	historyStatus      string
}

func newMockService() *mockService {
	return &mockService{patients: map[uuid.UUID]*model.Patient{}}
}

func (m *mockService) ListPatients(ctx context.Context, filters *model.PatientFilters) (*model.PagedResult[model.PatientSummary], error) {
	filters.Normalize()
	if m.listResult != nil {
		return m.listResult, nil
	}
	return model.NewPagedResult([]model.PatientSummary{}, 0, filters.Pagination), nil
}

func (m *mockService) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	m.getCalls++
	p, ok := m.patients[id]
	if !ok {
		return nil, apperrors.NewNotFound("patient", id)
	}
	return p, nil
}

func (m *mockService) ValidateCreate(req *model.CreatePatientRequest) model.ValidationResult {
	var errs []string
	if req.FirstName == "" {
		errs = append(errs, "First name is required")
	}
	if req.LastName == "" {
		errs = append(errs, "Last name is required")
	}
	if req.DateOfBirth == nil {
		errs = append(errs, "Date of birth is required")
	}
	if req.Gender == "" {
		errs = append(errs, "Gender is required")
	}
	if req.Address == "" {
		errs = append(errs, "Address is required")
	}
	if req.EmergencyContact == nil {
		errs = append(errs, "Emergency contact is required")
	}
	if req.Insurance == nil {
		errs = append(errs, "Insurance information is required")
	}
	return model.ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func (m *mockService) CreatePatient(ctx context.Context, req *model.CreatePatientRequest, actorID uuid.UUID) (*model.Patient, error) {
	m.createCalls++
	p := &model.Patient{
		Base:      model.Base{ID: uuid.New()},
		MRN:       "MRN-TEST000001",
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Status:    string(model.PatientStatusActive),
		Version:   1,
	}
	m.created = p
	m.patients[p.ID] = p
	return p, nil
}

func (m *mockService) UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest, actorID uuid.UUID) (*model.Patient, error) {
	m.updateCalls++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	p, ok := m.patients[id]
	if !ok {
		return nil, apperrors.NewNotFound("patient", id)
	}
	return p, nil
}

func (m *mockService) ArchivePatient(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error {
	m.archiveCalls++
	if _, ok := m.patients[id]; !ok {
		return apperrors.NewNotFound("patient", id)
	}
	return nil
}

func (m *mockService) GetMedicalHistory(ctx context.Context, id uuid.UUID) ([]*model.MedicalHistoryEntry, error) {
	if _, ok := m.patients[id]; !ok {
		return nil, apperrors.NewNotFound("patient", id)
	}
	return []*model.MedicalHistoryEntry{}, nil
}

func (m *mockService) AddMedicalHistoryEntry(ctx context.Context, id uuid.UUID, req *model.AddHistoryEntryRequest) (*model.MedicalHistoryEntry, error) {
	if _, ok := m.patients[id]; !ok {
		return nil, apperrors.NewNotFound("patient", id)
	}
	return &model.MedicalHistoryEntry{ID: uuid.New(), PatientID: id, Condition: req.Condition}, nil
}

func (m *mockService) UpdateMedicalHistoryStatus(ctx context.Context, id, entryID uuid.UUID, status string) error {
	m.historyStatusCalls++
	if m.historyStatusErr != nil {
		return m.historyStatusErr
	}
	if _, ok := m.patients[id]; !ok {
		return apperrors.NewNotFound("patient", id)
	}
	m.historyStatus = status
	return nil
}

func (m *mockService) GetVitalSigns(ctx context.Context, id uuid.UUID, days int) ([]*model.VitalSigns, error) {
	m.vitalsDays = days
	if _, ok := m.patients[id]; !ok {
		return nil, apperrors.NewNotFound("patient", id)
	}
	return []*model.VitalSigns{}, nil
}

func (m *mockService) RecordVitalSigns(ctx context.Context, id uuid.UUID, req *model.RecordVitalSignsRequest, actorID uuid.UUID) (*model.VitalSigns, error) {
	if _, ok := m.patients[id]; !ok {
		return nil, apperrors.NewNotFound("patient", id)
	}
	return &model.VitalSigns{ID: uuid.New(), PatientID: id, RecordedBy: actorID}, nil
}

func (m *mockService) SearchPatients(ctx context.Context, criteria *model.SearchPatientsRequest, actorID uuid.UUID, role model.Role) ([]model.PatientSummary, error) {
	return m.searchResult, nil
}

type mockAccess struct {
	allowed bool
	err     error
	calls   int
}

func (m *mockAccess) CanAccess(ctx context.Context, patientID, actorID uuid.UUID, role model.Role) (bool, error) {
	m.calls++
	return m.allowed, m.err
}

type mockRecorder struct {
	recorded  []audit.Entry
	reads     []audit.Entry
	recordErr error
}

func (m *mockRecorder) Record(ctx context.Context, entry audit.Entry) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.recorded = append(m.recorded, entry)
	return nil
}

func (m *mockRecorder) RecordRead(entry audit.Entry) {
	m.reads = append(m.reads, entry)
}

type fixture struct {
	handler  *Handler
	service  *mockService
	access   *mockAccess
	recorder *mockRecorder
	actorID  uuid.UUID
}

func newFixture() *fixture {
	service := newMockService()
	access := &mockAccess{allowed: true}
	recorder := &mockRecorder{}
	return &fixture{
		handler:  NewHandler(service, access, recorder),
		service:  service,
		access:   access,
		recorder: recorder,
		actorID:  uuid.New(),
	}
}

func (f *fixture) request(method, path string, body interface{}, patientID *uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	if patientID != nil {
		c.Params = gin.Params{{Key: "id", Value: patientID.String()}}
	}
	c.Set(middleware.ContextActorID, f.actorID)
	c.Set(middleware.ContextActorRole, model.RoleAdmin)
	return c, w
}

func (f *fixture) seedPatient() *model.Patient {
	p := &model.Patient{
		Base:      model.Base{ID: uuid.New()},
		MRN:       "MRN-SEEDED0001",
		FirstName: "Grace",
		LastName:  "Okafor",
		Status:    string(model.PatientStatusActive),
		Version:   1,
	}
	f.service.patients[p.ID] = p
	return p
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) handler.Response {
	t.Helper()
	var resp handler.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetPatientDeniedShortCircuits(t *testing.T) {
	f := newFixture()
	f.access.allowed = false
	p := f.seedPatient()

	c, w := f.request(http.MethodGet, "/patients/"+p.ID.String(), nil, &p.ID)
	f.handler.GetPatient(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "you do not have access to this patient record", resp.Message)

	// Denial means no data fetch and no audit record.
	assert.Zero(t, f.service.getCalls)
	assert.Empty(t, f.recorder.recorded)
	assert.Empty(t, f.recorder.reads)
}

func TestGetPatientNotFound(t *testing.T) {
	f := newFixture()
	missing := uuid.New()

	c, w := f.request(http.MethodGet, "/patients/"+missing.String(), nil, &missing)
	f.handler.GetPatient(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, fmt.Sprintf("patient with ID %s not found", missing), resp.Message)
	assert.Empty(t, f.recorder.reads)
}

func TestGetPatientAuditsRead(t *testing.T) {
	f := newFixture()
	p := f.seedPatient()

	c, w := f.request(http.MethodGet, "/patients/"+p.ID.String(), nil, &p.ID)
	f.handler.GetPatient(c)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.recorder.reads, 1)
	entry := f.recorder.reads[0]
	assert.Equal(t, model.AuditActionView, entry.Action)
	assert.Equal(t, f.actorID, entry.ActorID)
	assert.Contains(t, entry.Detail, p.ID.String())
	assert.Empty(t, f.recorder.recorded)
}

func TestGetPatientInvalidID(t *testing.T) {
	f := newFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/patients/not-a-uuid", nil)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	c.Set(middleware.ContextActorID, f.actorID)
	c.Set(middleware.ContextActorRole, model.RoleAdmin)

	f.handler.GetPatient(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, f.access.calls)
}

func TestCreatePatientValidationFailure(t *testing.T) {
	f := newFixture()

	c, w := f.request(http.MethodPost, "/patients", map[string]interface{}{
		"first_name": "John",
		"last_name":  "Doe",
	}, nil)
	f.handler.CreatePatient(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "validation failed", resp.Message)
	assert.Contains(t, resp.Errors, "Date of birth is required")
	assert.Contains(t, resp.Errors, "Gender is required")
	assert.NotContains(t, resp.Errors, "First name is required")

	// Nothing persisted, nothing audited.
	assert.Zero(t, f.service.createCalls)
	assert.Empty(t, f.recorder.recorded)
	assert.Empty(t, f.recorder.reads)
}

func TestCreatePatientSuccess(t *testing.T) {
	f := newFixture()
	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

	c, w := f.request(http.MethodPost, "/patients", map[string]interface{}{
		"first_name":    "Grace",
		"last_name":     "Okafor",
		"date_of_birth": dob.Format(time.RFC3339),
		"gender":        "female",
		"address":       "9 Elm Court",
		"emergency_contact": map[string]string{
			"name":  "Sam Okafor",
			"phone": "555-0101",
		},
		"insurance": map[string]string{
			"provider":      "Acme Health",
			"policy_number": "POL-1200",
		},
	}, nil)
	f.handler.CreatePatient(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, f.service.createCalls)

	require.Len(t, f.recorder.recorded, 1)
	entry := f.recorder.recorded[0]
	assert.Equal(t, model.AuditActionCreate, entry.Action)
	assert.Equal(t, model.AuditResourcePatient, entry.ResourceType)
	assert.Contains(t, entry.Detail, f.service.created.ID.String())
}

func TestCreatePatientAuditFailureIsServerError(t *testing.T) {
	f := newFixture()
	f.recorder.recordErr = apperrors.NewLoggingFailure(errors.New("store down"))
	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

	c, w := f.request(http.MethodPost, "/patients", map[string]interface{}{
		"first_name":    "Grace",
		"last_name":     "Okafor",
		"date_of_birth": dob.Format(time.RFC3339),
		"gender":        "female",
		"address":       "9 Elm Court",
		"emergency_contact": map[string]string{
			"name":  "Sam Okafor",
			"phone": "555-0101",
		},
		"insurance": map[string]string{
			"provider":      "Acme Health",
			"policy_number": "POL-1200",
		},
	}, nil)
	f.handler.CreatePatient(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUpdatePatientConflict(t *testing.T) {
	f := newFixture()
	p := f.seedPatient()
	f.service.updateErr = apperrors.NewConflict("patient record was modified by another request")

	c, w := f.request(http.MethodPut, "/patients/"+p.ID.String(), map[string]interface{}{
		"first_name": "Updated",
		"version":    1,
	}, &p.ID)
	f.handler.UpdatePatient(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, f.recorder.recorded)
}

func TestUpdatePatientAuditsMutation(t *testing.T) {
	f := newFixture()
	p := f.seedPatient()

	c, w := f.request(http.MethodPut, "/patients/"+p.ID.String(), map[string]interface{}{
		"first_name": "Updated",
	}, &p.ID)
	f.handler.UpdatePatient(c)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.recorder.recorded, 1)
	assert.Equal(t, model.AuditActionUpdate, f.recorder.recorded[0].Action)
	assert.Contains(t, f.recorder.recorded[0].Detail, p.ID.String())
}

func TestUpdatePatientInvalidStatusBadRequest(t *testing.T) {
	f := newFixture()
	p := f.seedPatient()
	f.service.updateErr = apperrors.NewValidation([]string{"Status is invalid"})

	c, w := f.request(http.MethodPut, "/patients/"+p.ID.String(), map[string]interface{}{
		"status": "resting",
	}, &p.ID)
	f.handler.UpdatePatient(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Contains(t, resp.Errors, "Status is invalid")
	assert.Empty(t, f.recorder.recorded)
}

func (f *fixture) historyStatusRequest(patientID uuid.UUID, entryID, status string) (*gin.Context, *httptest.ResponseRecorder) {
	c, w := f.request(http.MethodPatch, "/patients/"+patientID.String()+"/medical-history/"+entryID,
		map[string]interface{}{"status": status}, &patientID)
	c.Params = append(c.Params, gin.Param{Key: "entry_id", Value: entryID})
	return c, w
}

func TestUpdateMedicalHistoryStatusAuditsMutation(t *testing.T) {
	f := newFixture()
	p := f.seedPatient()
	entryID := uuid.New()

	c, w := f.historyStatusRequest(p.ID, entryID.String(), string(model.HistoryStatusResolved))
	f.handler.UpdateMedicalHistoryStatus(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, f.service.historyStatusCalls)
	assert.Equal(t, string(model.HistoryStatusResolved), f.service.historyStatus)

	require.Len(t, f.recorder.recorded, 1)
	entry := f.recorder.recorded[0]
	assert.Equal(t, model.AuditActionUpdate, entry.Action)
	assert.Contains(t, entry.Detail, p.ID.String())
	assert.Contains(t, entry.Detail, entryID.String())
	assert.Contains(t, entry.Detail, string(model.HistoryStatusResolved))
}

func TestUpdateMedicalHistoryStatusInvalid(t *testing.T) {
	f := newFixture()
	p := f.seedPatient()
	f.service.historyStatusErr = apperrors.NewValidation([]string{"History status is invalid"})

	c, w := f.historyStatusRequest(p.ID, uuid.NewString(), "cured")
	f.handler.UpdateMedicalHistoryStatus(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Contains(t, resp.Errors, "History status is invalid")
	assert.Empty(t, f.recorder.recorded)
}

func TestUpdateMedicalHistoryStatusBadEntryID(t *testing.T) {
	f := newFixture()
	p := f.seedPatient()

	c, w := f.historyStatusRequest(p.ID, "not-a-uuid", string(model.HistoryStatusActive))
	f.handler.UpdateMedicalHistoryStatus(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, f.service.historyStatusCalls)
}

func TestArchivePatientNoContent(t *testing.T) {
	f := newFixture()
	p := f.seedPatient()

	c, w := f.request(http.MethodDelete, "/patients/"+p.ID.String(), nil, &p.ID)
	f.handler.ArchivePatient(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, f.service.archiveCalls)
	require.Len(t, f.recorder.recorded, 1)
	assert.Equal(t, model.AuditActionArchive, f.recorder.recorded[0].Action)
}

func TestArchivePatientDenied(t *testing.T) {
	f := newFixture()
	f.access.allowed = false
	p := f.seedPatient()

	c, w := f.request(http.MethodDelete, "/patients/"+p.ID.String(), nil, &p.ID)
	f.handler.ArchivePatient(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, f.service.archiveCalls)
	assert.Empty(t, f.recorder.recorded)
}

func TestGetVitalSignsDefaultWindow(t *testing.T) {
	f := newFixture()
	p := f.seedPatient()

	c, w := f.request(http.MethodGet, "/patients/"+p.ID.String()+"/vital-signs", nil, &p.ID)
	f.handler.GetVitalSigns(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 30, f.service.vitalsDays)

	require.Len(t, f.recorder.reads, 1)
	entry := f.recorder.reads[0]
	assert.Equal(t, model.AuditActionViewVitalSigns, entry.Action)
	assert.Equal(t, fmt.Sprintf("PatientId: %s, Days: 30", p.ID), entry.Detail)
}

func TestGetVitalSignsCustomWindow(t *testing.T) {
	f := newFixture()
	p := f.seedPatient()

	c, w := f.request(http.MethodGet, "/patients/"+p.ID.String()+"/vital-signs?days=7", nil, &p.ID)
	f.handler.GetVitalSigns(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, f.service.vitalsDays)
}

func TestListPatientsAuditsRead(t *testing.T) {
	f := newFixture()

	c, w := f.request(http.MethodGet, "/patients?page=2&page_size=5", nil, nil)
	f.handler.ListPatients(c)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.recorder.reads, 1)
	assert.Equal(t, model.AuditActionList, f.recorder.reads[0].Action)
	assert.Equal(t, "Page: 2, PageSize: 5", f.recorder.reads[0].Detail)
}

func TestSearchPatientsAuditsResultCount(t *testing.T) {
	f := newFixture()
	f.service.searchResult = []model.PatientSummary{{MRN: "MRN-A"}, {MRN: "MRN-B"}}

	c, w := f.request(http.MethodPost, "/patients/search", map[string]interface{}{"name": "Oka"}, nil)
	f.handler.SearchPatients(c)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.recorder.reads, 1)
	assert.Equal(t, model.AuditActionSearch, f.recorder.reads[0].Action)
	assert.Equal(t, "Results: 2", f.recorder.reads[0].Detail)
}

func TestMissingActorIsUnauthorized(t *testing.T) {
	f := newFixture()
	p := f.seedPatient()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/patients/"+p.ID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: p.ID.String()}}

	f.handler.GetPatient(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

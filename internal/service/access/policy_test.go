package access

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/patient-api/internal/model"
	"github.com/careloop/patient-api/internal/repository"
	apperrors "github.com/careloop/patient-api/pkg/errors"
)

type stubPatientRepo struct {
	repository.PatientRepository
	patients map[uuid.UUID]*model.Patient
	getCalls int
}

func (s *stubPatientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	s.getCalls++
	p, ok := s.patients[id]
	if !ok {
		return nil, apperrors.NewNotFound("patient", id)
	}
	return p, nil
}

type stubUserRepo struct {
	repository.UserRepository
	users map[uuid.UUID]*model.User
}

func (s *stubUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", id)
	}
	return u, nil
}

func newTestPatient(status model.PatientStatus, physicianID *uuid.UUID) *model.Patient {
	return &model.Patient{
		Base:                model.Base{ID: uuid.New()},
		Status:              string(status),
		AssignedPhysicianID: physicianID,
	}
}

func newTestUser(careTeam *uuid.UUID) *model.User {
	return &model.User{
		Base:       model.Base{ID: uuid.New()},
		CareTeamID: careTeam,
		Active:     true,
	}
}

func TestCanAccessBlanketRoles(t *testing.T) {
	patients := &stubPatientRepo{patients: map[uuid.UUID]*model.Patient{}}
	svc := NewService(patients, &stubUserRepo{})

	for _, role := range []model.Role{model.RoleAdmin, model.RolePhysician} {
		allowed, err := svc.CanAccess(context.Background(), uuid.New(), uuid.New(), role)
		require.NoError(t, err)
		assert.True(t, allowed, "role %s should have blanket access", role)
	}

	// Blanket roles never hit the patient store.
	assert.Zero(t, patients.getCalls)
}

func TestCanAccessUnknownRoleDenied(t *testing.T) {
	svc := NewService(&stubPatientRepo{}, &stubUserRepo{})

	allowed, err := svc.CanAccess(context.Background(), uuid.New(), uuid.New(), model.Role("auditor"))
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCanAccessMissingPatientDenied(t *testing.T) {
	svc := NewService(&stubPatientRepo{patients: map[uuid.UUID]*model.Patient{}}, &stubUserRepo{})

	allowed, err := svc.CanAccess(context.Background(), uuid.New(), uuid.New(), model.RoleReceptionist)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestReceptionistAccessByStatus(t *testing.T) {
	tests := []struct {
		status model.PatientStatus
		want   bool
	}{
		{model.PatientStatusActive, true},
		{model.PatientStatusInactive, true},
		{model.PatientStatusTransferred, true},
		{model.PatientStatusArchived, false},
		{model.PatientStatusDeceased, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			patient := newTestPatient(tt.status, nil)
			repo := &stubPatientRepo{patients: map[uuid.UUID]*model.Patient{patient.ID: patient}}
			svc := NewService(repo, &stubUserRepo{})

			allowed, err := svc.CanAccess(context.Background(), patient.ID, uuid.New(), model.RoleReceptionist)
			require.NoError(t, err)
			assert.Equal(t, tt.want, allowed)
		})
	}
}

func TestNurseAccessRequiresSharedCareTeam(t *testing.T) {
	teamA := uuid.New()
	teamB := uuid.New()

	physician := newTestUser(&teamA)
	sameTeamNurse := newTestUser(&teamA)
	otherTeamNurse := newTestUser(&teamB)
	noTeamNurse := newTestUser(nil)

	patient := newTestPatient(model.PatientStatusActive, &physician.ID)

	users := &stubUserRepo{users: map[uuid.UUID]*model.User{
		physician.ID:      physician,
		sameTeamNurse.ID:  sameTeamNurse,
		otherTeamNurse.ID: otherTeamNurse,
		noTeamNurse.ID:    noTeamNurse,
	}}
	repo := &stubPatientRepo{patients: map[uuid.UUID]*model.Patient{patient.ID: patient}}
	svc := NewService(repo, users)

	allowed, err := svc.CanAccess(context.Background(), patient.ID, sameTeamNurse.ID, model.RoleNurse)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = svc.CanAccess(context.Background(), patient.ID, otherTeamNurse.ID, model.RoleNurse)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = svc.CanAccess(context.Background(), patient.ID, noTeamNurse.ID, model.RoleNurse)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestNurseDeniedWithoutAssignedPhysician(t *testing.T) {
	team := uuid.New()
	nurse := newTestUser(&team)
	patient := newTestPatient(model.PatientStatusActive, nil)

	repo := &stubPatientRepo{patients: map[uuid.UUID]*model.Patient{patient.ID: patient}}
	users := &stubUserRepo{users: map[uuid.UUID]*model.User{nurse.ID: nurse}}
	svc := NewService(repo, users)

	allowed, err := svc.CanAccess(context.Background(), patient.ID, nurse.ID, model.RoleNurse)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCanAccessCachesDecision(t *testing.T) {
	patient := newTestPatient(model.PatientStatusActive, nil)
	repo := &stubPatientRepo{patients: map[uuid.UUID]*model.Patient{patient.ID: patient}}
	svc := NewService(repo, &stubUserRepo{})
	actorID := uuid.New()

	for i := 0; i < 3; i++ {
		allowed, err := svc.CanAccess(context.Background(), patient.ID, actorID, model.RoleReceptionist)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	assert.Equal(t, 1, repo.getCalls)
}

func TestRegisterOverridesPolicy(t *testing.T) {
	patient := newTestPatient(model.PatientStatusActive, nil)
	repo := &stubPatientRepo{patients: map[uuid.UUID]*model.Patient{patient.ID: patient}}
	svc := NewService(repo, &stubUserRepo{})

	svc.Register(model.RoleReceptionist, denyAllPolicy{})

	allowed, err := svc.CanAccess(context.Background(), patient.ID, uuid.New(), model.RoleReceptionist)
	require.NoError(t, err)
	assert.False(t, allowed)
}

type denyAllPolicy struct{}

func (denyAllPolicy) Allows(ctx context.Context, patient *model.Patient, actorID uuid.UUID) (bool, error) {
	return false, nil
}

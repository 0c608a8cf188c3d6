package access

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/careloop/patient-api/internal/model"
	"github.com/careloop/patient-api/internal/repository"
	apperrors "github.com/careloop/patient-api/pkg/errors"
)

// RolePolicy decides whether an actor holding a given role may access a
// patient. Implementations must be side-effect-free.
type RolePolicy interface {
	Allows(ctx context.Context, patient *model.Patient, actorID uuid.UUID) (bool, error)
}

// Service evaluates per-patient access decisions. One policy per role;
// roles without a registered policy are denied.
type Service struct {
	patients repository.PatientRepository
	policies map[model.Role]RolePolicy
	cache    *cache.Cache
}

func NewService(patients repository.PatientRepository, users repository.UserRepository) *Service {
	return &Service{
		patients: patients,
		policies: map[model.Role]RolePolicy{
			model.RoleAdmin:        AllowAllPolicy{},
			model.RolePhysician:    AllowAllPolicy{},
			model.RoleNurse:        CareTeamPolicy{users: users},
			model.RoleReceptionist: ActivePatientPolicy{},
		},
		cache: cache.New(30*time.Second, time.Minute),
	}
}

// Register replaces the policy for a role.
func (s *Service) Register(role model.Role, policy RolePolicy) {
	s.policies[role] = policy
}

// CanAccess reports whether the actor may access the patient. A missing
// patient yields false, never an error; detecting true not-found is the
// caller's job.
func (s *Service) CanAccess(ctx context.Context, patientID, actorID uuid.UUID, role model.Role) (bool, error) {
	policy, ok := s.policies[role]
	if !ok {
		return false, nil
	}

	// Blanket policies need no patient lookup.
	if _, blanket := policy.(AllowAllPolicy); blanket {
		return true, nil
	}

	key := fmt.Sprintf("%s:%s:%s", patientID, actorID, role)
	if cached, found := s.cache.Get(key); found {
		return cached.(bool), nil
	}

	patient, err := s.patients.Get(ctx, patientID)
	if apperrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load patient for access check: %w", err)
	}

	allowed, err := policy.Allows(ctx, patient, actorID)
	if err != nil {
		return false, err
	}

	s.cache.Set(key, allowed, cache.DefaultExpiration)
	return allowed, nil
}

// AllowAllPolicy grants blanket visibility.
type AllowAllPolicy struct{}

func (AllowAllPolicy) Allows(ctx context.Context, patient *model.Patient, actorID uuid.UUID) (bool, error) {
	return true, nil
}

// CareTeamPolicy allows access when the actor shares a care team with the
// patient's assigned physician.
type CareTeamPolicy struct {
	users repository.UserRepository
}

func (p CareTeamPolicy) Allows(ctx context.Context, patient *model.Patient, actorID uuid.UUID) (bool, error) {
	if patient.AssignedPhysicianID == nil {
		return false, nil
	}

	actor, err := p.users.Get(ctx, actorID)
	if apperrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load actor: %w", err)
	}
	if actor.CareTeamID == nil {
		return false, nil
	}

	physician, err := p.users.Get(ctx, *patient.AssignedPhysicianID)
	if apperrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load assigned physician: %w", err)
	}
	if physician.CareTeamID == nil {
		return false, nil
	}

	return *actor.CareTeamID == *physician.CareTeamID, nil
}

// ActivePatientPolicy limits access to non-terminal patient records.
type ActivePatientPolicy struct{}

func (ActivePatientPolicy) Allows(ctx context.Context, patient *model.Patient, actorID uuid.UUID) (bool, error) {
	return !model.PatientStatus(patient.Status).Terminal(), nil
}

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/patient-api/internal/model"
	"github.com/careloop/patient-api/internal/repository"
)

// Service persists audit log entries.
type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

// Entry is the caller-facing shape of an audit record.
type Entry struct {
	ActorID      uuid.UUID
	ResourceType string
	Action       string
	Detail       string
	IPAddress    string
}

// Log writes one audit entry synchronously. For mutating actions the
// caller must not report success to the client until this returns nil.
func (s *Service) Log(ctx context.Context, entry Entry) error {
	log := &model.AuditLog{
		ID:           uuid.New(),
		ActorID:      entry.ActorID,
		ResourceType: entry.ResourceType,
		Action:       entry.Action,
		Detail:       entry.Detail,
		IPAddress:    entry.IPAddress,
		CreatedAt:    time.Now(),
	}

	if err := s.repo.Create(ctx, log); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Write persists an already-built audit record. Used by the dispatcher
// when replaying queued entries.
func (s *Service) Write(ctx context.Context, log *model.AuditLog) error {
	return s.repo.Create(ctx, log)
}

func (s *Service) ListWithPagination(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int64, error) {
	return s.repo.ListWithPagination(ctx, filters)
}

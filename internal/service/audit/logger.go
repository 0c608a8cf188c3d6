package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careloop/patient-api/internal/model"
	apperrors "github.com/careloop/patient-api/pkg/errors"
)

// Queue accepts audit records for asynchronous persistence. Implementations
// must not drop entries on transient failure.
type Queue interface {
	Enqueue(entry *model.AuditLog)
}

// Recorder is what handlers use to audit requests: synchronous for
// mutations, queued for reads.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	RecordRead(entry Entry)
}

// Logger routes audit entries: mutations go straight to the store and
// failures surface to the caller; reads are handed to the queue so the
// response is not blocked on the audit write.
type Logger struct {
	service *Service
	queue   Queue
}

func NewLogger(service *Service, queue Queue) *Logger {
	return &Logger{
		service: service,
		queue:   queue,
	}
}

// Record writes the entry on the caller's critical path.
func (l *Logger) Record(ctx context.Context, entry Entry) error {
	if err := l.service.Log(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("action", entry.Action).
			Str("resource_type", entry.ResourceType).
			Msg("audit write failed")
		return apperrors.NewLoggingFailure(err)
	}
	return nil
}

// RecordRead queues the entry for background persistence.
func (l *Logger) RecordRead(entry Entry) {
	l.queue.Enqueue(&model.AuditLog{
		ID:           uuid.New(),
		ActorID:      entry.ActorID,
		ResourceType: entry.ResourceType,
		Action:       entry.Action,
		Detail:       entry.Detail,
		IPAddress:    entry.IPAddress,
		CreatedAt:    time.Now(),
	})
}

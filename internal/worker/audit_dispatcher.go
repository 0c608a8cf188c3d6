package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/careloop/patient-api/internal/model"
	"github.com/careloop/patient-api/internal/service/audit"
)

const fallbackQueueKey = "audit:pending"

// AuditDispatcher drains read-path audit entries into the store. Entries
// that still fail after a retry are pushed onto a redis list so they are
// never silently dropped; the drain loop replays them once the store
// recovers.
type AuditDispatcher struct {
	service       *audit.Service
	rdb           *redis.Client
	entries       chan *model.AuditLog
	done          chan struct{}
	drainInterval time.Duration
	writeTimeout  time.Duration

	dispatched prometheus.Counter
	requeued   prometheus.Counter
	replayed   prometheus.Counter
}

type DispatcherConfig struct {
	QueueSize     int
	DrainInterval time.Duration
	WriteTimeout  time.Duration
	Registerer    prometheus.Registerer
}

func NewAuditDispatcher(service *audit.Service, rdb *redis.Client, cfg DispatcherConfig) *AuditDispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	metrics := promauto.With(cfg.Registerer)

	return &AuditDispatcher{
		service:       service,
		rdb:           rdb,
		entries:       make(chan *model.AuditLog, cfg.QueueSize),
		done:          make(chan struct{}),
		drainInterval: cfg.DrainInterval,
		writeTimeout:  cfg.WriteTimeout,
		dispatched: metrics.NewCounter(prometheus.CounterOpts{
			Name: "audit_dispatcher_entries_written_total",
			Help: "Audit entries written to the store by the dispatcher",
		}),
		requeued: metrics.NewCounter(prometheus.CounterOpts{
			Name: "audit_dispatcher_entries_requeued_total",
			Help: "Audit entries pushed to the redis fallback queue",
		}),
		replayed: metrics.NewCounter(prometheus.CounterOpts{
			Name: "audit_dispatcher_entries_replayed_total",
			Help: "Audit entries replayed from the redis fallback queue",
		}),
	}
}

// Enqueue hands an entry to the dispatcher without blocking the request.
// A full channel goes straight to the fallback queue.
func (d *AuditDispatcher) Enqueue(entry *model.AuditLog) {
	select {
	case d.entries <- entry:
	default:
		d.pushFallback(context.Background(), entry)
	}
}

// Start runs until ctx is cancelled. The shutdown flush runs before Done
// is signalled, so callers must wait on Done before exiting or buffered
// entries are lost.
func (d *AuditDispatcher) Start(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.flush()
			return
		case entry := <-d.entries:
			d.write(ctx, entry)
		case <-ticker.C:
			d.replayFallback(ctx)
		}
	}
}

// Done is closed once Start has returned, shutdown flush included.
func (d *AuditDispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *AuditDispatcher) write(ctx context.Context, entry *model.AuditLog) {
	err := d.writeOnce(ctx, entry)
	if err != nil {
		// One retry, with its own timeout so a deadline-exceeded first
		// attempt does not doom it, before the durable queue.
		err = d.writeOnce(ctx, entry)
	}
	if err != nil {
		log.Warn().Err(err).Str("action", entry.Action).Msg("audit write failed, requeueing")
		d.pushFallback(ctx, entry)
		return
	}
	d.dispatched.Inc()
}

func (d *AuditDispatcher) writeOnce(ctx context.Context, entry *model.AuditLog) error {
	wctx, cancel := context.WithTimeout(ctx, d.writeTimeout)
	defer cancel()
	return d.service.Write(wctx, entry)
}

func (d *AuditDispatcher) pushFallback(ctx context.Context, entry *model.AuditLog) {
	if d.rdb == nil {
		log.Error().Str("action", entry.Action).Str("actor_id", entry.ActorID.String()).
			Msg("audit entry lost: no fallback queue configured")
		return
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal audit entry for fallback queue")
		return
	}
	if err := d.rdb.LPush(ctx, fallbackQueueKey, payload).Err(); err != nil {
		log.Error().Err(err).Msg("failed to push audit entry to fallback queue")
		return
	}
	d.requeued.Inc()
}

func (d *AuditDispatcher) replayFallback(ctx context.Context) {
	if d.rdb == nil {
		return
	}

	for {
		payload, err := d.rdb.RPop(ctx, fallbackQueueKey).Bytes()
		if err == redis.Nil {
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("failed to pop from audit fallback queue")
			return
		}

		var entry model.AuditLog
		if err := json.Unmarshal(payload, &entry); err != nil {
			log.Error().Err(err).Msg("malformed entry in audit fallback queue")
			continue
		}

		if err := d.service.Write(ctx, &entry); err != nil {
			// Store still down; put it back and stop for this cycle.
			d.rdb.RPush(ctx, fallbackQueueKey, payload)
			return
		}
		d.replayed.Inc()
	}
}

// flush drains whatever is buffered at shutdown into the fallback queue.
func (d *AuditDispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	for {
		select {
		case entry := <-d.entries:
			if err := d.service.Write(ctx, entry); err != nil {
				d.pushFallback(ctx, entry)
			}
		default:
			return
		}
	}
}

package sessionguard

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	internalaudit "github.com/gloos/sessionguard/internal/audit"
	"github.com/gloos/sessionguard/internal/stores"
	"github.com/google/uuid"
)

// repoSink persists dispatched entries through the injected repository. A
// failed write goes to the local fallback writer instead of being discarded,
// and the degraded flag latches so operators can see sustained fallback use.
type repoSink struct {
	repo     AuditRepository
	fallback *internalaudit.JSONWriterSink
	metrics  *Metrics

	degraded       atomic.Bool
	fallbackWrites atomic.Uint64
}

func newRepoSink(repo AuditRepository, fallback io.Writer, metrics *Metrics) *repoSink {
	return &repoSink{
		repo:     repo,
		fallback: internalaudit.NewJSONWriterSink(fallback),
		metrics:  metrics,
	}
}

func (s *repoSink) Emit(ctx context.Context, entry internalaudit.Entry) {
	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.Insert(writeCtx, entry); err != nil {
		if s.degraded.CompareAndSwap(false, true) {
			// First engagement: open the fallback trail with a marker so the
			// cutover moment is itself on record.
			marker := internalaudit.Entry{
				ID:        uuid.NewString(),
				Timestamp: time.Now().UTC(),
				EventType: internalaudit.EventAuditFallbackEngaged,
				Result:    internalaudit.ResultError,
				Reason:    err.Error(),
			}
			internalaudit.Finalize(&marker)
			s.fallback.Emit(ctx, marker)
		}
		s.fallbackWrites.Add(1)
		s.metrics.Inc(MetricAuditFallback)
		s.fallback.Emit(ctx, entry)
	}
}

// teeSink fans each dispatched entry out to the repository sink and a
// caller-supplied sink.
type teeSink struct {
	primary internalaudit.Sink
	extra   internalaudit.Sink
}

func (s teeSink) Emit(ctx context.Context, entry internalaudit.Entry) {
	s.primary.Emit(ctx, entry)
	s.extra.Emit(ctx, entry)
}

func (s *repoSink) Degraded() bool {
	return s.degraded.Load()
}

// markDegraded latches the degraded flag for failures outside Emit, such as a
// failing retention sweep.
func (s *repoSink) markDegraded() {
	if s == nil {
		return
	}
	s.degraded.Store(true)
}

func (s *repoSink) FallbackWrites() uint64 {
	return s.fallbackWrites.Load()
}

// LogEvent records one security event on the append-only trail. Derived
// fields (risk level, confidence, requires-review) are computed here when the
// caller left them unset; core fields are immutable afterwards. Persistence
// is asynchronous and never fails the calling flow.
func (e *Engine) LogEvent(ctx context.Context, entry AuditEntry) {
	if e == nil || e.audit == nil {
		return
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.TenantID == "" {
		entry.TenantID = tenantIDFromContext(ctx)
	}
	if entry.IP == "" {
		entry.IP = clientIPFromContext(ctx)
	}
	if entry.Result == "" {
		entry.Result = ResultSuccess
	}

	internalaudit.Finalize(&entry)

	e.metricInc(MetricAuditEmitted)

	if e.alert != nil && entry.RiskLevel >= RiskHigh {
		e.metricInc(MetricAuditAlert)
		go e.alert(entry)
	}

	e.audit.Emit(ctx, entry)
}

// QueryLogs describes the querylogs operation and its observable behavior.
//
// QueryLogs may return an error when input validation, dependency calls, or security checks fail.
// QueryLogs does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) QueryLogs(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	if e == nil || e.auditRepo == nil {
		return nil, ErrEngineNotReady
	}

	if filter.Limit <= 0 {
		filter.Limit = e.config.Audit.QueryLimit
	}

	entries, err := e.auditRepo.Query(ctx, filter)
	if err != nil {
		return nil, mapAuditErr(err)
	}
	return entries, nil
}

// MarkAsReviewed closes out a flagged entry. Review fields are the only
// mutable part of an entry; repeated reviews are last-write-wins.
func (e *Engine) MarkAsReviewed(ctx context.Context, id, reviewer, notes string) (AuditEntry, error) {
	if e == nil || e.auditRepo == nil {
		return AuditEntry{}, ErrEngineNotReady
	}
	if reviewer == "" {
		return AuditEntry{}, ErrInvalidReviewer
	}

	entry, err := e.auditRepo.UpdateReview(ctx, id, reviewer, notes, time.Now().UTC())
	if err != nil {
		return AuditEntry{}, mapAuditErr(err)
	}

	e.metricInc(MetricAuditReviewed)

	e.LogEvent(ctx, AuditEntry{
		EventType:  internalaudit.EventAuditReviewed,
		ActorID:    reviewer,
		AffectedID: entry.ActorID,
		Result:     ResultSuccess,
		Metadata:   map[string]string{"entry_id": id},
	})

	return entry, nil
}

// AuditHealth describes the audithealth operation and its observable behavior.
//
// AuditHealth does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditHealth() AuditHealth {
	if e == nil || e.repoSink == nil {
		return AuditHealth{}
	}
	return AuditHealth{
		Degraded:       e.repoSink.Degraded(),
		Dropped:        e.AuditDropped(),
		FallbackWrites: e.repoSink.FallbackWrites(),
	}
}

func mapAuditErr(err error) error {
	switch {
	case errors.Is(err, stores.ErrAuditNotFound):
		return ErrAuditEntryNotFound
	case errors.Is(err, stores.ErrAuditUnavailable):
		return ErrAuditUnavailable
	default:
		return err
	}
}

package sessionguard

import (
	"context"
	"sync"
	"time"

	internalaudit "github.com/gloos/sessionguard/internal/audit"
	"github.com/gloos/sessionguard/internal/complexity"
	"github.com/gloos/sessionguard/internal/fingerprint"
	"github.com/gloos/sessionguard/internal/limiters"
	"github.com/gloos/sessionguard/internal/rate"
	"github.com/gloos/sessionguard/internal/reauth"
	"github.com/gloos/sessionguard/session"
)

// Engine defines a public type used by sessionguard APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config Config

	sessionStore *session.Store
	rateLimiter  *rate.Store
	resetLimiter *limiters.PasswordResetLimiter
	devices      *fingerprint.Registry
	analyzer     *complexity.Analyzer
	reauth       *reauth.Manager

	auditRepo AuditRepository
	audit     *internalaudit.Dispatcher
	repoSink  *repoSink
	alert     AlertFunc

	metrics *Metrics
	now     func() time.Time

	sweepDone chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once
}

// Close describes the close operation and its observable behavior.
//
// Close stops the background sweeper and drains the audit dispatcher. Safe to
// call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.sweepDone != nil {
			close(e.sweepDone)
			e.sweepWG.Wait()
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) startSweeper() {
	e.sweepDone = make(chan struct{})
	e.sweepWG.Add(1)

	go func() {
		defer e.sweepWG.Done()

		ticker := time.NewTicker(e.config.Sweep.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-e.sweepDone:
				return
			case now := <-ticker.C:
				e.sweep(now)
			}
		}
	}()
}

// sweep runs one purge pass. Each store snapshots or locks independently so
// the pass never blocks concurrent checks for its full duration.
func (e *Engine) sweep(now time.Time) {
	if e.rateLimiter != nil {
		e.rateLimiter.Sweep(now)
	}
	if e.resetLimiter != nil {
		e.resetLimiter.Sweep(now)
	}
	if e.analyzer != nil {
		e.analyzer.Sweep(now)
	}

	if e.auditRepo != nil && e.config.Audit.Retention > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		// Retention archives, never deletes: the trail is append-only.
		if _, err := e.auditRepo.ArchiveBefore(ctx, now.Add(-e.config.Audit.Retention)); err != nil {
			e.repoSink.markDegraded()
		}
	}
}

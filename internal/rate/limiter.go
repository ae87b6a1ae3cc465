package rate

import (
	"math"
	"sync"
	"time"
)

// Config holds rate limit tuning parameters for one identifier scope.
type Config struct {
	MaxAttempts     int
	CooldownWindow  time.Duration
	LockoutDuration time.Duration

	BaseDelay       time.Duration
	DelayMultiplier float64
	MaxDelay        time.Duration

	// CaptchaThreshold of zero disables the CAPTCHA signal.
	CaptchaThreshold int

	// SuspiciousThreshold of zero disables suspicious markers.
	SuspiciousThreshold int
	SuspiciousCooldown  time.Duration
}

// Decision is the outcome of a Check. A denial is a result value, not an
// error: WaitTime carries the mandatory wait and NeedsCaptcha the escalation
// signal.
type Decision struct {
	Allowed      bool
	WaitTime     time.Duration
	NeedsCaptcha bool
}

// record tracks failed attempts for one identifier. Attempts is fractional on
// purpose: probing penalties are recorded at half weight.
type record struct {
	attempts        float64
	lastAttempt     time.Time
	lockedUntil     time.Time
	progressiveDelay time.Duration
}

// Store enforces per-identifier limits with progressive delay and lockout.
// All methods are safe for concurrent use.
type Store struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	records map[string]*record
	markers map[string]time.Time
}

// New creates a Store using the wall clock.
func New(cfg Config) *Store {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock creates a Store with an injected clock. Tests drive time
// explicitly instead of sleeping.
func NewWithClock(cfg Config, now func() time.Time) *Store {
	if cfg.DelayMultiplier <= 0 {
		cfg.DelayMultiplier = 2
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		cfg:     cfg,
		now:     now,
		records: make(map[string]*record),
		markers: make(map[string]time.Time),
	}
}

// Check evaluates the identifier against the current record without consuming
// attempts. An expired record is discarded; a record at the attempt cap is
// locked out on the spot so a racing caller cannot slip through between the
// cap being reached and the next RecordFailure.
func (s *Store) Check(identifier string) Decision {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[identifier]
	if !ok {
		return Decision{Allowed: true}
	}

	if !r.lockedUntil.IsZero() && now.Before(r.lockedUntil) {
		return Decision{
			WaitTime:     r.lockedUntil.Sub(now),
			NeedsCaptcha: true,
		}
	}

	if r.progressiveDelay > 0 {
		if next := r.lastAttempt.Add(r.progressiveDelay); now.Before(next) {
			return Decision{
				WaitTime:     next.Sub(now),
				NeedsCaptcha: s.captchaReached(r.attempts),
			}
		}
	}

	if now.Sub(r.lastAttempt) > s.cfg.CooldownWindow {
		delete(s.records, identifier)
		return Decision{Allowed: true}
	}

	if s.cfg.MaxAttempts > 0 && r.attempts >= float64(s.cfg.MaxAttempts) {
		r.lockedUntil = now.Add(s.cfg.LockoutDuration)
		return Decision{
			WaitTime:     s.cfg.LockoutDuration,
			NeedsCaptcha: true,
		}
	}

	return Decision{
		Allowed:      true,
		NeedsCaptcha: s.captchaReached(r.attempts),
	}
}

// RecordFailure adds one full attempt.
func (s *Store) RecordFailure(identifier string) {
	s.RecordFailureWeight(identifier, 1)
}

// RecordFailureWeight adds a weighted attempt. The progressive delay grows as
// base·multiplier^(attempts−1), capped at MaxDelay; the exponent stays
// fractional so half-weight penalties do not round up to full ones.
func (s *Store) RecordFailureWeight(identifier string, weight float64) {
	if weight <= 0 {
		return
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[identifier]
	if !ok || now.Sub(r.lastAttempt) > s.cfg.CooldownWindow {
		r = &record{}
		s.records[identifier] = r
	}

	r.attempts += weight
	r.lastAttempt = now

	if s.cfg.BaseDelay > 0 && r.attempts >= 1 {
		delay := time.Duration(float64(s.cfg.BaseDelay) * math.Pow(s.cfg.DelayMultiplier, r.attempts-1))
		if s.cfg.MaxDelay > 0 && delay > s.cfg.MaxDelay {
			delay = s.cfg.MaxDelay
		}
		r.progressiveDelay = delay
	}

	if s.cfg.MaxAttempts > 0 && r.attempts >= float64(s.cfg.MaxAttempts) {
		r.lockedUntil = now.Add(s.cfg.LockoutDuration)
	}

	if s.cfg.SuspiciousThreshold > 0 && r.attempts >= float64(s.cfg.SuspiciousThreshold) {
		s.markers[identifier] = now.Add(s.cfg.SuspiciousCooldown)
	}
}

// RecordSuccess deletes the record entirely: a full reset with no partial
// credit for prior failures. Suspicious markers survive on purpose; they only
// age out or get cleared by an explicit Reset.
func (s *Store) RecordSuccess(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
}

// Reset clears both the record and any suspicious marker for the identifier.
func (s *Store) Reset(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	delete(s.markers, identifier)
}

// Attempts reports the current attempt count, zero for absent or stale
// records.
func (s *Store) Attempts(identifier string) float64 {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[identifier]
	if !ok {
		return 0
	}
	if r.lockedUntil.IsZero() && now.Sub(r.lastAttempt) > s.cfg.CooldownWindow {
		return 0
	}
	return r.attempts
}

// Suspicious reports whether the identifier carries a live marker and, if so,
// how long until it expires. Expiry is checked lazily; Sweep reclaims the
// entry later.
func (s *Store) Suspicious(identifier string) (bool, time.Duration) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.markers[identifier]
	if !ok || !now.Before(expiry) {
		return false, 0
	}
	return true, expiry.Sub(now)
}

// Sweep purges expired records and markers. Called from the engine's single
// background sweeper; lookups racing the sweep see lazy expiry semantics
// either way.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, r := range s.records {
		if !r.lockedUntil.IsZero() && now.Before(r.lockedUntil) {
			continue
		}
		if now.Sub(r.lastAttempt) > s.cfg.CooldownWindow {
			delete(s.records, id)
			removed++
		}
	}
	for id, expiry := range s.markers {
		if !now.Before(expiry) {
			delete(s.markers, id)
			removed++
		}
	}
	return removed
}

// Len reports live record and marker counts, for introspection and tests.
func (s *Store) Len() (records, markers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), len(s.markers)
}

func (s *Store) captchaReached(attempts float64) bool {
	return s.cfg.CaptchaThreshold > 0 && attempts >= float64(s.cfg.CaptchaThreshold)
}

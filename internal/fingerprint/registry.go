package fingerprint

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"
)

// Attributes are the client-observable device traits fed into the hash.
// Field order matters: the hash runs over the JSON serialization, and Go
// marshals struct fields in declaration order.
type Attributes struct {
	UserAgent        string `json:"userAgent"`
	ScreenResolution string `json:"screenResolution"`
	Timezone         string `json:"timezone"`
	Language         string `json:"language"`
	ColorDepth       int    `json:"colorDepth"`
	TouchSupport     bool   `json:"touchSupport"`
}

// Fingerprint pairs the attributes with their deterministic hash.
type Fingerprint struct {
	Attributes Attributes `json:"attributes"`
	Hash       string     `json:"hash"`
	FirstSeen  time.Time  `json:"first_seen"`
	LastSeen   time.Time  `json:"last_seen"`
}

// Hash computes the 32-bit rolling hash over the JSON-serialized attributes:
// accumulate h = (h<<5) − h + byte with int32 truncation, take the absolute
// value, hex-encode. Identical inputs always hash identically.
func Hash(a Attributes) string {
	data, err := json.Marshal(a)
	if err != nil {
		return ""
	}

	var h int32
	for _, c := range data {
		h = h<<5 - h + int32(c)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 16)
}

// New builds a Fingerprint for the attributes.
func New(a Attributes) Fingerprint {
	return Fingerprint{
		Attributes: a,
		Hash:       Hash(a),
	}
}

// Notifier receives new-device notifications. Invoked on its own goroutine;
// implementations never block detection.
type Notifier func(identifier string, fp Fingerprint)

// Registry tracks known devices keyed by (identifier, hash). Devices persist
// until explicitly removed.
type Registry struct {
	now      func() time.Time
	notifier Notifier

	mu      sync.RWMutex
	devices map[string]map[string]*Fingerprint
}

func NewRegistry(notifier Notifier) *Registry {
	return NewRegistryWithClock(notifier, time.Now)
}

func NewRegistryWithClock(notifier Notifier, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		now:      now,
		notifier: notifier,
		devices:  make(map[string]map[string]*Fingerprint),
	}
}

// CheckChange registers the observed device and reports whether it is new.
// A device is new only when the (identifier, hash) pair is unknown AND at
// least one other device already exists for the identifier: the very first
// device ever seen for an identifier is never flagged. New devices trigger
// the notifier without blocking the caller.
func (r *Registry) CheckChange(identifier string, a Attributes) (bool, Fingerprint) {
	fp := New(a)
	now := r.now()

	r.mu.Lock()
	known := r.devices[identifier]
	if existing, ok := known[fp.Hash]; ok {
		existing.LastSeen = now
		out := *existing
		r.mu.Unlock()
		return false, out
	}

	isNew := len(known) > 0

	fp.FirstSeen = now
	fp.LastSeen = now
	if known == nil {
		known = make(map[string]*Fingerprint)
		r.devices[identifier] = known
	}
	stored := fp
	known[fp.Hash] = &stored
	r.mu.Unlock()

	if isNew && r.notifier != nil {
		go r.notifier(identifier, fp)
	}

	return isNew, fp
}

// Known reports whether the exact (identifier, hash) pair has been seen.
func (r *Registry) Known(identifier, hash string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[identifier][hash]
	return ok
}

// Devices returns a snapshot of the identifier's registered devices.
func (r *Registry) Devices(identifier string) []Fingerprint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	known := r.devices[identifier]
	out := make([]Fingerprint, 0, len(known))
	for _, fp := range known {
		out = append(out, *fp)
	}
	return out
}

// DeviceCount returns the number of distinct devices for the identifier.
func (r *Registry) DeviceCount(identifier string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices[identifier])
}

// Remove forgets one device, or every device for the identifier when hash is
// empty.
func (r *Registry) Remove(identifier, hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hash == "" {
		delete(r.devices, identifier)
		return
	}
	known := r.devices[identifier]
	delete(known, hash)
	if len(known) == 0 {
		delete(r.devices, identifier)
	}
}

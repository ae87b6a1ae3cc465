package session

import "time"

// Session is the stored shape of one authenticated session. Timestamps are
// unix seconds to keep the Redis payload compact and comparison cheap.
type Session struct {
	SessionID       string `json:"sid"`
	UserID          string `json:"uid"`
	TenantID        string `json:"tid"`
	FingerprintHash string `json:"fph,omitempty"`
	IP              string `json:"ip,omitempty"`
	CreatedAt       int64  `json:"cat"`
	ExpiresAt       int64  `json:"eat"`
	LastReauthAt    int64  `json:"rat,omitempty"`
}

// Expired reports whether the session's absolute expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && s.ExpiresAt > 0 && now.Unix() > s.ExpiresAt
}

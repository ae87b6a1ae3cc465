package sessionguard

import (
	"errors"

	"github.com/gloos/sessionguard/session"
)

var (
	// ErrEngineNotReady is an exported constant or variable used by the security engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrSessionBackendUnavailable is an exported constant or variable used by the security engine.
	ErrSessionBackendUnavailable = errors.New("session backend unavailable")
	// ErrSessionNotFound is an exported constant or variable used by the security engine.
	ErrSessionNotFound = session.ErrSessionNotFound
	// ErrAuditUnavailable is an exported constant or variable used by the security engine.
	ErrAuditUnavailable = errors.New("audit backend unavailable")
	// ErrAuditEntryNotFound is an exported constant or variable used by the security engine.
	ErrAuditEntryNotFound = errors.New("audit entry not found")
	// ErrAuditDisabled is an exported constant or variable used by the security engine.
	ErrAuditDisabled = errors.New("audit trail disabled")
	// ErrReauthDisabled is an exported constant or variable used by the security engine.
	ErrReauthDisabled = errors.New("reauthentication proofs disabled")
	// ErrReauthProofInvalid is an exported constant or variable used by the security engine.
	ErrReauthProofInvalid = errors.New("reauthentication proof invalid")
	// ErrInvalidReviewer is an exported constant or variable used by the security engine.
	ErrInvalidReviewer = errors.New("reviewer identifier required")
)

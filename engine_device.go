package sessionguard

import (
	"context"

	internalaudit "github.com/gloos/sessionguard/internal/audit"
	"github.com/gloos/sessionguard/internal/fingerprint"
)

// ComputeDeviceFingerprint builds the fingerprint for the device attributes
// carried by ctx. The hash is deterministic: identical attributes always
// produce the identical hash, so it can be stored and compared server-side.
func (e *Engine) ComputeDeviceFingerprint(ctx context.Context) DeviceFingerprint {
	return fingerprint.New(deviceAttributes(ctx))
}

// CheckDeviceChange registers the ctx device for the identifier and reports
// whether it is a new device. The first device ever seen for an identifier
// is never new. A new device is audited and, when a notifier is configured,
// reported without blocking the caller.
func (e *Engine) CheckDeviceChange(ctx context.Context, identifier string) (bool, DeviceFingerprint) {
	if e == nil || e.devices == nil {
		return false, DeviceFingerprint{}
	}

	isNew, fp := e.devices.CheckChange(scopedKey(ctx, identifier), deviceAttributes(ctx))

	if isNew {
		e.metricInc(MetricDeviceNew)
		e.LogEvent(ctx, AuditEntry{
			EventType:         internalaudit.EventDeviceChange,
			ActorID:           identifier,
			Result:            ResultSuccess,
			DeviceFingerprint: fp.Hash,
			Metadata:          map[string]string{"user_agent": fp.Attributes.UserAgent},
		})
	} else {
		e.metricInc(MetricDeviceKnown)
	}

	return isNew, fp
}

// KnownDevices returns a snapshot of every device registered for the
// identifier.
func (e *Engine) KnownDevices(ctx context.Context, identifier string) []DeviceFingerprint {
	if e == nil || e.devices == nil {
		return nil
	}
	return e.devices.Devices(scopedKey(ctx, identifier))
}

// RemoveDevice forgets one registered device. The next sighting of the same
// attributes counts as a new device again.
func (e *Engine) RemoveDevice(ctx context.Context, identifier, hash string) {
	if e == nil || e.devices == nil {
		return
	}
	e.devices.Remove(scopedKey(ctx, identifier), hash)
}

func deviceAttributes(ctx context.Context) DeviceAttributes {
	attrs, _ := deviceAttributesFromContext(ctx)
	if attrs.UserAgent == "" {
		attrs.UserAgent = userAgentFromContext(ctx)
	}
	return attrs
}

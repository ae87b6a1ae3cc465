package sessionguard

import "context"

type clientIPContextKey struct{}
type tenantIDContextKey struct{}
type userAgentContextKey struct{}
type deviceAttributesContextKey struct{}

// WithClientIP attaches the caller’s IP address to ctx. The Engine uses it
// for per-IP rate limiting, audit logging, and complexity tracking.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithTenantID attaches a tenant identifier to ctx for multi-tenant
// isolation. When absent, the default tenant "0" is used.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDContextKey{}, tenantID)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Used as a
// fingerprint attribute and recorded in reset-limiter metadata.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithDeviceAttributes attaches the client-reported device attributes to
// ctx. ComputeDeviceFingerprint and CheckDeviceChange read them from here;
// a UserAgent set via WithUserAgent fills the attribute when left empty.
func WithDeviceAttributes(ctx context.Context, attrs DeviceAttributes) context.Context {
	return context.WithValue(ctx, deviceAttributesContextKey{}, attrs)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

func tenantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return "0"
	}

	tenantID, _ := ctx.Value(tenantIDContextKey{}).(string)
	if tenantID == "" {
		return "0"
	}

	return tenantID
}

func deviceAttributesFromContext(ctx context.Context) (DeviceAttributes, bool) {
	if ctx == nil {
		return DeviceAttributes{}, false
	}

	attrs, ok := ctx.Value(deviceAttributesContextKey{}).(DeviceAttributes)
	return attrs, ok
}

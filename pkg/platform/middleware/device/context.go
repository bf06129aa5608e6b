package device

import "context"

type ctxKey int

const (
	keyDeviceID ctxKey = iota
	keyFingerprint
)

// GetDeviceID returns the stable per-browser device id minted by Middleware.
func GetDeviceID(ctx context.Context) string {
	id, _ := ctx.Value(keyDeviceID).(string)
	return id
}

// GetDeviceFingerprint returns the fingerprint computed from the User-Agent.
func GetDeviceFingerprint(ctx context.Context) string {
	fp, _ := ctx.Value(keyFingerprint).(string)
	return fp
}

// WithDevice injects both device values, for tests that skip the middleware.
func WithDevice(ctx context.Context, deviceID, fingerprint string) context.Context {
	ctx = context.WithValue(ctx, keyDeviceID, deviceID)
	return context.WithValue(ctx, keyFingerprint, fingerprint)
}

// Package device identifies the client device behind a request: a stable
// cookie-based device id plus a User-Agent derived fingerprint. Services use
// the fingerprint in logs when investigating suspicious link activity.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
)

const deviceCookieName = "jid_device"

// Middleware ensures every request carries a device id cookie and computes
// a device fingerprint from the User-Agent.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := ""
		if cookie, err := r.Cookie(deviceCookieName); err == nil {
			deviceID = cookie.Value
		}
		if deviceID == "" {
			deviceID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     deviceCookieName,
				Value:    deviceID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Expires:  time.Now().Add(365 * 24 * time.Hour),
			})
		}

		ctx := WithDevice(r.Context(), deviceID, Fingerprint(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Fingerprint hashes the browser, OS and platform parsed from a User-Agent.
// Version churn within a browser family changes the hash; that is acceptable
// since the fingerprint only supplements the device cookie.
func Fingerprint(rawUA string) string {
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	composite := fmt.Sprintf("%s/%s|%s|%s", name, version, ua.OS(), ua.Platform())
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:8])
}

// DisplayName renders a human-readable device description for history views.
func DisplayName(rawUA string) string {
	ua := useragent.New(rawUA)
	name, _ := ua.Browser()
	if name == "" {
		return "Unknown device"
	}
	if os := ua.OS(); os != "" {
		return name + " on " + os
	}
	return name
}

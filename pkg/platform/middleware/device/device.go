// Package device derives a human-readable device label from the User-Agent header.
package device

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyDeviceName struct{}

// Middleware stores the parsed device label in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := DisplayName(r.Header.Get("User-Agent"))
		ctx := WithDeviceName(r.Context(), name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DisplayName returns e.g. "Chrome on Windows 10", "Mobile Safari on iPhone".
// Empty input yields "".
func DisplayName(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "Bot"
	}

	browser, _ := ua.Browser()
	osInfo := ua.OSInfo()
	os := osInfo.Name
	if osInfo.Version != "" {
		os += " " + osInfo.Version
	}
	if ua.Mobile() && ua.Platform() != "" && ua.Platform() != osInfo.Name {
		os = ua.Platform()
	}

	switch {
	case browser != "" && strings.TrimSpace(os) != "":
		return browser + " on " + strings.TrimSpace(os)
	case browser != "":
		return browser
	default:
		return "Unknown device"
	}
}

// GetDeviceName retrieves the device label from the context.
func GetDeviceName(ctx context.Context) string {
	if name, ok := ctx.Value(contextKeyDeviceName{}).(string); ok {
		return name
	}
	return ""
}

// WithDeviceName injects a device label into a context.
// Useful for handler tests that don't run the full middleware chain.
func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, contextKeyDeviceName{}, name)
}

package middleware

import (
	"fmt"
	"net/http"
	"strings"
)

const permissionsPolicy = "accelerometer=(), camera=(), geolocation=(), " +
	"gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()"

// SecureHeaders sets browser security headers on every non-WebSocket
// response. The defaults assume the self-contained dashboard page:
// same-origin assets plus a WebSocket back to this server.
type SecureHeaders struct {
	// CSP overrides the built-in policy when set.
	CSP string

	// HSTSMaxAge is emitted only on TLS requests; zero disables HSTS.
	HSTSMaxAge int

	// DevMode loosens the CSP so local tooling (live reload, eval'd
	// source maps) can reach the page.
	DevMode bool
}

// DefaultSecureHeaders returns the production policy.
func DefaultSecureHeaders() *SecureHeaders {
	return &SecureHeaders{
		HSTSMaxAge: 63072000, // 2 years
	}
}

// Handler returns the middleware.
func (sh *SecureHeaders) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Upgrade responses must not carry page headers.
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", permissionsPolicy)
		h.Set("Content-Security-Policy", sh.csp())

		if sh.HSTSMaxAge > 0 && r.TLS != nil {
			h.Set("Strict-Transport-Security",
				fmt.Sprintf("max-age=%d; includeSubDomains", sh.HSTSMaxAge))
		}

		next.ServeHTTP(w, r)
	})
}

// csp builds the Content-Security-Policy. The dashboard page loads one
// stylesheet and one script, both served by this process, so nothing
// needs 'unsafe-inline'.
func (sh *SecureHeaders) csp() string {
	if sh.CSP != "" {
		return sh.CSP
	}

	if sh.DevMode {
		return strings.Join([]string{
			"default-src 'self'",
			"script-src 'self' 'unsafe-inline' 'unsafe-eval'",
			"style-src 'self' 'unsafe-inline'",
			"img-src 'self' data: blob:",
			"connect-src 'self' ws: wss:",
		}, "; ")
	}

	return strings.Join([]string{
		"default-src 'self'",
		"script-src 'self'",
		"style-src 'self'",
		"img-src 'self' data:",
		"connect-src 'self' ws: wss:",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}, "; ")
}

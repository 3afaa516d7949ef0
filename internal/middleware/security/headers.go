package security

import (
	"net/http"
	"strconv"
)

// HeadersConfig lists the response headers of the JSON API. Empty values
// are not sent.
type HeadersConfig struct {
	CSP                 string
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	CrossOriginResource string
	CacheControl        string

	// HSTSMaxAge in seconds; the header is only sent on TLS connections.
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

// DefaultHeadersConfig returns defaults for a JSON API that is never framed
// or rendered as a document.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		CrossOriginResource:   "same-origin",
		CacheControl:          "no-store",
		HSTSMaxAge:            365 * 24 * 60 * 60,
		HSTSIncludeSubdomains: true,
	}
}

type header struct{ name, value string }

// HeadersMiddleware applies security headers to responses
type HeadersMiddleware struct {
	static []header
	hsts   string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{}
	for _, hd := range []header{
		{"X-Content-Type-Options", config.XContentTypeOptions},
		{"X-Frame-Options", config.XFrameOptions},
		{"Content-Security-Policy", config.CSP},
		{"Referrer-Policy", config.ReferrerPolicy},
		{"Cross-Origin-Resource-Policy", config.CrossOriginResource},
		{"Cache-Control", config.CacheControl},
	} {
		if hd.value != "" {
			h.static = append(h.static, hd)
		}
	}
	if config.HSTSMaxAge > 0 {
		h.hsts = "max-age=" + strconv.Itoa(config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			h.hsts += "; includeSubDomains"
		}
	}
	return h
}

// Middleware returns the HTTP middleware function
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for _, hd := range h.static {
			headers.Set(hd.name, hd.value)
		}
		if r.TLS != nil && h.hsts != "" {
			headers.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

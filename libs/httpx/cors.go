package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy configures the headers emitted for browser callers of the poll API.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// WithCORS is a no-op when no origins are configured. Preflight requests from
// an allowed origin are answered with 204 and never reach the handler.
func WithCORS(p CORSPolicy) Middleware {
	origins := trimAll(p.AllowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	static := http.Header{}
	if p.AllowCredentials {
		static.Set("Access-Control-Allow-Credentials", "true")
	}
	if m := trimAll(p.AllowedMethods); len(m) > 0 {
		static.Set("Access-Control-Allow-Methods", strings.Join(m, ", "))
	}
	if h := trimAll(p.AllowedHeaders); len(h) > 0 {
		static.Set("Access-Control-Allow-Headers", strings.Join(h, ", "))
	}
	if secs := int(p.MaxAge.Seconds()); secs > 0 {
		static.Set("Access-Control-Max-Age", strconv.Itoa(secs))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allow, ok := allowOrigin(origin, origins, p.AllowCredentials)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			for k, v := range static {
				h[k] = v
			}
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allowOrigin(origin string, allowed []string, credentials bool) (string, bool) {
	if origin == "" {
		return "", false
	}
	for _, a := range allowed {
		switch {
		case a == "*" && credentials:
			return origin, true
		case a == "*":
			return "*", true
		case strings.EqualFold(a, origin):
			return origin, true
		}
	}
	return "", false
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

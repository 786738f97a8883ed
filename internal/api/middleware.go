package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Fixed buckets for state-mutating and discovery routes; the general
// limit comes from configuration.
const (
	mutatingPerWindow = 10
	discoveryPerHour  = 5
)

// errorBody is the uniform failure shape on the boundary.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: kind, Message: message})
}

// statusRecorder captures the response code for the request counter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// countRequests feeds the per-route counter when metrics are wired.
func (s *Server) countRequests(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}
	})
}

// limit rejects requests beyond the bucket with 429 and a Retry-After.
func (s *Server) limit(l *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow() {
			res := l.Reserve()
			delay := res.Delay()
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(delay/time.Second)+1))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireKey enforces the API key on state-mutating routes. A deployment
// without a configured key leaves mutations open, matching a development
// setup.
func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			got := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// mutating stacks the key check and the tighter mutation bucket on top of
// the general limiter.
func (s *Server) mutating(route string, h http.HandlerFunc) http.Handler {
	return s.countRequests(route, s.limit(s.generalLimit, s.limit(s.mutatingLimit, s.requireKey(h))))
}

// readonly stacks only the general limiter.
func (s *Server) readonly(route string, h http.HandlerFunc) http.Handler {
	return s.countRequests(route, s.limit(s.generalLimit, h))
}

package httpapi

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"lmdPortal/internal/apperr"
	"lmdPortal/internal/auth"
	"lmdPortal/internal/service"
	"lmdPortal/models"
)

const (
	healthPath     = "/api/health"
	apiHistoryPath = "/api/admin/api-history"
)

// authenticate requires a valid Bearer token on every route except health.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthPath {
			next.ServeHTTP(w, r)
			return
		}
		p, err := auth.ParseBearer(r.Header.Get("Authorization"), s.secret)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// requireRole wraps h so only principals carrying one of roles reach it.
func (s *Server) requireRole(h apiFunc, roles ...string) apiFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		p, ok := auth.FromContext(r.Context())
		if !ok {
			return apperr.New(apperr.CodeUnauthenticated, "unauthorized")
		}
		if !p.HasRole(roles...) {
			return apperr.Forbidden("this action requires role %s", strings.Join(roles, " or "))
		}
		return h(w, r)
	}
}

// actor returns the identity of the authenticated caller.
func (s *Server) actor(r *http.Request) auth.Actor {
	p, _ := auth.FromContext(r.Context())
	return p.Actor(s.clientIP(r))
}

// clientIP is the peer address. X-Forwarded-For is honoured only when the
// server runs behind a trusted proxy, which sets its first hop.
func (s *Server) clientIP(r *http.Request) string {
	if s.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// captureWriter records the status and a bounded copy of the body.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
	limit  int
}

func (c *captureWriter) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	if room := c.limit - c.body.Len(); room > 0 {
		if len(b) > room {
			c.body.Write(b[:room])
		} else {
			c.body.Write(b)
		}
	}
	return c.ResponseWriter.Write(b)
}

func (c *captureWriter) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

// recordHistory stores a snapshot of every /api request except health checks
// and reads of the history itself.
func (s *Server) recordHistory(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == healthPath || (r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, apiHistoryPath)) {
			next.ServeHTTP(w, r)
			return
		}
		var payload []byte
		if r.Body != nil && r.Body != http.NoBody {
			b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			_ = r.Body.Close()
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable request body"})
				return
			}
			payload = b
			r.Body = io.NopCloser(bytes.NewReader(b))
		}

		start := time.Now()
		cw := &captureWriter{ResponseWriter: w, limit: service.MaxSnapshotBytes}
		next.ServeHTTP(cw, r)

		var actorID string
		if p, err := auth.ParseBearer(r.Header.Get("Authorization"), s.secret); err == nil {
			actorID = p.ID
		}
		entry := &models.APIHistoryEntry{
			Method:     r.Method,
			Endpoint:   r.URL.Path,
			Query:      r.URL.RawQuery,
			StatusCode: cw.statusCode(),
			DurationMs: time.Since(start).Milliseconds(),
			ActorID:    actorID,
			Payload:    string(payload),
			Response:   cw.body.String(),
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 3*time.Second)
		defer cancel()
		if err := s.svc.Audit.RecordAPICall(ctx, entry); err != nil {
			s.log.Warn("record api call failed", zap.String("path", r.URL.Path), zap.Error(err))
		}
	})
}

// recoverPanics turns a handler panic into a 500.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.log.Error("handler panic", zap.String("path", r.URL.Path), zap.Any("panic", v), zap.Stack("stack"))
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

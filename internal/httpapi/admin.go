package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"lmdPortal/internal/service"
	"lmdPortal/models"
	"lmdPortal/repository"
)

func (s *Server) listAuditLogs(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	q := r.URL.Query()
	out, err := s.svc.Audit.ListAuditLogs(r.Context(), repository.ListAuditParams{
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		ActorID:    q.Get("userId"),
		Action:     q.Get("action"),
		Limit:      limit,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
	return nil
}

func (s *Server) recordClientAudit(w http.ResponseWriter, r *http.Request) error {
	var in service.ClientAuditInput
	if err := decode(r, &in); err != nil {
		return err
	}
	entry, err := s.svc.Audit.RecordClientAudit(r.Context(), s.actor(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, entry)
	return nil
}

func (s *Server) listAPIHistory(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	q := r.URL.Query()
	out, err := s.svc.Audit.ListAPIHistory(r.Context(), repository.ListAPIHistoryParams{
		Method:   q.Get("method"),
		Endpoint: q.Get("endpoint"),
		ActorID:  q.Get("userId"),
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
	return nil
}

// replayWriter buffers a replayed response in memory.
type replayWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (w *replayWriter) Header() http.Header { return w.header }

func (w *replayWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *replayWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

type retriggerResponse struct {
	Entry      *models.APIHistoryEntry `json:"entry"`
	StatusCode int                     `json:"statusCode"`
	Response   json.RawMessage         `json:"response,omitempty"`
}

// retrigger re-executes a recorded GET request as the calling admin and
// records the outcome as a new history entry.
func (s *Server) retrigger(w http.ResponseWriter, r *http.Request) error {
	a := s.actor(r)
	original, err := s.svc.Audit.ReplayableEntry(r.Context(), a, r.PathValue("id"))
	if err != nil {
		return err
	}

	target := original.Endpoint
	if original.Query != "" {
		target += "?" + original.Query
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", r.Header.Get("Authorization"))
	req.RemoteAddr = r.RemoteAddr

	start := time.Now()
	rw := &replayWriter{header: http.Header{}}
	s.api.ServeHTTP(rw, req)
	if rw.status == 0 {
		rw.status = http.StatusOK
	}

	replay := &models.APIHistoryEntry{
		Method:     http.MethodGet,
		Endpoint:   original.Endpoint,
		Query:      original.Query,
		StatusCode: rw.status,
		DurationMs: time.Since(start).Milliseconds(),
		Response:   rw.body.String(),
	}
	if err := s.svc.Audit.RecordReplay(r.Context(), a, original, replay); err != nil {
		return err
	}

	out := retriggerResponse{Entry: replay, StatusCode: rw.status}
	if body := bytes.TrimSpace(rw.body.Bytes()); json.Valid(body) {
		out.Response = body
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

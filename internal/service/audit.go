package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"lmdPortal/internal/apperr"
	"lmdPortal/internal/auth"
	"lmdPortal/models"
	"lmdPortal/repository"
)

// MaxSnapshotBytes bounds the payload and response stored per API history entry.
const MaxSnapshotBytes = 4 << 10

// AuditService reads the audit log and records API history.
type AuditService struct {
	base
}

func auditEntry(ctx context.Context, tx *repository.Store, at time.Time, a auth.Actor, action, entityType, entityID, details string) error {
	return tx.Audit.Create(ctx, &models.AuditLog{
		ActorID:    a.ID,
		ActorName:  a.DisplayName(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		IPAddress:  a.IP,
		Timestamp:  at,
	})
}

// ListAuditLogs returns audit entries newest first, at most 100.
func (s *AuditService) ListAuditLogs(ctx context.Context, p repository.ListAuditParams) ([]models.AuditLog, error) {
	out, err := s.store.Audit.List(ctx, p)
	if err != nil {
		return nil, storageErr("list audit logs", err)
	}
	return out, nil
}

// ClientAuditInput is an audit entry reported by a client for an action
// that happened outside the API (exports, label prints).
type ClientAuditInput struct {
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Details    json.RawMessage `json:"details"`
}

// RecordClientAudit appends one client-reported audit entry.
func (s *AuditService) RecordClientAudit(ctx context.Context, a auth.Actor, in ClientAuditInput) (*models.AuditLog, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	action := strings.ToUpper(strings.TrimSpace(in.Action))
	entityType := strings.ToUpper(strings.TrimSpace(in.EntityType))
	if action == "" || entityType == "" {
		return nil, apperr.Validation("action and entityType are required")
	}
	details := strings.TrimSpace(string(in.Details))
	if details != "" && !json.Valid(in.Details) {
		return nil, apperr.Validation("details must be valid JSON")
	}
	log := &models.AuditLog{
		ActorID:    a.ID,
		ActorName:  a.DisplayName(),
		Action:     action,
		EntityType: entityType,
		EntityID:   strings.TrimSpace(in.EntityID),
		Details:    details,
		IPAddress:  a.IP,
		Timestamp:  s.now(),
	}
	if err := s.store.Audit.Create(ctx, log); err != nil {
		return nil, storageErr("record audit log", err)
	}
	return log, nil
}

// RecordAPICall appends one API history entry, truncating the payload and
// response snapshots.
func (s *AuditService) RecordAPICall(ctx context.Context, e *models.APIHistoryEntry) error {
	if e == nil {
		return apperr.Validation("api history entry is required")
	}
	e.Payload = truncate(e.Payload, MaxSnapshotBytes)
	e.Response = truncate(e.Response, MaxSnapshotBytes)
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	if err := s.store.APIHistory.Create(ctx, e); err != nil {
		return storageErr("record api call", err)
	}
	return nil
}

// ListAPIHistory returns recorded requests newest first, at most 100.
func (s *AuditService) ListAPIHistory(ctx context.Context, p repository.ListAPIHistoryParams) ([]models.APIHistoryEntry, error) {
	out, err := s.store.APIHistory.List(ctx, p)
	if err != nil {
		return nil, storageErr("list api history", err)
	}
	return out, nil
}

// ReplayableEntry resolves a history entry for re-execution. Only GET
// requests may be replayed.
func (s *AuditService) ReplayableEntry(ctx context.Context, a auth.Actor, id string) (*models.APIHistoryEntry, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	e, err := s.store.APIHistory.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("get api history entry", err)
	}
	if e == nil {
		return nil, apperr.NotFound("api history entry %s not found", id)
	}
	if !strings.EqualFold(e.Method, "GET") {
		return nil, apperr.Conflict("only GET requests can be retriggered, entry %s is %s", id, e.Method)
	}
	return e, nil
}

// RecordReplay stores the outcome of a retriggered request together with
// its audit entry.
func (s *AuditService) RecordReplay(ctx context.Context, a auth.Actor, original *models.APIHistoryEntry, replay *models.APIHistoryEntry) error {
	if err := requireActor(a); err != nil {
		return err
	}
	if original == nil || replay == nil {
		return apperr.Validation("original and replay entries are required")
	}
	replay.ReplayOf = &original.ID
	replay.ActorID = a.ID
	replay.Payload = truncate(replay.Payload, MaxSnapshotBytes)
	replay.Response = truncate(replay.Response, MaxSnapshotBytes)
	if replay.Timestamp.IsZero() {
		replay.Timestamp = s.now()
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.APIHistory.Create(ctx, replay); err != nil {
			return err
		}
		details := fmt.Sprintf("Retriggered %s %s (status %d)", original.Method, original.Endpoint, replay.StatusCode)
		return s.record(ctx, tx, a, models.ActionRetriggerAPIRequest, models.EntityAPIHistory, original.ID, details)
	})
	if err != nil {
		return storageErr("record replay", err)
	}
	s.log.Info("api request retriggered",
		zap.String("entryId", original.ID),
		zap.String("endpoint", original.Endpoint),
		zap.Int("status", replay.StatusCode))
	return nil
}

// PruneAPIHistory deletes history entries older than retention. Audit logs
// are never pruned.
func (s *AuditService) PruneAPIHistory(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, apperr.Validation("retention must be positive")
	}
	n, err := s.store.APIHistory.DeleteOlderThan(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, storageErr("prune api history", err)
	}
	return n, nil
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"lmdPortal/internal/apperr"
	"lmdPortal/internal/auth"
	"lmdPortal/models"
	"lmdPortal/repository"
)

func TestRecordClientAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Audit.RecordClientAudit(ctx, f.actor, ClientAuditInput{EntityType: "SHIPMENT"})
	wantCode(t, err, apperr.CodeValidation)
	_, err = f.svc.Audit.RecordClientAudit(ctx, f.actor, ClientAuditInput{Action: "x", EntityType: "y", Details: json.RawMessage(`{bad`)})
	wantCode(t, err, apperr.CodeValidation)
	_, err = f.svc.Audit.RecordClientAudit(ctx, auth.Actor{}, ClientAuditInput{Action: "x", EntityType: "y"})
	wantCode(t, err, apperr.CodeForbidden)

	log, err := f.svc.Audit.RecordClientAudit(ctx, f.actor, ClientAuditInput{
		Action:     "export_shipments",
		EntityType: "shipment",
		EntityID:   "bulk",
		Details:    json.RawMessage(`{"format":"csv","rows":12}`),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if log.Action != "EXPORT_SHIPMENTS" || log.EntityType != "SHIPMENT" || !strings.Contains(log.Details, `"rows":12`) {
		t.Fatalf("log = %+v", log)
	}
	list, err := f.svc.Audit.ListAuditLogs(ctx, repository.ListAuditParams{Action: "EXPORT_SHIPMENTS"})
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %d %v", len(list), err)
	}
}

func TestRecordAPICallTruncates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	big := strings.Repeat("é", MaxSnapshotBytes) // two bytes per rune
	e := &models.APIHistoryEntry{Method: "POST", Endpoint: "/api/shipments", StatusCode: 200, Payload: big, Response: "ok"}
	if err := f.svc.Audit.RecordAPICall(ctx, e); err != nil {
		t.Fatalf("record: %v", err)
	}
	stored, _ := f.store.APIHistory.GetByID(ctx, e.ID)
	if len(stored.Payload) > MaxSnapshotBytes || !strings.HasPrefix(big, stored.Payload) {
		t.Fatalf("payload len = %d", len(stored.Payload))
	}
	if stored.Response != "ok" || stored.Timestamp.IsZero() {
		t.Fatalf("entry = %+v", stored)
	}
}

func TestRetriggerOnlyReadRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	get := &models.APIHistoryEntry{Method: "GET", Endpoint: "/api/shipments", Query: "page=2", StatusCode: 200}
	post := &models.APIHistoryEntry{Method: "POST", Endpoint: "/api/manifests", StatusCode: 200}
	for _, e := range []*models.APIHistoryEntry{get, post} {
		if err := f.svc.Audit.RecordAPICall(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	_, err := f.svc.Audit.ReplayableEntry(ctx, f.actor, post.ID)
	wantCode(t, err, apperr.CodeConflict)
	_, err = f.svc.Audit.ReplayableEntry(ctx, f.actor, "missing")
	wantCode(t, err, apperr.CodeNotFound)

	orig, err := f.svc.Audit.ReplayableEntry(ctx, f.actor, get.ID)
	if err != nil {
		t.Fatalf("replayable: %v", err)
	}
	replay := &models.APIHistoryEntry{Method: orig.Method, Endpoint: orig.Endpoint, Query: orig.Query, StatusCode: 200, Response: "{}"}
	if err := f.svc.Audit.RecordReplay(ctx, f.actor, orig, replay); err != nil {
		t.Fatalf("record replay: %v", err)
	}
	stored, _ := f.store.APIHistory.GetByID(ctx, replay.ID)
	if stored.ReplayOf == nil || *stored.ReplayOf != get.ID || stored.ActorID != f.actor.ID {
		t.Fatalf("replay entry = %+v", stored)
	}
	logs, _ := f.svc.Audit.ListAuditLogs(ctx, repository.ListAuditParams{EntityType: models.EntityAPIHistory, EntityID: get.ID})
	if len(logs) != 1 || logs[0].Action != models.ActionRetriggerAPIRequest {
		t.Fatalf("audit = %+v", logs)
	}
}

func TestPruneAPIHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := New(Deps{Store: f.store, Log: zaptest.NewLogger(t), Now: func() time.Time { return now }})

	for _, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, time.Hour} {
		e := &models.APIHistoryEntry{Method: "GET", Endpoint: "/api/health", StatusCode: 200, Timestamp: now.Add(-age)}
		if err := svc.Audit.RecordAPICall(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if _, err := svc.Audit.PruneAPIHistory(ctx, 0); apperr.CodeOf(err) != apperr.CodeValidation {
		t.Fatalf("zero retention: %v", err)
	}
	n, err := svc.Audit.PruneAPIHistory(ctx, 30*24*time.Hour)
	if err != nil || n != 2 {
		t.Fatalf("prune: %d %v", n, err)
	}
	left, _ := svc.Audit.ListAPIHistory(ctx, repository.ListAPIHistoryParams{})
	if len(left) != 1 {
		t.Fatalf("remaining = %d", len(left))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 2); got != "h" {
		t.Fatalf("truncate split a rune: %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Fatalf("short input changed: %q", got)
	}
}

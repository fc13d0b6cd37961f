package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"lmdPortal/internal/auth"
	"lmdPortal/internal/events"
	"lmdPortal/internal/service"
	"lmdPortal/internal/testutil"
	"lmdPortal/models"
	"lmdPortal/repository"
)

const testSecret = "test-secret"

type harness struct {
	srv   *Server
	store *repository.Store
	ops   string
	admin string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := testutil.OpenStore(t)
	log := zaptest.NewLogger(t)
	svc := service.New(service.Deps{Store: store, Events: &events.Recorder{}, Log: log})
	return &harness{
		srv:   New(svc, Options{JWTSecret: testSecret, RequestTimeout: 5 * time.Second, Log: log}),
		store: store,
		ops:   testutil.GenerateJWT(t, testSecret, "u-ops", "Olivia Ops", auth.RoleOperationsManager),
		admin: testutil.GenerateJWT(t, testSecret, "u-admin", "Ada Admin", auth.RoleAdmin),
	}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, want, rec.Body.String())
	}
}

func (h *harness) createShipment(t *testing.T, orderID string) models.Shipment {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/shipments", h.ops, map[string]any{
		"orderId":        orderID,
		"consigneeName":  "Sara Khan",
		"consigneePhone": "+971501234567",
		"address":        "Villa 3, Street 12, Dubai Marina",
		"serviceType":    "Express",
	})
	wantStatus(t, rec, http.StatusCreated)
	return decodeBody[models.Shipment](t, rec)
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)

	wantStatus(t, h.do(t, http.MethodGet, "/api/health", "", nil), http.StatusOK)
	wantStatus(t, h.do(t, http.MethodGet, "/api/shipments", "", nil), http.StatusUnauthorized)
	wantStatus(t, h.do(t, http.MethodGet, "/api/shipments", "not-a-jwt", nil), http.StatusUnauthorized)

	forged := testutil.GenerateJWT(t, "other-secret", "u-x", "X", auth.RoleAdmin)
	wantStatus(t, h.do(t, http.MethodGet, "/api/shipments", forged, nil), http.StatusUnauthorized)

	wantStatus(t, h.do(t, http.MethodGet, "/api/shipments", h.ops, nil), http.StatusOK)
	wantStatus(t, h.do(t, http.MethodGet, "/api/nowhere", h.ops, nil), http.StatusNotFound)
}

func TestShipmentRoutes(t *testing.T) {
	h := newHarness(t)
	sh := h.createShipment(t, "ORD-1")
	if sh.Status != models.ShipmentStatusCreated || len(sh.Timeline) != 1 {
		t.Fatalf("unexpected shipment: %+v", sh)
	}

	got := decodeBody[models.Shipment](t, h.do(t, http.MethodGet, "/api/shipments/"+sh.AWB, h.ops, nil))
	if got.ID != sh.ID {
		t.Fatalf("lookup by AWB returned %s", got.ID)
	}
	wantStatus(t, h.do(t, http.MethodGet, "/api/shipments/missing", h.ops, nil), http.StatusNotFound)

	rec := h.do(t, http.MethodPatch, "/api/shipments/"+sh.ID, h.ops, map[string]any{"status": "In Transit", "location": "Dubai Hub"})
	wantStatus(t, rec, http.StatusOK)
	moved := decodeBody[models.Shipment](t, rec)
	if moved.Status != models.ShipmentStatusInTransit || len(moved.Timeline) != 2 {
		t.Fatalf("transition not applied: %+v", moved)
	}

	rec = h.do(t, http.MethodPatch, "/api/shipments/"+sh.ID, h.ops, map[string]any{"consigneeName": "Sara K."})
	wantStatus(t, rec, http.StatusOK)
	if edited := decodeBody[models.Shipment](t, rec); edited.ConsigneeName != "Sara K." || len(edited.Timeline) != 2 {
		t.Fatalf("details patch: %+v", edited)
	}

	rec = h.do(t, http.MethodPatch, "/api/shipments/"+sh.ID, h.ops, map[string]any{"status": "Delivered", "address": "elsewhere"})
	wantStatus(t, rec, http.StatusBadRequest)

	wantStatus(t, h.do(t, http.MethodPost, "/api/shipments/"+sh.ID+"/cancel", h.ops, map[string]any{}), http.StatusBadRequest)
	rec = h.do(t, http.MethodPost, "/api/shipments/"+sh.ID+"/cancel", h.ops, map[string]any{"reason": "customer request"})
	wantStatus(t, rec, http.StatusOK)
	if c := decodeBody[models.Shipment](t, rec); c.Status != models.ShipmentStatusCancelled || c.CancellationReason != "customer request" {
		t.Fatalf("cancel: %+v", c)
	}

	page := decodeBody[service.ShipmentPage](t, h.do(t, http.MethodGet, "/api/shipments?status=Cancelled&page=1&limit=5", h.ops, nil))
	if page.Meta.Total != 1 || len(page.Data) != 1 {
		t.Fatalf("filtered list: %+v", page.Meta)
	}
	wantStatus(t, h.do(t, http.MethodGet, "/api/shipments?page=abc", h.ops, nil), http.StatusBadRequest)
	wantStatus(t, h.do(t, http.MethodPost, "/api/shipments", h.ops, "{not json"), http.StatusBadRequest)
}

func TestManifestCloseLocksShipments(t *testing.T) {
	h := newHarness(t)
	a := h.createShipment(t, "ORD-A")
	b := h.createShipment(t, "ORD-B")

	rec := h.do(t, http.MethodPost, "/api/manifests", h.ops, map[string]any{"shipmentIds": []string{a.ID, b.ID}})
	wantStatus(t, rec, http.StatusCreated)
	m := decodeBody[models.Manifest](t, rec)

	wantStatus(t, h.do(t, http.MethodPatch, "/api/manifests/"+m.ID, h.ops, map[string]any{"status": "Open"}), http.StatusBadRequest)

	rec = h.do(t, http.MethodPatch, "/api/manifests/"+m.ID, h.ops, map[string]any{"status": "Closed"})
	wantStatus(t, rec, http.StatusOK)
	closed := decodeBody[models.Manifest](t, rec)
	if closed.Status != models.ManifestStatusClosed || len(closed.Shipments) != 2 {
		t.Fatalf("close: %+v", closed)
	}
	for _, s := range closed.Shipments {
		if !s.Locked {
			t.Fatalf("shipment %s not locked", s.AWB)
		}
	}

	wantStatus(t, h.do(t, http.MethodPatch, "/api/manifests/"+m.ID, h.ops, map[string]any{"status": "Closed"}), http.StatusConflict)
	wantStatus(t, h.do(t, http.MethodPatch, "/api/shipments/"+a.ID, h.ops, map[string]any{"status": "Delivered"}), http.StatusForbidden)
	wantStatus(t, h.do(t, http.MethodPost, "/api/manifests", h.ops, map[string]any{"shipmentIds": []string{}}), http.StatusBadRequest)

	list := decodeBody[struct {
		Data []models.Manifest `json:"data"`
	}](t, h.do(t, http.MethodGet, "/api/manifests?status=Closed", h.ops, nil))
	if len(list.Data) != 1 {
		t.Fatalf("manifests listed: %d", len(list.Data))
	}
}

func TestPickupAndRiderRoutes(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/riders", h.ops, map[string]any{"name": "Rami", "status": "Idle", "lat": 25.2, "lng": 55.27})
	wantStatus(t, rec, http.StatusCreated)
	rider := decodeBody[models.Rider](t, rec)

	wantStatus(t, h.do(t, http.MethodPatch, "/api/riders/"+rider.ID+"/location", h.ops, map[string]any{"lat": 25.1}), http.StatusBadRequest)
	rec = h.do(t, http.MethodPatch, "/api/riders/"+rider.ID+"/location", h.ops, map[string]any{"lat": 25.21, "lng": 55.28, "status": "Moving"})
	wantStatus(t, rec, http.StatusOK)
	if moved := decodeBody[models.Rider](t, rec); moved.Status != models.RiderStatusMoving {
		t.Fatalf("rider status = %s", moved.Status)
	}

	rec = h.do(t, http.MethodPost, "/api/pickups", h.ops, map[string]any{
		"customerName":  "Acme LLC",
		"customerPhone": "+97142000000",
		"scheduledDate": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"address":       "Warehouse 7, Al Quoz",
		"serviceType":   "Standard",
		"lat":           25.13,
		"lng":           55.22,
	})
	wantStatus(t, rec, http.StatusCreated)
	p := decodeBody[models.Pickup](t, rec)

	near := decodeBody[struct {
		Data []service.RiderDistance `json:"data"`
	}](t, h.do(t, http.MethodGet, "/api/pickups/"+p.ID+"/nearest-riders?limit=3", h.ops, nil))
	if len(near.Data) != 1 || near.Data[0].Rider.ID != rider.ID {
		t.Fatalf("nearest riders: %+v", near.Data)
	}

	rec = h.do(t, http.MethodPatch, "/api/pickups/"+p.ID, h.ops, map[string]any{"status": "Assigned", "riderId": rider.ID})
	wantStatus(t, rec, http.StatusOK)
	rec = h.do(t, http.MethodPatch, "/api/pickups/"+p.ID, h.ops, map[string]any{"status": "Picked"})
	wantStatus(t, rec, http.StatusOK)
	wantStatus(t, h.do(t, http.MethodPatch, "/api/pickups/"+p.ID, h.ops, map[string]any{"city": "Dubai"}), http.StatusConflict)

	sum := decodeBody[service.Summary](t, h.do(t, http.MethodGet, "/api/dashboard/summary", h.ops, nil))
	if sum.Pickups["Picked"] != 1 || sum.Riders["Moving"] != 1 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newHarness(t)
	wantStatus(t, h.do(t, http.MethodGet, "/api/admin/audit", h.ops, nil), http.StatusForbidden)
	wantStatus(t, h.do(t, http.MethodGet, "/api/admin/api-history", h.ops, nil), http.StatusForbidden)
	wantStatus(t, h.do(t, http.MethodPost, "/api/admin/api-history/x/retrigger", h.ops, nil), http.StatusForbidden)

	rec := h.do(t, http.MethodPost, "/api/admin/audit", h.ops, map[string]any{
		"action": "export_csv", "entityType": "shipment", "entityId": "bulk", "details": map[string]any{"rows": 12},
	})
	wantStatus(t, rec, http.StatusCreated)
	if e := decodeBody[models.AuditLog](t, rec); e.Action != "EXPORT_CSV" || e.ActorID != "u-ops" {
		t.Fatalf("client audit: %+v", e)
	}

	logs := decodeBody[struct {
		Data []models.AuditLog `json:"data"`
	}](t, h.do(t, http.MethodGet, "/api/admin/audit?action=EXPORT_CSV", h.admin, nil))
	if len(logs.Data) != 1 {
		t.Fatalf("audit logs: %+v", logs.Data)
	}
}

func TestAPIHistoryRecording(t *testing.T) {
	h := newHarness(t)
	h.createShipment(t, "ORD-H")
	wantStatus(t, h.do(t, http.MethodGet, "/api/shipments", "", nil), http.StatusUnauthorized)
	wantStatus(t, h.do(t, http.MethodGet, "/api/health", "", nil), http.StatusOK)
	wantStatus(t, h.do(t, http.MethodGet, "/api/admin/api-history", h.admin, nil), http.StatusOK)

	entries, err := h.store.APIHistory.List(context.Background(), repository.ListAPIHistoryParams{})
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("recorded %d entries, want 2: %+v", len(entries), entries)
	}
	var created, denied *models.APIHistoryEntry
	for i := range entries {
		switch entries[i].StatusCode {
		case http.StatusCreated:
			created = &entries[i]
		case http.StatusUnauthorized:
			denied = &entries[i]
		}
	}
	if created == nil || created.Method != http.MethodPost || created.ActorID != "u-ops" ||
		!strings.Contains(created.Payload, "ORD-H") || !strings.Contains(created.Response, "ORD-H") {
		t.Fatalf("create entry: %+v", created)
	}
	if denied == nil || denied.ActorID != "" {
		t.Fatalf("unauthorized entry: %+v", denied)
	}
}

func TestRetrigger(t *testing.T) {
	h := newHarness(t)
	h.createShipment(t, "ORD-R")
	wantStatus(t, h.do(t, http.MethodGet, "/api/shipments?search=ORD-R", h.ops, nil), http.StatusOK)

	entries, err := h.store.APIHistory.List(context.Background(), repository.ListAPIHistoryParams{})
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	var getEntry, postEntry string
	for _, e := range entries {
		if e.Method == http.MethodGet {
			getEntry = e.ID
		} else {
			postEntry = e.ID
		}
	}
	if getEntry == "" || postEntry == "" {
		t.Fatalf("history entries missing: %+v", entries)
	}

	wantStatus(t, h.do(t, http.MethodPost, "/api/admin/api-history/"+postEntry+"/retrigger", h.admin, nil), http.StatusConflict)
	wantStatus(t, h.do(t, http.MethodPost, "/api/admin/api-history/nope/retrigger", h.admin, nil), http.StatusNotFound)

	rec := h.do(t, http.MethodPost, "/api/admin/api-history/"+getEntry+"/retrigger", h.admin, nil)
	wantStatus(t, rec, http.StatusOK)
	out := decodeBody[retriggerResponse](t, rec)
	if out.StatusCode != http.StatusOK || out.Entry == nil || out.Entry.ReplayOf == nil || *out.Entry.ReplayOf != getEntry {
		t.Fatalf("retrigger response: %+v", out)
	}
	if out.Entry.ActorID != "u-admin" || out.Entry.Query != "search=ORD-R" {
		t.Fatalf("replay entry: %+v", out.Entry)
	}
	var page service.ShipmentPage
	if err := json.Unmarshal(out.Response, &page); err != nil || page.Meta.Total != 1 {
		t.Fatalf("replayed body: %s (%v)", out.Response, err)
	}

	n, err := h.store.Audit.Count(context.Background(), models.EntityAPIHistory, getEntry)
	if err != nil || n != 1 {
		t.Fatalf("retrigger audit count = %d, %v", n, err)
	}
}

func TestAuditIPIgnoresForwardedForUnlessTrusted(t *testing.T) {
	h := newHarness(t)
	record := func(srv *Server) models.AuditLog {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/api/admin/audit",
			strings.NewReader(`{"action":"print_label","entityType":"shipment","entityId":"s-1"}`))
		req.RemoteAddr = "192.0.2.10:4711"
		req.Header.Set("Authorization", "Bearer "+h.ops)
		req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		wantStatus(t, rec, http.StatusCreated)
		return decodeBody[models.AuditLog](t, rec)
	}

	if got := record(h.srv); got.IPAddress != "192.0.2.10" {
		t.Fatalf("untrusted proxy header used: ip=%q", got.IPAddress)
	}

	trusted := New(h.srv.svc, Options{JWTSecret: testSecret, TrustProxy: true, Log: zaptest.NewLogger(t)})
	if got := record(trusted); got.IPAddress != "203.0.113.5" {
		t.Fatalf("trusted proxy header ignored: ip=%q", got.IPAddress)
	}
}

package repository

import (
	"context"
	"testing"
	"time"

	"lmdPortal/models"
)

func TestPickupUpdateIfNotTerminal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := &models.Pickup{
		RequestID:     "REQ-1-ABCDE",
		CustomerName:  "Acme",
		ScheduledDate: time.Now().UTC().Add(24 * time.Hour),
		Address:       "Warehouse 4, Jebel Ali",
		ServiceType:   "Standard",
		Status:        models.PickupStatusRequested,
	}
	if err := s.Pickups.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	ok, err := s.Pickups.UpdateIfNotTerminal(ctx, p.ID, map[string]any{"status": string(models.PickupStatusPicked)})
	if err != nil || !ok {
		t.Fatalf("update: %v %v", ok, err)
	}
	ok, err = s.Pickups.UpdateIfNotTerminal(ctx, p.ID, map[string]any{"status": string(models.PickupStatusRequested)})
	if err != nil || ok {
		t.Fatalf("terminal pickup must not change: %v %v", ok, err)
	}
	got, _ := s.Pickups.GetByID(ctx, p.ID)
	if got.Status != models.PickupStatusPicked {
		t.Fatalf("status = %s", got.Status)
	}

	list, total, err := s.Pickups.List(ctx, ListPickupsParams{Search: "acme"})
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("search: %d %v", total, err)
	}
}

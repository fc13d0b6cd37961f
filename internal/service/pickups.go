package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"lmdPortal/internal/apperr"
	"lmdPortal/internal/auth"
	"lmdPortal/internal/events"
	"lmdPortal/internal/geo"
	"lmdPortal/models"
	"lmdPortal/repository"
)

// PickupService manages pickup requests.
type PickupService struct {
	base
}

// SchedulePickupInput holds the fields accepted when scheduling a pickup.
type SchedulePickupInput struct {
	RequestID       string     `json:"requestId"`
	CustomerName    string     `json:"customerName"`
	CustomerPhone   string     `json:"customerPhone"`
	ContactName     string     `json:"contactName"`
	ContactPhone    string     `json:"contactPhone"`
	ScheduledDate   *time.Time `json:"scheduledDate"`
	Address         string     `json:"address"`
	City            string     `json:"city"`
	ServiceType     string     `json:"serviceType"`
	AWBNumber       string     `json:"awbNumber"`
	Lat             *float64   `json:"lat"`
	Lng             *float64   `json:"lng"`
	ItemCount       int        `json:"itemCount"`
	EstimatedWeight *float64   `json:"estimatedWeight"`
}

func validateCoordinates(lat, lng *float64) error {
	if (lat == nil) != (lng == nil) {
		return apperr.Validation("lat and lng must be given together")
	}
	if lat != nil && !geo.ValidCoordinate(*lat, *lng) {
		return apperr.Validation("coordinates out of range")
	}
	return nil
}

// Schedule creates a pickup in status Requested.
func (s *PickupService) Schedule(ctx context.Context, a auth.Actor, in SchedulePickupInput) (*models.Pickup, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	p := &models.Pickup{
		RequestID:       strings.TrimSpace(in.RequestID),
		CustomerName:    orDefault(in.CustomerName, strings.TrimSpace(in.ContactName)),
		CustomerPhone:   orDefault(in.CustomerPhone, strings.TrimSpace(in.ContactPhone)),
		ContactName:     strings.TrimSpace(in.ContactName),
		ContactPhone:    strings.TrimSpace(in.ContactPhone),
		Address:         strings.TrimSpace(in.Address),
		City:            strings.TrimSpace(in.City),
		ServiceType:     strings.TrimSpace(in.ServiceType),
		AWBNumber:       strings.TrimSpace(in.AWBNumber),
		Lat:             in.Lat,
		Lng:             in.Lng,
		ItemCount:       in.ItemCount,
		EstimatedWeight: in.EstimatedWeight,
		Status:          models.PickupStatusRequested,
	}
	switch {
	case in.ScheduledDate == nil || in.ScheduledDate.IsZero():
		return nil, apperr.Validation("scheduledDate is required")
	case p.Address == "":
		return nil, apperr.Validation("address is required")
	case p.ServiceType == "":
		return nil, apperr.Validation("serviceType is required")
	case p.ItemCount < 0:
		return nil, apperr.Validation("itemCount must not be negative")
	case p.EstimatedWeight != nil && *p.EstimatedWeight < 0:
		return nil, apperr.Validation("estimatedWeight must not be negative")
	}
	if err := validateCoordinates(p.Lat, p.Lng); err != nil {
		return nil, err
	}
	p.ScheduledDate = in.ScheduledDate.UTC()
	if p.RequestID == "" {
		p.RequestID = newRequestID(s.now())
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Pickups.Create(ctx, p); err != nil {
			return storageErr(fmt.Sprintf("create pickup %s", p.RequestID), err)
		}
		return s.record(ctx, tx, a, models.ActionCreatePickup, models.EntityPickup, p.ID,
			fmt.Sprintf("Scheduled pickup %s", p.RequestID))
	})
	if err != nil {
		return nil, storageErr("schedule pickup", err)
	}
	s.log.Info("pickup scheduled", zap.String("requestId", p.RequestID), zap.String("actor", a.ID))
	return p, nil
}

// Get fetches a pickup by id.
func (s *PickupService) Get(ctx context.Context, id string) (*models.Pickup, error) {
	p, err := s.store.Pickups.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("get pickup", err)
	}
	if p == nil {
		return nil, apperr.NotFound("pickup %s not found", id)
	}
	return p, nil
}

// ListPickupsQuery are the list filters as received from a caller.
type ListPickupsQuery struct {
	Page    int
	Limit   int
	Status  string // "" or "all" disables the filter
	RiderID string
	Search  string
}

// PickupPage is one page of pickups with its pagination metadata.
type PickupPage struct {
	Data []models.Pickup `json:"data"`
	Meta PageMeta        `json:"meta"`
}

// List returns a page of pickups, newest first.
func (s *PickupService) List(ctx context.Context, q ListPickupsQuery) (*PickupPage, error) {
	p := repository.ListPickupsParams{Page: q.Page, Limit: q.Limit, RiderID: strings.TrimSpace(q.RiderID), Search: q.Search}
	if st := strings.TrimSpace(q.Status); st != "" && !strings.EqualFold(st, "all") {
		parsed, ok := models.ParsePickupStatus(st)
		if !ok {
			return nil, apperr.Validation("unknown pickup status %q", q.Status)
		}
		p.Status = &parsed
	}
	p = p.Normalize()
	rows, total, err := s.store.Pickups.List(ctx, p)
	if err != nil {
		return nil, storageErr("list pickups", err)
	}
	if rows == nil {
		rows = []models.Pickup{}
	}
	return &PickupPage{Data: rows, Meta: pageMeta(total, p.Page, p.Limit)}, nil
}

// PickupTransition moves a pickup to a new status.
type PickupTransition struct {
	Status        string `json:"status"`
	RiderID       string `json:"riderId"`
	FailureReason string `json:"failureReason"`
	Remarks       string `json:"remarks"`
}

// Transition applies a status change. Picked and Failed are terminal;
// Assigned needs a known rider; Failed needs a reason, and failure fields
// are rejected for any other status.
func (s *PickupService) Transition(ctx context.Context, a auth.Actor, id string, req PickupTransition) (*models.Pickup, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	st, ok := models.ParsePickupStatus(req.Status)
	if !ok {
		return nil, apperr.Validation("unknown pickup status %q", req.Status)
	}
	riderID := strings.TrimSpace(req.RiderID)
	reason := strings.TrimSpace(req.FailureReason)
	remarks := strings.TrimSpace(req.Remarks)
	switch {
	case st == models.PickupStatusFailed && reason == "":
		return nil, apperr.Validation("failureReason is required when marking a pickup Failed")
	case st != models.PickupStatusFailed && (reason != "" || remarks != ""):
		return nil, apperr.Validation("failureReason and remarks are only accepted with status %s", models.PickupStatusFailed)
	case st == models.PickupStatusAssigned && riderID == "":
		return nil, apperr.Validation("riderId is required to assign a pickup")
	}

	var out *models.Pickup
	var from models.PickupStatus
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		p, err := tx.Pickups.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.NotFound("pickup %s not found", id)
		}
		if p.Status.IsTerminal() {
			return apperr.Conflict("pickup %s is already %s", p.RequestID, p.Status)
		}
		from = p.Status

		updates := map[string]any{"status": string(st)}
		if riderID != "" {
			rd, err := tx.Riders.GetByID(ctx, riderID)
			if err != nil {
				return err
			}
			if rd == nil {
				return apperr.NotFound("rider %s not found", riderID)
			}
			updates["rider_id"] = rd.ID
		}
		if st == models.PickupStatusFailed {
			updates["failure_reason"] = reason
			updates["remarks"] = remarks
		}
		applied, err := tx.Pickups.UpdateIfNotTerminal(ctx, p.ID, updates)
		if err != nil {
			return err
		}
		if !applied {
			return apperr.Conflict("pickup %s reached a terminal status concurrently", p.RequestID)
		}

		details := fmt.Sprintf("Updated status of %s from %s to %s", p.RequestID, from, st)
		if st == models.PickupStatusFailed {
			details += ": " + reason
		}
		if err := s.record(ctx, tx, a, models.ActionUpdatePickupStatus, models.EntityPickup, p.ID, details); err != nil {
			return err
		}
		out, err = tx.Pickups.GetByID(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, storageErr("transition pickup", err)
	}

	msg := events.Message{
		EntityID:  out.ID,
		Reference: out.RequestID,
		Status:    string(st),
		ActorID:   a.ID,
		Details:   map[string]any{"from": string(from)},
	}
	if out.RiderID != nil {
		msg.Details["riderId"] = *out.RiderID
	}
	s.publish(ctx, events.PickupStatusChanged, msg)
	s.log.Info("pickup status changed",
		zap.String("requestId", out.RequestID),
		zap.String("from", string(from)),
		zap.String("to", string(st)),
		zap.String("actor", a.ID))
	return out, nil
}

// PickupDetailsPatch holds editable pickup fields. Nil means unchanged.
type PickupDetailsPatch struct {
	Address       *string    `json:"address"`
	City          *string    `json:"city"`
	ContactName   *string    `json:"contactName"`
	ContactPhone  *string    `json:"contactPhone"`
	ServiceType   *string    `json:"serviceType"`
	ScheduledDate *time.Time `json:"scheduledDate"`
	Lat           *float64   `json:"lat"`
	Lng           *float64   `json:"lng"`
}

// UpdateDetails edits a pickup that has not reached a terminal status.
func (s *PickupService) UpdateDetails(ctx context.Context, a auth.Actor, id string, patch PickupDetailsPatch) (*models.Pickup, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	for _, f := range []struct {
		column   string
		val      *string
		required bool
	}{
		{"address", patch.Address, true},
		{"service_type", patch.ServiceType, true},
		{"city", patch.City, false},
		{"contact_name", patch.ContactName, false},
		{"contact_phone", patch.ContactPhone, false},
	} {
		if v, set := trimmed(f.val); set {
			if v == "" && f.required {
				return nil, apperr.Validation("%s must not be empty", f.column)
			}
			updates[f.column] = v
		}
	}
	if patch.ScheduledDate != nil {
		if patch.ScheduledDate.IsZero() {
			return nil, apperr.Validation("scheduled_date must not be empty")
		}
		updates["scheduled_date"] = patch.ScheduledDate.UTC()
	}
	if err := validateCoordinates(patch.Lat, patch.Lng); err != nil {
		return nil, err
	}
	if patch.Lat != nil {
		updates["lat"] = *patch.Lat
		updates["lng"] = *patch.Lng
	}
	if len(updates) == 0 {
		return nil, apperr.Validation("no fields to update")
	}

	var out *models.Pickup
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		p, err := tx.Pickups.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.NotFound("pickup %s not found", id)
		}
		if p.Status.IsTerminal() {
			return apperr.Conflict("pickup %s is already %s", p.RequestID, p.Status)
		}
		applied, err := tx.Pickups.UpdateIfNotTerminal(ctx, p.ID, updates)
		if err != nil {
			return err
		}
		if !applied {
			return apperr.Conflict("pickup %s reached a terminal status concurrently", p.RequestID)
		}
		if err := s.record(ctx, tx, a, models.ActionUpdatePickupDetails, models.EntityPickup, p.ID,
			fmt.Sprintf("Updated details for %s", p.RequestID)); err != nil {
			return err
		}
		out, err = tx.Pickups.GetByID(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, storageErr("update pickup details", err)
	}
	return out, nil
}

// RiderDistance is a rider ranked by distance from a pickup.
type RiderDistance struct {
	Rider      models.Rider `json:"rider"`
	DistanceKm float64      `json:"distanceKm"`
}

// NearestRiders ranks riders that are not Offline by great-circle distance
// from the pickup. maxKm <= 0 disables the radius cut-off.
func (s *PickupService) NearestRiders(ctx context.Context, pickupID string, limit int, maxKm float64) ([]RiderDistance, error) {
	p, err := s.Get(ctx, pickupID)
	if err != nil {
		return nil, err
	}
	if p.Lat == nil || p.Lng == nil {
		return nil, apperr.Validation("pickup %s has no coordinates", p.RequestID)
	}
	riders, err := s.store.Riders.ListAvailable(ctx)
	if err != nil {
		return nil, storageErr("list riders", err)
	}
	ranked := geo.Nearest(*p.Lat, *p.Lng, riders, func(r models.Rider) (float64, float64) { return r.Lat, r.Lng }, limit, maxKm)
	out := make([]RiderDistance, len(ranked))
	for i, r := range ranked {
		out[i] = RiderDistance{Rider: r.Item, DistanceKm: r.DistanceKm}
	}
	return out, nil
}

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
	"lmdPortal/models"
	"lmdPortal/repository"
)

const (
	defaultOrigin      = "Dubai Hub"
	defaultDestination = "Dubai"
	defaultLocation    = "System"
)

// ShipmentService manages the shipment lifecycle.
type ShipmentService struct {
	base
}

// TimelineInput is one tracking event supplied at creation.
type TimelineInput struct {
	Status      string     `json:"status"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	Timestamp   *time.Time `json:"timestamp"`
}

// CreateShipmentInput holds the fields accepted when booking a shipment.
type CreateShipmentInput struct {
	AWB            string          `json:"awb"`
	OrderID        string          `json:"orderId"`
	ConsigneeName  string          `json:"consigneeName"`
	ConsigneePhone string          `json:"consigneePhone"`
	Address        string          `json:"address"`
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	Weight         *float64        `json:"weight"`
	ServiceType    string          `json:"serviceType"`
	Status         string          `json:"status"`
	Timeline       []TimelineInput `json:"timeline"`
}

// Create validates in, applies defaults and stores the shipment with its
// initial timeline and audit entry.
func (s *ShipmentService) Create(ctx context.Context, a auth.Actor, in CreateShipmentInput) (*models.Shipment, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	sh, err := s.buildShipment(in)
	if err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Shipments.Create(ctx, sh); err != nil {
			return storageErr(fmt.Sprintf("create shipment %s", sh.AWB), err)
		}
		return s.record(ctx, tx, a, models.ActionCreateShipment, models.EntityShipment, sh.ID,
			fmt.Sprintf("Created shipment %s", sh.AWB))
	})
	if err != nil {
		return nil, storageErr("create shipment", err)
	}
	s.log.Info("shipment created", zap.String("awb", sh.AWB), zap.String("id", sh.ID), zap.String("actor", a.ID))
	return sh, nil
}

func (s *ShipmentService) buildShipment(in CreateShipmentInput) (*models.Shipment, error) {
	sh := &models.Shipment{
		AWB:            strings.TrimSpace(in.AWB),
		OrderID:        strings.TrimSpace(in.OrderID),
		ConsigneeName:  strings.TrimSpace(in.ConsigneeName),
		ConsigneePhone: strings.TrimSpace(in.ConsigneePhone),
		Address:        strings.TrimSpace(in.Address),
		Origin:         strings.TrimSpace(in.Origin),
		Destination:    strings.TrimSpace(in.Destination),
		Weight:         in.Weight,
		ServiceType:    strings.TrimSpace(in.ServiceType),
		Status:         models.ShipmentStatusCreated,
	}
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"orderId", sh.OrderID},
		{"consigneeName", sh.ConsigneeName},
		{"consigneePhone", sh.ConsigneePhone},
		{"address", sh.Address},
		{"serviceType", sh.ServiceType},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}
	if sh.Weight != nil && *sh.Weight < 0 {
		return nil, apperr.Validation("weight must not be negative")
	}
	if in.Status != "" {
		st, ok := models.ParseShipmentStatus(in.Status)
		if !ok {
			return nil, apperr.Validation("unknown shipment status %q", in.Status)
		}
		sh.Status = st
	}

	now := s.now()
	if sh.AWB == "" {
		sh.AWB = newAWB(now)
	}
	if sh.Origin == "" {
		sh.Origin = defaultOrigin
	}
	if sh.Destination == "" {
		sh.Destination = destinationFromAddress(sh.Address)
	}

	for i, t := range in.Timeline {
		st, ok := models.ParseShipmentStatus(t.Status)
		if !ok {
			return nil, apperr.Validation("timeline[%d]: unknown status %q", i, t.Status)
		}
		sh.Timeline = append(sh.Timeline, models.TrackingEvent{
			Status:      st,
			Location:    orDefault(t.Location, defaultLocation),
			Description: strings.TrimSpace(t.Description),
			Timestamp:   timeOrNow(t.Timestamp, now),
		})
	}
	if len(sh.Timeline) == 0 {
		sh.Timeline = []models.TrackingEvent{{
			Status:    models.ShipmentStatusCreated,
			Location:  defaultLocation,
			Timestamp: now,
		}}
	}
	return sh, nil
}

// destinationFromAddress returns the last comma-separated segment of address.
func destinationFromAddress(address string) string {
	parts := strings.Split(address, ",")
	if last := strings.TrimSpace(parts[len(parts)-1]); last != "" {
		return last
	}
	return defaultDestination
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func timeOrNow(t *time.Time, now time.Time) time.Time {
	if t == nil || t.IsZero() {
		return now
	}
	return t.UTC()
}

// Get fetches a shipment by id or AWB.
func (s *ShipmentService) Get(ctx context.Context, idOrAWB string) (*models.Shipment, error) {
	sh, err := resolveShipment(ctx, s.store, idOrAWB)
	if err != nil {
		return nil, storageErr("get shipment", err)
	}
	return sh, nil
}

// resolveShipment looks a shipment up by id, then by AWB, through st so it
// can run inside a transaction.
func resolveShipment(ctx context.Context, st *repository.Store, idOrAWB string) (*models.Shipment, error) {
	key := strings.TrimSpace(idOrAWB)
	if key == "" {
		return nil, apperr.Validation("shipment id is required")
	}
	sh, err := st.Shipments.GetByID(ctx, key)
	if err == nil && sh == nil {
		sh, err = st.Shipments.GetByAWB(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, apperr.NotFound("shipment %s not found", key)
	}
	return sh, nil
}

// ListShipmentsQuery are the list filters as received from a caller.
type ListShipmentsQuery struct {
	Page   int
	Limit  int
	Status string // "" or "all" disables the filter
	Search string
}

// ShipmentPage is one page of shipments with its pagination metadata.
type ShipmentPage struct {
	Data []models.Shipment `json:"data"`
	Meta PageMeta          `json:"meta"`
}

// List returns a page of shipments, newest first.
func (s *ShipmentService) List(ctx context.Context, q ListShipmentsQuery) (*ShipmentPage, error) {
	p := repository.ListShipmentsParams{Page: q.Page, Limit: q.Limit, Search: q.Search}
	if st := strings.TrimSpace(q.Status); st != "" && !strings.EqualFold(st, "all") {
		parsed, ok := models.ParseShipmentStatus(st)
		if !ok {
			return nil, apperr.Validation("unknown shipment status %q", q.Status)
		}
		p.Status = &parsed
	}
	p = p.Normalize()
	rows, total, err := s.store.Shipments.List(ctx, p)
	if err != nil {
		return nil, storageErr("list shipments", err)
	}
	if rows == nil {
		rows = []models.Shipment{}
	}
	return &ShipmentPage{Data: rows, Meta: pageMeta(total, p.Page, p.Limit)}, nil
}

// TransitionRequest moves a shipment to a new status.
type TransitionRequest struct {
	Status             string     `json:"status"`
	Location           string     `json:"location"`
	Description        string     `json:"description"`
	Timestamp          *time.Time `json:"timestamp"`
	CancellationReason string     `json:"cancellationReason"`
}

// Transition changes the status of an unlocked shipment, appends one
// timeline event and records one audit entry, all atomically.
func (s *ShipmentService) Transition(ctx context.Context, a auth.Actor, id string, req TransitionRequest) (*models.Shipment, error) {
	return s.transition(ctx, a, id, req, models.ActionUpdateShipmentStatus)
}

// Cancel transitions the shipment to Cancelled. reason is mandatory.
func (s *ShipmentService) Cancel(ctx context.Context, a auth.Actor, id, reason, location string) (*models.Shipment, error) {
	return s.transition(ctx, a, id, TransitionRequest{
		Status:             string(models.ShipmentStatusCancelled),
		Location:           location,
		CancellationReason: reason,
	}, models.ActionCancelShipment)
}

func (s *ShipmentService) transition(ctx context.Context, a auth.Actor, id string, req TransitionRequest, action string) (*models.Shipment, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	st, ok := models.ParseShipmentStatus(req.Status)
	if !ok {
		return nil, apperr.Validation("unknown shipment status %q", req.Status)
	}
	reason := strings.TrimSpace(req.CancellationReason)
	if st == models.ShipmentStatusCancelled && reason == "" {
		return nil, apperr.Validation("cancellationReason is required to cancel a shipment")
	}
	if st != models.ShipmentStatusCancelled && reason != "" {
		return nil, apperr.Validation("cancellationReason is only accepted with status %s", models.ShipmentStatusCancelled)
	}

	now := s.now()
	var out *models.Shipment
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		sh, err := resolveShipment(ctx, tx, id)
		if err != nil {
			return err
		}
		if sh.Locked {
			return apperr.Forbidden("shipment %s is locked by a closed manifest", sh.AWB)
		}

		// The reason is kept only while the shipment stays Cancelled.
		updates := map[string]any{"status": string(st), "cancellation_reason": ""}
		if st == models.ShipmentStatusCancelled {
			updates["cancellation_reason"] = reason
		}
		applied, err := tx.Shipments.UpdateUnlocked(ctx, sh.ID, updates)
		if err != nil {
			return err
		}
		if !applied {
			return apperr.Forbidden("shipment %s is locked by a closed manifest", sh.AWB)
		}

		desc := strings.TrimSpace(req.Description)
		if desc == "" && reason != "" {
			desc = reason
		}
		ev := &models.TrackingEvent{
			ShipmentID:  sh.ID,
			Status:      st,
			Location:    orDefault(req.Location, defaultLocation),
			Description: desc,
			Timestamp:   timeOrNow(req.Timestamp, now),
		}
		if err := tx.Shipments.AppendEvent(ctx, ev); err != nil {
			return err
		}

		details := fmt.Sprintf("Updated status of %s from %s to %s", sh.AWB, sh.Status, st)
		if action == models.ActionCancelShipment {
			details = fmt.Sprintf("Cancelled shipment %s: %s", sh.AWB, reason)
		}
		if err := s.record(ctx, tx, a, action, models.EntityShipment, sh.ID, details); err != nil {
			return err
		}

		out, err = tx.Shipments.GetByID(ctx, sh.ID)
		return err
	})
	if err != nil {
		return nil, storageErr("transition shipment", err)
	}

	key := events.ShipmentStatusChanged
	if st == models.ShipmentStatusCancelled {
		key = events.ShipmentCancelled
	}
	s.publish(ctx, key, events.Message{
		EntityID:  out.ID,
		Reference: out.AWB,
		Status:    string(st),
		ActorID:   a.ID,
		Details:   map[string]any{"location": orDefault(req.Location, defaultLocation)},
	})
	s.log.Info("shipment status changed",
		zap.String("awb", out.AWB),
		zap.String("status", string(st)),
		zap.String("actor", a.ID))
	return out, nil
}

// ShipmentDetailsPatch holds editable descriptive fields. Nil means unchanged.
type ShipmentDetailsPatch struct {
	ConsigneeName  *string  `json:"consigneeName"`
	ConsigneePhone *string  `json:"consigneePhone"`
	Address        *string  `json:"address"`
	Weight         *float64 `json:"weight"`
	ServiceType    *string  `json:"serviceType"`
}

// UpdateDetails edits descriptive fields of an unlocked shipment. It does
// not add a timeline event.
func (s *ShipmentService) UpdateDetails(ctx context.Context, a auth.Actor, id string, patch ShipmentDetailsPatch) (*models.Shipment, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	for _, f := range []struct {
		column string
		val    *string
	}{
		{"consignee_name", patch.ConsigneeName},
		{"consignee_phone", patch.ConsigneePhone},
		{"address", patch.Address},
		{"service_type", patch.ServiceType},
	} {
		if v, set := trimmed(f.val); set {
			if v == "" {
				return nil, apperr.Validation("%s must not be empty", f.column)
			}
			updates[f.column] = v
		}
	}
	if patch.Weight != nil {
		if *patch.Weight < 0 {
			return nil, apperr.Validation("weight must not be negative")
		}
		updates["weight"] = *patch.Weight
	}
	if len(updates) == 0 {
		return nil, apperr.Validation("no fields to update")
	}

	var out *models.Shipment
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		sh, err := resolveShipment(ctx, tx, id)
		if err != nil {
			return err
		}
		if sh.Locked {
			return apperr.Forbidden("shipment %s is locked by a closed manifest", sh.AWB)
		}
		applied, err := tx.Shipments.UpdateUnlocked(ctx, sh.ID, updates)
		if err != nil {
			return err
		}
		if !applied {
			return apperr.Forbidden("shipment %s is locked by a closed manifest", sh.AWB)
		}
		if err := s.record(ctx, tx, a, models.ActionUpdateShipmentDetails, models.EntityShipment, sh.ID,
			fmt.Sprintf("Updated details for %s", sh.AWB)); err != nil {
			return err
		}
		out, err = tx.Shipments.GetByID(ctx, sh.ID)
		return err
	})
	if err != nil {
		return nil, storageErr("update shipment details", err)
	}
	return out, nil
}

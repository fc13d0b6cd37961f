package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"lmdPortal/internal/apperr"
	"lmdPortal/internal/auth"
	"lmdPortal/internal/geo"
	"lmdPortal/models"
	"lmdPortal/repository"
)

// RiderService tracks riders and their last reported positions.
type RiderService struct {
	base
}

// CreateRiderInput holds the fields accepted when registering a rider.
type CreateRiderInput struct {
	Name   string  `json:"name"`
	Phone  string  `json:"phone"`
	Status string  `json:"status"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// Create registers a rider. Status defaults to Offline.
func (s *RiderService) Create(ctx context.Context, a auth.Actor, in CreateRiderInput) (*models.Rider, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	rd := &models.Rider{
		Name:   strings.TrimSpace(in.Name),
		Phone:  strings.TrimSpace(in.Phone),
		Status: models.RiderStatusOffline,
		Lat:    in.Lat,
		Lng:    in.Lng,
	}
	if rd.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if in.Status != "" {
		st, ok := models.ParseRiderStatus(in.Status)
		if !ok {
			return nil, apperr.Validation("unknown rider status %q", in.Status)
		}
		rd.Status = st
	}
	if !geo.ValidCoordinate(rd.Lat, rd.Lng) {
		return nil, apperr.Validation("coordinates out of range")
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Riders.Create(ctx, rd); err != nil {
			return err
		}
		return s.record(ctx, tx, a, models.ActionCreateRider, models.EntityRider, rd.ID,
			fmt.Sprintf("Registered rider %s", rd.Name))
	})
	if err != nil {
		return nil, storageErr("create rider", err)
	}
	return rd, nil
}

// List returns riders, optionally filtered by status ("" or "all" for every rider).
func (s *RiderService) List(ctx context.Context, status string) ([]models.Rider, error) {
	var filter *models.RiderStatus
	if st := strings.TrimSpace(status); st != "" && !strings.EqualFold(st, "all") {
		parsed, ok := models.ParseRiderStatus(st)
		if !ok {
			return nil, apperr.Validation("unknown rider status %q", status)
		}
		filter = &parsed
	}
	out, err := s.store.Riders.List(ctx, filter)
	if err != nil {
		return nil, storageErr("list riders", err)
	}
	if out == nil {
		out = []models.Rider{}
	}
	return out, nil
}

// UpdateLocation stores a rider's reported position. An empty status keeps
// the current one, except that a report from an Offline rider brings it
// online as Idle.
func (s *RiderService) UpdateLocation(ctx context.Context, a auth.Actor, riderID string, lat, lng float64, status string) (*models.Rider, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	if !geo.ValidCoordinate(lat, lng) {
		return nil, apperr.Validation("coordinates out of range: lat must be in [-90, 90], lng in [-180, 180]")
	}
	var next models.RiderStatus
	if status != "" {
		st, ok := models.ParseRiderStatus(status)
		if !ok {
			return nil, apperr.Validation("unknown rider status %q", status)
		}
		next = st
	}

	now := s.now()
	var out *models.Rider
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		rd, err := tx.Riders.GetByID(ctx, riderID)
		if err != nil {
			return err
		}
		if rd == nil {
			return apperr.NotFound("rider %s not found", riderID)
		}
		st := next
		if st == "" {
			st = rd.Status
			if st == models.RiderStatusOffline {
				st = models.RiderStatusIdle
			}
		}
		if _, err := tx.Riders.UpdateLocation(ctx, rd.ID, lat, lng, st, now); err != nil {
			return err
		}
		if err := s.record(ctx, tx, a, models.ActionUpdateRiderLocation, models.EntityRider, rd.ID,
			fmt.Sprintf("Location %.6f,%.6f (%s)", lat, lng, st)); err != nil {
			return err
		}
		out, err = tx.Riders.GetByID(ctx, rd.ID)
		return err
	})
	if err != nil {
		return nil, storageErr("update rider location", err)
	}
	s.log.Debug("rider location updated", zap.String("rider", out.ID), zap.Float64("lat", lat), zap.Float64("lng", lng))
	return out, nil
}

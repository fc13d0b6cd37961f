package service

import (
	"context"

	"lmdPortal/models"
)

// DashboardService aggregates counts for the portal landing page.
type DashboardService struct {
	base
}

// Summary holds per-status counts for each entity.
type Summary struct {
	Shipments      map[string]int64 `json:"shipments"`
	TotalShipments int64            `json:"totalShipments"`
	Pickups        map[string]int64 `json:"pickups"`
	Manifests      map[string]int64 `json:"manifests"`
	Riders         map[string]int64 `json:"riders"`
}

// Summary counts shipments, pickups, manifests and riders by status. Every
// known status is present, with zero when no row has it.
func (s *DashboardService) Summary(ctx context.Context) (*Summary, error) {
	shipments, err := s.store.Shipments.CountByStatus(ctx)
	if err != nil {
		return nil, storageErr("count shipments", err)
	}
	pickups, err := s.store.Pickups.CountByStatus(ctx)
	if err != nil {
		return nil, storageErr("count pickups", err)
	}
	manifests, err := s.store.Manifests.CountByStatus(ctx)
	if err != nil {
		return nil, storageErr("count manifests", err)
	}
	riders, err := s.store.Riders.CountByStatus(ctx)
	if err != nil {
		return nil, storageErr("count riders", err)
	}

	out := &Summary{
		Shipments: withZeros(shipments, models.ShipmentStatuses),
		Pickups:   withZeros(pickups, models.PickupStatuses),
		Manifests: withZeros(manifests, []models.ManifestStatus{models.ManifestStatusOpen, models.ManifestStatusClosed}),
		Riders:    withZeros(riders, []models.RiderStatus{models.RiderStatusIdle, models.RiderStatusMoving, models.RiderStatusOffline}),
	}
	for _, n := range shipments {
		out.TotalShipments += n
	}
	return out, nil
}

func withZeros[S ~string](counts map[string]int64, known []S) map[string]int64 {
	out := make(map[string]int64, len(known))
	for _, k := range known {
		out[string(k)] = 0
	}
	for k, n := range counts {
		out[k] = n
	}
	return out
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"lmdPortal/internal/apperr"
	"lmdPortal/internal/auth"
	"lmdPortal/internal/db"
	"lmdPortal/internal/events"
	"lmdPortal/models"
	"lmdPortal/repository"
)

// ManifestService creates and closes manifests.
type ManifestService struct {
	base
}

// Create groups shipmentIDs into a new Open manifest. Every shipment must
// exist, be unlocked and not belong to another manifest.
func (s *ManifestService) Create(ctx context.Context, a auth.Actor, shipmentIDs []string) (*models.Manifest, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	ids := dedupe(shipmentIDs)
	if len(ids) == 0 {
		return nil, apperr.Validation("no shipments selected")
	}

	var out *models.Manifest
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		found, err := tx.Shipments.FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(found) != len(ids) {
			return apperr.NotFound("shipments not found: %s", strings.Join(missingIDs(ids, found), ", "))
		}
		for _, sh := range found {
			if sh.Locked {
				return apperr.Forbidden("shipment %s is locked", sh.AWB)
			}
			if sh.ManifestID != nil {
				return apperr.Conflict("shipment %s already belongs to manifest %s", sh.AWB, *sh.ManifestID)
			}
		}

		m := &models.Manifest{
			ManifestRef: newManifestRef(),
			Status:      models.ManifestStatusOpen,
			GeneratedBy: a.DisplayName(),
		}
		if err := tx.Manifests.Create(ctx, m); err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Wrap(apperr.CodeConflict, fmt.Sprintf("manifest reference %s already in use, retry", m.ManifestRef), err)
			}
			return err
		}
		n, err := tx.Shipments.AttachToManifest(ctx, m.ID, ids)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return apperr.Conflict("shipments changed while creating the manifest, attached %d of %d", n, len(ids))
		}
		if err := s.record(ctx, tx, a, models.ActionCreateManifest, models.EntityManifest, m.ID,
			fmt.Sprintf("Created manifest %s with %d shipments", m.ManifestRef, len(ids))); err != nil {
			return err
		}
		out, err = tx.Manifests.GetByID(ctx, m.ID)
		return err
	})
	if err != nil {
		return nil, storageErr("create manifest", err)
	}

	s.publish(ctx, events.ManifestCreated, events.Message{
		EntityID:  out.ID,
		Reference: out.ManifestRef,
		Status:    string(out.Status),
		ActorID:   a.ID,
		Details:   map[string]any{"shipmentIds": ids},
	})
	s.log.Info("manifest created",
		zap.String("manifestRef", out.ManifestRef),
		zap.Int("shipments", len(ids)),
		zap.String("actor", a.ID))
	return out, nil
}

// Close marks an Open manifest Closed and locks all of its shipments in the
// same transaction. Closing twice is a Conflict.
func (s *ManifestService) Close(ctx context.Context, a auth.Actor, id string) (*models.Manifest, error) {
	if err := requireActor(a); err != nil {
		return nil, err
	}
	now := s.now()
	var out *models.Manifest
	var locked int64
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		m, err := tx.Manifests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if m == nil {
			return apperr.NotFound("manifest %s not found", id)
		}
		if m.Status == models.ManifestStatusClosed {
			return apperr.Conflict("manifest %s is already closed", m.ManifestRef)
		}
		closed, err := tx.Manifests.CloseIfOpen(ctx, m.ID, now)
		if err != nil {
			return err
		}
		if !closed {
			return apperr.Conflict("manifest %s is already closed", m.ManifestRef)
		}
		if locked, err = tx.Shipments.LockByManifest(ctx, m.ID); err != nil {
			return err
		}
		if err := s.record(ctx, tx, a, models.ActionCloseManifest, models.EntityManifest, m.ID,
			fmt.Sprintf("Closed manifest %s, locked %d shipments", m.ManifestRef, locked)); err != nil {
			return err
		}
		out, err = tx.Manifests.GetByID(ctx, m.ID)
		return err
	})
	if err != nil {
		return nil, storageErr("close manifest", err)
	}

	s.publish(ctx, events.ManifestClosed, events.Message{
		EntityID:  out.ID,
		Reference: out.ManifestRef,
		Status:    string(out.Status),
		ActorID:   a.ID,
		Details:   map[string]any{"lockedShipments": locked},
	})
	s.log.Info("manifest closed",
		zap.String("manifestRef", out.ManifestRef),
		zap.Int64("locked", locked),
		zap.String("actor", a.ID))
	return out, nil
}

// Get fetches a manifest with its member shipments.
func (s *ManifestService) Get(ctx context.Context, id string) (*models.Manifest, error) {
	m, err := s.store.Manifests.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("get manifest", err)
	}
	if m == nil {
		return nil, apperr.NotFound("manifest %s not found", id)
	}
	return m, nil
}

// List returns manifests newest first. status "" or "all" disables the filter.
func (s *ManifestService) List(ctx context.Context, status string, limit int) ([]models.Manifest, error) {
	var filter *models.ManifestStatus
	if st := strings.TrimSpace(status); st != "" && !strings.EqualFold(st, "all") {
		var parsed models.ManifestStatus
		switch {
		case strings.EqualFold(st, string(models.ManifestStatusOpen)):
			parsed = models.ManifestStatusOpen
		case strings.EqualFold(st, string(models.ManifestStatusClosed)):
			parsed = models.ManifestStatusClosed
		default:
			return nil, apperr.Validation("unknown manifest status %q", status)
		}
		filter = &parsed
	}
	out, err := s.store.Manifests.List(ctx, filter, limit)
	if err != nil {
		return nil, storageErr("list manifests", err)
	}
	if out == nil {
		out = []models.Manifest{}
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(want []string, found []models.Shipment) []string {
	have := make(map[string]struct{}, len(found))
	for _, sh := range found {
		have[sh.ID] = struct{}{}
	}
	var out []string
	for _, id := range want {
		if _, ok := have[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

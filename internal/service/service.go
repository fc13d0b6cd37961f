// Package service holds the shipment, pickup and manifest lifecycle managers
// and the audit recorder. Every mutating operation runs its data writes and
// its audit entry in one repository.Store transaction and publishes a
// lifecycle event only after that transaction has committed.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lmdPortal/internal/apperr"
	"lmdPortal/internal/auth"
	"lmdPortal/internal/db"
	"lmdPortal/internal/events"
	"lmdPortal/repository"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Store  *repository.Store
	Events events.Publisher
	Log    *zap.Logger
	Now    func() time.Time // defaults to time.Now in UTC
}

// Services bundles the managers exposed to the transports.
type Services struct {
	Shipments *ShipmentService
	Pickups   *PickupService
	Manifests *ManifestService
	Riders    *RiderService
	Audit     *AuditService
	Dashboard *DashboardService
}

// New wires every service over the same dependencies.
func New(d Deps) *Services {
	b := newBase(d)
	return &Services{
		Shipments: &ShipmentService{base: b},
		Pickups:   &PickupService{base: b},
		Manifests: &ManifestService{base: b},
		Riders:    &RiderService{base: b},
		Audit:     &AuditService{base: b},
		Dashboard: &DashboardService{base: b},
	}
}

type base struct {
	store  *repository.Store
	events events.Publisher
	log    *zap.Logger
	now    func() time.Time
}

func newBase(d Deps) base {
	b := base{store: d.Store, events: d.Events, log: d.Log, now: d.Now}
	if b.events == nil {
		b.events = events.Nop{}
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	if b.now == nil {
		b.now = func() time.Time { return time.Now().UTC() }
	}
	return b
}

// requireActor rejects anonymous mutations.
func requireActor(a auth.Actor) error {
	if strings.TrimSpace(a.ID) == "" {
		return apperr.Forbidden("an authenticated actor is required")
	}
	return nil
}

// storageErr wraps a raw storage failure as Internal, leaving coded errors
// (typically returned from inside a transaction) untouched.
func storageErr(msg string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if db.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeConflict, msg+": duplicate value", err)
	}
	return apperr.Wrap(apperr.CodeInternal, msg, err)
}

// record appends one audit entry through tx.
func (b base) record(ctx context.Context, tx *repository.Store, a auth.Actor, action, entityType, entityID, details string) error {
	return auditEntry(ctx, tx, b.now(), a, action, entityType, entityID, details)
}

// publish sends a lifecycle event. Failures are logged and never returned.
func (b base) publish(ctx context.Context, key string, msg events.Message) {
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = b.now()
	}
	if err := b.events.Publish(ctx, key, msg); err != nil {
		b.log.Warn("publish event failed",
			zap.String("routingKey", key),
			zap.String("entityId", msg.EntityID),
			zap.Error(err))
	}
}

// shortCode returns n upper-case alphanumerics.
func shortCode(n int) string {
	s := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return s[:n]
}

func newAWB(now time.Time) string {
	return fmt.Sprintf("AWB-%d-%s", now.UnixMilli(), shortCode(7))
}

func newRequestID(now time.Time) string {
	return fmt.Sprintf("REQ-%d-%s", now.UnixMilli(), shortCode(5))
}

func newManifestRef() string {
	return fmt.Sprintf("MAN-%06d", 100000+rand.IntN(900000))
}

// PageMeta describes one page of a paginated list.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

func pageMeta(total int64, page, limit int) PageMeta {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PageMeta{Total: total, Page: page, Limit: limit, TotalPages: pages}
}

func trimmed(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return strings.TrimSpace(*p), true
}

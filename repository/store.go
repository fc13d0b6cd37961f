package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	queryTimeout = 3 * time.Second // single-row reads and writes
	listTimeout  = 5 * time.Second // list and aggregate queries

	defaultPageSize = 20
	maxPageSize     = 100
	maxPage         = 1_000_000 // keeps (page-1)*limit well inside int range
)

// Store bundles the repositories that share one database handle. A Store
// created inside Transaction binds every repository to that transaction.
type Store struct {
	db *gorm.DB

	Shipments  *ShipmentRepository
	Pickups    *PickupRepository
	Manifests  *ManifestRepository
	Riders     *RiderRepository
	Audit      *AuditRepository
	APIHistory *APIHistoryRepository
}

// NewStore creates a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		Shipments:  NewShipmentRepository(db),
		Pickups:    NewPickupRepository(db),
		Manifests:  NewManifestRepository(db),
		Riders:     NewRiderRepository(db),
		Audit:      NewAuditRepository(db),
		APIHistory: NewAPIHistoryRepository(db),
	}
}

// Transaction runs fn inside a single database transaction. Any error
// returned by fn (or a panic) rolls back every write made through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// DB exposes the underlying handle for wiring and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func withTimeout(ctx context.Context, db *gorm.DB, d time.Duration) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, d)
	return db.WithContext(ctx), cancel
}

// notFoundAsNil converts gorm's missing-row error into the (nil, nil)
// lookup convention used across the repositories.
func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

func clampPage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// recentLimit bounds log listings, which default to the largest page.
func recentLimit(limit int) int {
	if limit <= 0 || limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// likePattern builds a case-insensitive substring pattern, escaping LIKE
// wildcards in the user input. Use with `LIKE ? ESCAPE '\'`.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

type statusCount struct {
	Status string
	N      int64
}

func countByStatus(ctx context.Context, db *gorm.DB, model any) (map[string]int64, error) {
	q, cancel := withTimeout(ctx, db, listTimeout)
	defer cancel()
	var rows []statusCount
	if err := q.Model(model).Select("status, count(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Pruner deletes API-history entries older than a retention window.
type Pruner interface {
	PruneAPIHistory(ctx context.Context, retention time.Duration) (int64, error)
}

// HistoryPruneWorker enforces the API-history retention window.
type HistoryPruneWorker struct {
	pruner    Pruner
	retention time.Duration
	schedule  string
	log       *zap.Logger
	busy      atomic.Bool
}

func NewHistoryPruneWorker(log *zap.Logger, pruner Pruner, schedule string, retention time.Duration) *HistoryPruneWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryPruneWorker{pruner: pruner, retention: retention, schedule: schedule, log: log}
}

func (w *HistoryPruneWorker) Name() string { return "api-history-prune" }

func (w *HistoryPruneWorker) Schedule() string { return w.schedule }

func (w *HistoryPruneWorker) Ready(time.Time) bool { return !w.busy.Load() }

func (w *HistoryPruneWorker) Execute(ctx context.Context) {
	if !w.busy.CompareAndSwap(false, true) {
		return
	}
	defer w.busy.Store(false)

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	n, err := w.pruner.PruneAPIHistory(ctx, w.retention)
	if err != nil {
		w.log.Error("prune api history failed", zap.Error(err))
		return
	}
	w.log.Info("api history pruned", zap.Int64("deleted", n), zap.Duration("retention", w.retention))
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Worker is a periodic job run by the Orchestrator.
type Worker interface {
	Name() string
	Schedule() string
	Ready(now time.Time) bool
	Execute(ctx context.Context)
}

// Orchestrator runs workers on their cron schedules.
type Orchestrator struct {
	workers []Worker
	log     *zap.Logger
}

func NewOrchestrator(log *zap.Logger, workers ...Worker) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{workers: workers, log: log}
}

// Start schedules every worker and returns a stop function that waits for
// running jobs until ctx expires.
func (o *Orchestrator) Start(ctx context.Context) (func(context.Context) error, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(zap.NewStdLog(o.log)))))

	for _, worker := range o.workers {
		w := worker
		_, err := c.AddFunc(w.Schedule(), func() {
			if !w.Ready(time.Now()) {
				o.log.Debug("worker busy, skipping run", zap.String("worker", w.Name()))
				return
			}
			w.Execute(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("schedule worker %s: %w", w.Name(), err)
		}
		o.log.Info("worker scheduled", zap.String("worker", w.Name()), zap.String("schedule", w.Schedule()))
	}

	c.Start()
	return func(stopCtx context.Context) error {
		select {
		case <-c.Stop().Done():
			return nil
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}, nil
}

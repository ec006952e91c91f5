package services

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher runs fire-and-forget engine tasks (purchase after funding,
// refund sweeps, scheduled retries) as supervised goroutines: panics
// are recovered and failures logged instead of silently lost. Tasks
// inherit the dispatcher's base context so process shutdown reaches
// them.
type Dispatcher struct {
	ctx context.Context
	log *zap.Logger
	wg  sync.WaitGroup
}

func NewDispatcher(ctx context.Context, log *zap.Logger) *Dispatcher {
	return &Dispatcher{ctx: ctx, log: log}
}

func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("background task panicked",
					zap.String("task", name),
					zap.Any("panic", r),
				)
			}
		}()

		if err := fn(d.ctx); err != nil {
			d.log.Error("background task failed",
				zap.String("task", name),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until all dispatched tasks return. Called on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

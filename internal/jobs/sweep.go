// Package jobs runs the service's scheduled background work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/order"

	"github.com/robfig/cron/v3"
)

type Sweeper interface {
	AllocatePending(ctx context.Context) (order.SweepSummary, error)
}

// NewSweepScheduler registers the pending-allocation sweep on schedule, a
// five-field cron expression or a descriptor such as "@every 10m".
// Overlapping runs are skipped. The caller starts and stops the scheduler.
func NewSweepScheduler(schedule string, timeout time.Duration, sweeper Sweeper, log *logger.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))))

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		log.Info("CRON", "Starting pending allocation sweep")
		summary, err := sweeper.AllocatePending(ctx)
		if err != nil {
			log.Error("CRON", fmt.Sprintf("Pending allocation sweep failed: %v", err))
			return
		}
		if summary.Fulfilled > 0 || summary.Pending > 0 {
			log.Info("CRON", fmt.Sprintf("Sweep fulfilled %d orders, %d still waiting for codes", summary.Fulfilled, summary.Pending))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}
	return c, nil
}

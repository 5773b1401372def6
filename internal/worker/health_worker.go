package worker

import (
	"context"
	"time"

	"todoTracker/internal/logger"

	"go.uber.org/zap"
)

type HealthChecker interface {
	HealthCheck(context.Context) error
}

// HealthWorker pings the store on an interval and logs when it goes down or
// comes back.
type HealthWorker struct {
	target   HealthChecker
	interval time.Duration
	timeout  time.Duration

	healthy bool
}

func NewHealthWorker(target HealthChecker, interval time.Duration) *HealthWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HealthWorker{
		target:   target,
		interval: interval,
		timeout:  min(interval, 5*time.Second),
		healthy:  true,
	}
}

// Start blocks until ctx is cancelled.
func (w *HealthWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Health checks stopping")
			return
		}
	}
}

// Check runs one probe and reports whether the store answered.
func (w *HealthWorker) Check(ctx context.Context) bool {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	err := w.target.HealthCheck(checkCtx)
	switch {
	case err != nil && w.healthy:
		logger.Error("Worker: Store became unavailable", err, zap.Duration("ms", time.Since(start)))
	case err != nil:
		logger.Warn("Worker: Store still unavailable", zap.Error(err))
	case !w.healthy:
		logger.Info("Worker: Store is available again", zap.Duration("ms", time.Since(start)))
	default:
		logger.Debug("Worker: Store is healthy", zap.Duration("ms", time.Since(start)))
	}

	w.healthy = err == nil
	return w.healthy
}

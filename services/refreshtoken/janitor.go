package refreshtoken

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tech-arch1tect/tokenguard/services/logging"
	"go.uber.org/zap"
)

const purgeTimeout = 30 * time.Second

// Janitor deletes expired and revoked records. It can run once on demand or
// as a background worker on a fixed interval.
type Janitor struct {
	store    Store
	clock    clock.Clock
	interval time.Duration
	logger   *logging.Service

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

func NewJanitor(store Store, clk clock.Clock, interval time.Duration, logger *logging.Service) *Janitor {
	if clk == nil {
		clk = clock.New()
	}
	return &Janitor{
		store:    store,
		clock:    clk,
		interval: interval,
		logger:   logger,
	}
}

func (j *Janitor) PurgeExpiredOrRevoked(ctx context.Context) (int64, error) {
	n, err := j.store.DeleteExpiredOrRevoked(ctx, j.clock.Now())
	if err != nil {
		j.logger.Error("failed to purge refresh tokens", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		j.logger.Info("purged refresh tokens", zap.Int64("deleted", n))
	} else {
		j.logger.Debug("no refresh tokens to purge")
	}
	return n, nil
}

// Start launches the background worker. It is a no-op when the interval is
// not positive or the worker is already running.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.interval <= 0 || j.stop != nil {
		return
	}

	j.stop = make(chan struct{})
	j.stopped = make(chan struct{})
	ticker := j.clock.Ticker(j.interval)

	j.logger.Info("starting refresh token cleanup worker", zap.Duration("interval", j.interval))

	go func(stop <-chan struct{}, stopped chan<- struct{}) {
		defer close(stopped)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
				_, _ = j.PurgeExpiredOrRevoked(ctx)
				cancel()
			case <-stop:
				return
			}
		}
	}(j.stop, j.stopped)
}

// Stop halts the worker and waits for an in-flight purge to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	stop, stopped := j.stop, j.stopped
	j.stop, j.stopped = nil, nil
	j.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
	j.logger.Info("refresh token cleanup worker stopped")
}

func (j *Janitor) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stop != nil
}

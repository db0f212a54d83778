package metrics

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Refresher runs one refresh cycle
type Refresher interface {
	RunCycle(ctx context.Context) error
}

// Health states reported by Status.State
const (
	StateStarting = "starting"
	StateOK       = "ok"
	StateDegraded = "degraded"
)

// Status describes the outcome of recent refresh cycles
type Status struct {
	Cycles      int64     `json:"cycles"`
	Failures    int64     `json:"failures"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at"`
}

// State summarises the status for health checks
func (s Status) State() string {
	switch {
	case s.Cycles == 0:
		return StateStarting
	case !s.LastErrorAt.IsZero() && s.LastErrorAt.After(s.LastSuccess):
		return StateDegraded
	default:
		return StateOK
	}
}

// Collector periodically runs refresh cycles on a single goroutine. Cycles
// never overlap: a tick that fires during a cycle is dropped.
type Collector struct {
	refresher Refresher
	metrics   *Metrics
	interval  time.Duration
	logger    *zap.Logger

	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool

	mu     sync.RWMutex
	status Status
}

// NewCollector creates a collector running refresher every interval
func NewCollector(refresher Refresher, m *Metrics, interval time.Duration, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		refresher: refresher,
		metrics:   m,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins periodic collection. The first cycle runs immediately.
// Cancelling ctx stops scheduling new cycles but does not interrupt the
// cycle in flight. Calls after the first are no-ops.
func (c *Collector) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.started.Store(true)
		c.run(ctx)
	})
}

func (c *Collector) run(ctx context.Context) {
	cycleCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(c.doneCh)

		// Initial collection
		_ = c.CollectOnce(cycleCtx)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = c.CollectOnce(cycleCtx)
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the collector and waits for an in-flight cycle to finish
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	if c.started.Load() {
		<-c.doneCh
	}
}

// Done is closed once the collection loop has exited
func (c *Collector) Done() <-chan struct{} {
	return c.doneCh
}

// CollectOnce runs a single refresh cycle and records its outcome. Errors and
// panics are logged and returned; they never stop the loop.
func (c *Collector) CollectOnce(ctx context.Context) (err error) {
	cycleID := uuid.NewString()
	logger := c.logger.With(zap.String("cycle_id", cycleID))
	start := time.Now()
	logger.Info("Starting metrics fetch cycle")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh cycle panicked: %v", r)
		}

		duration := time.Since(start)
		if c.metrics != nil {
			c.metrics.RecordRefresh(duration, err)
		}
		c.recordStatus(err)

		if err != nil {
			logger.Error("Error during metrics fetch", zap.Duration("duration", duration), zap.Error(err))
			return
		}
		logger.Info("Metrics fetch cycle completed", zap.Duration("duration", duration))
	}()

	return c.refresher.RunCycle(ctx)
}

// Status returns a snapshot of the collector status
func (c *Collector) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Collector) recordStatus(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.status.Cycles++
	if err != nil {
		c.status.Failures++
		c.status.LastError = err.Error()
		c.status.LastErrorAt = now
		return
	}
	c.status.LastSuccess = now
}

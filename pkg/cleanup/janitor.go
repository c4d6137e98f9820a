// Package cleanup runs retention deletes for expired records
package cleanup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var (
	// ErrJanitorStopped is returned when the janitor is stopped
	ErrJanitorStopped = errors.New("janitor stopped")

	// ErrJanitorAlreadyRunning is returned when trying to start an already running janitor
	ErrJanitorAlreadyRunning = errors.New("janitor already running")
)

const (
	// DefaultInterval is the default gap between cleanup cycles
	DefaultInterval = 15 * time.Minute

	// DefaultBatchSize is the number of rows deleted per batch
	DefaultBatchSize = 100

	// DefaultLockTTL is the TTL for the cleanup lock
	DefaultLockTTL = 5 * time.Minute

	// lockKey coordinates cleanup across service instances
	lockKey = "cleanup:janitor"
)

// ExpiredStore deletes a bounded batch of expired records
type ExpiredStore interface {
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// Config holds configuration for the janitor
type Config struct {
	// Interval is how often a cleanup cycle runs
	Interval time.Duration

	// BatchSize bounds each delete statement
	BatchSize int

	// LockTTL is how long the distributed lock is held
	LockTTL time.Duration
}

// DefaultConfig returns the default janitor configuration
func DefaultConfig() Config {
	return Config{
		Interval:  DefaultInterval,
		BatchSize: DefaultBatchSize,
		LockTTL:   DefaultLockTTL,
	}
}

// Janitor periodically purges expired alert events and history entries.
// Every pass is idempotent, a rerun over already purged data deletes zero
// rows and succeeds.
type Janitor struct {
	alerts  ExpiredStore
	history ExpiredStore
	locker  *redis.Locker
	config  Config
	logger  ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewJanitor creates a new cleanup janitor
func NewJanitor(alerts, history ExpiredStore, locker *redis.Locker, config Config, logger ectologger.Logger) *Janitor {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}

	return &Janitor{
		alerts:   alerts,
		history:  history,
		locker:   locker,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// Start starts the janitor
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return ErrJanitorAlreadyRunning
	}
	j.running = true
	j.mu.Unlock()

	j.logger.WithContext(ctx).Infof("Starting cleanup janitor: interval=%s batch_size=%d",
		j.config.Interval, j.config.BatchSize)

	go j.pollLoop(ctx)

	return nil
}

// Stop stops the janitor gracefully
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = false
	j.mu.Unlock()

	j.logger.WithContext(ctx).Info("Stopping cleanup janitor...")

	close(j.stopCh)

	select {
	case <-j.stoppedC:
		j.logger.WithContext(ctx).Info("Cleanup janitor stopped gracefully")
	case <-ctx.Done():
		j.logger.WithContext(ctx).Warn("Cleanup janitor shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the janitor is running
func (j *Janitor) IsRunning() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.running
}

func (j *Janitor) pollLoop(ctx context.Context) {
	defer close(j.stoppedC)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.runCycle(ctx)

	for {
		select {
		case <-j.stopCh:
			j.logger.WithContext(ctx).Debug("Cleanup poll loop stopping")
			return
		case <-ticker.C:
			j.runCycle(ctx)
		}
	}
}

// runCycle runs one cleanup cycle under the distributed lock so only one
// instance purges at a time
func (j *Janitor) runCycle(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "cleanup.Janitor.runCycle")
	defer span.End()

	lock, err := j.locker.Acquire(ctx, lockKey, j.config.LockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			j.logger.WithContext(ctx).Debug("Another instance holds the cleanup lock")
			return
		}
		j.logger.WithContext(ctx).WithError(err).Error("Failed to acquire cleanup lock")
		return
	}
	defer lock.Release(ctx)

	now := time.Now().UTC()

	if _, err := j.CleanupExpiredAlerts(ctx, now); err != nil {
		j.logger.WithContext(ctx).WithError(err).Error("Alert cleanup pass failed")
	}
	if _, err := j.CleanupExpiredHistory(ctx, now); err != nil {
		j.logger.WithContext(ctx).WithError(err).Error("History cleanup pass failed")
	}
}

// CleanupExpiredAlerts purges expired alert events in bounded batches
func (j *Janitor) CleanupExpiredAlerts(ctx context.Context, now time.Time) (*models.CleanupResult, error) {
	ctx, span := tracing.StartSpan(ctx, "cleanup.Janitor.CleanupExpiredAlerts")
	defer span.End()

	deleted, err := j.drain(ctx, j.alerts, now)
	if err != nil {
		return nil, err
	}

	metrics.RecordCleanup("alerts", deleted)
	if deleted > 0 {
		j.logger.WithContext(ctx).Infof("Purged %d expired alert events", deleted)
	}

	return &models.CleanupResult{Deleted: deleted}, nil
}

// CleanupExpiredHistory purges expired history entries in bounded batches
func (j *Janitor) CleanupExpiredHistory(ctx context.Context, now time.Time) (*models.CleanupResult, error) {
	ctx, span := tracing.StartSpan(ctx, "cleanup.Janitor.CleanupExpiredHistory")
	defer span.End()

	deleted, err := j.drain(ctx, j.history, now)
	if err != nil {
		return nil, err
	}

	metrics.RecordCleanup("history", deleted)
	if deleted > 0 {
		j.logger.WithContext(ctx).Infof("Purged %d expired history entries", deleted)
	}

	return &models.CleanupResult{Deleted: deleted}, nil
}

// drain deletes batches until a batch comes back short, keeping each
// statement bounded regardless of backlog size
func (j *Janitor) drain(ctx context.Context, store ExpiredStore, now time.Time) (int64, error) {
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		deleted, err := store.DeleteExpired(ctx, now, j.config.BatchSize)
		if err != nil {
			return total, err
		}
		total += deleted

		if deleted < int64(j.config.BatchSize) {
			return total, nil
		}
	}
}

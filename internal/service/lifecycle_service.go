package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/lock"
	"github.com/prn-tf/amethyst-cdn/internal/metrics"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
	"github.com/prn-tf/amethyst-cdn/internal/storage"
)

// Sweep names used in logs and metrics.
const (
	SweepExpire = "expire"
	SweepPurge  = "purge"
)

// LifecycleService removes expired content and index entries whose stored
// object has disappeared.
type LifecycleService struct {
	contentRepo repository.ContentRepository
	backend     storage.Backend
	locker      lock.Locker
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	config      LifecycleConfig
	now         func() time.Time

	// Scheduler control
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// LifecycleConfig contains lifecycle service configuration.
type LifecycleConfig struct {
	// ExpireInterval is how often the expiry sweep runs.
	ExpireInterval time.Duration

	// PurgeInterval is how often the purge sweep runs.
	PurgeInterval time.Duration

	// BatchSize is the number of index entries read per query.
	BatchSize int
}

// DefaultLifecycleConfig returns sensible defaults.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		ExpireInterval: 15 * time.Second,
		PurgeInterval:  5 * time.Minute,
		BatchSize:      500,
	}
}

// NewLifecycleService creates a new lifecycle service.
func NewLifecycleService(
	contentRepo repository.ContentRepository,
	backend storage.Backend,
	locker lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config LifecycleConfig,
) *LifecycleService {
	defaults := DefaultLifecycleConfig()
	if config.ExpireInterval <= 0 {
		config.ExpireInterval = defaults.ExpireInterval
	}
	if config.PurgeInterval <= 0 {
		config.PurgeInterval = defaults.PurgeInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if locker == nil {
		locker = lock.NewNoOpLocker()
	}

	return &LifecycleService{
		contentRepo: contentRepo,
		backend:     backend,
		locker:      locker,
		metrics:     m,
		logger:      logger.With().Str("service", "lifecycle").Logger(),
		config:      config,
		now:         time.Now,
	}
}

// SweepResult contains the result of one sweep run.
type SweepResult struct {
	// Scanned is the number of index entries examined.
	Scanned int

	// Removed is the number of index entries deleted.
	Removed int

	// Errors is the number of entries that could not be processed.
	Errors int

	// Skipped is true when another instance held the sweep lock.
	Skipped bool

	Duration time.Duration
}

// Start begins both sweep schedulers. Each sweep runs once immediately.
func (s *LifecycleService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info().
		Dur("expire_interval", s.config.ExpireInterval).
		Dur("purge_interval", s.config.PurgeInterval).
		Int("batch_size", s.config.BatchSize).
		Msg("Starting lifecycle sweeps")

	s.wg.Add(2)
	go s.runLoop(s.config.ExpireInterval, s.ExpireOnce)
	go s.runLoop(s.config.PurgeInterval, s.PurgeOnce)
}

// Stop stops the schedulers and waits for in-flight sweeps to finish.
func (s *LifecycleService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info().Msg("Lifecycle sweeps stopped")
}

// runLoop runs sweep now and then on every tick until Stop.
func (s *LifecycleService) runLoop(interval time.Duration, sweep func(context.Context) SweepResult) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweep(ctx)
		case <-s.stopChan:
			return
		}
	}
}

// ExpireOnce removes every entry whose expiry is before now, together with its
// stored object. Entries without an expiry are never read.
func (s *LifecycleService) ExpireOnce(ctx context.Context) SweepResult {
	return s.withLock(ctx, SweepExpire, lock.Keys.ExpireSweep(), s.config.ExpireInterval, s.expire)
}

// PurgeOnce removes every entry whose stored object is missing.
func (s *LifecycleService) PurgeOnce(ctx context.Context) SweepResult {
	return s.withLock(ctx, SweepPurge, lock.Keys.PurgeSweep(), s.config.PurgeInterval, s.purge)
}

func (s *LifecycleService) expire(ctx context.Context, result *SweepResult) {
	before := s.now().UTC()

	for ctx.Err() == nil {
		batch, err := s.contentRepo.ListExpired(ctx, before, s.config.BatchSize)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to list expired content")
			result.Errors++
			return
		}
		if len(batch) == 0 {
			return
		}

		removed := 0
		for _, entry := range batch {
			result.Scanned++
			s.logger.Warn().Str("key", entry.Key()).Str("file", entry.File).Msg("EXPIRE")

			if err := s.backend.Remove(ctx, storageKey(entry)); err != nil {
				s.logger.Debug().Err(err).Str("key", entry.Key()).Msg("failed to remove expired content")
			}
			if err := s.contentRepo.Delete(ctx, entry.Namespace, entry.ContentID); err != nil && !errors.Is(err, domain.ErrContentNotFound) {
				s.logger.Error().Err(err).Str("key", entry.Key()).Msg("Failed to delete expired index entry")
				result.Errors++
				continue
			}
			removed++
		}
		result.Removed += removed

		// A batch that removed nothing would be listed again.
		if removed == 0 || len(batch) < s.config.BatchSize {
			return
		}
	}
}

func (s *LifecycleService) purge(ctx context.Context, result *SweepResult) {
	after := ""

	for ctx.Err() == nil {
		batch, err := s.contentRepo.ListAfter(ctx, after, s.config.BatchSize)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to list index entries")
			result.Errors++
			return
		}
		if len(batch) == 0 {
			return
		}

		for _, entry := range batch {
			result.Scanned++

			exists, err := s.backend.Exists(ctx, storageKey(entry))
			if err != nil && !errors.Is(err, storage.ErrInvalidKey) {
				s.logger.Error().Err(err).Str("key", entry.Key()).Msg("Failed to check stored content")
				result.Errors++
				continue
			}
			if exists {
				continue
			}

			s.logger.Warn().Str("key", entry.Key()).Str("file", entry.File).Msg("MISSING_FILE")
			if err := s.contentRepo.Delete(ctx, entry.Namespace, entry.ContentID); err != nil && !errors.Is(err, domain.ErrContentNotFound) {
				s.logger.Error().Err(err).Str("key", entry.Key()).Msg("Failed to delete orphaned index entry")
				result.Errors++
				continue
			}
			result.Removed++
		}

		after = batch[len(batch)-1].Key()
		if len(batch) < s.config.BatchSize {
			return
		}
	}
}

// withLock runs sweep while holding key, and records the result.
func (s *LifecycleService) withLock(
	ctx context.Context,
	name, key string,
	interval time.Duration,
	sweep func(context.Context, *SweepResult),
) SweepResult {
	start := time.Now()
	result := SweepResult{}

	acquired, err := s.locker.Acquire(ctx, key, lockTTL(interval))
	if err != nil {
		s.logger.Error().Err(err).Str("sweep", name).Msg("Failed to acquire sweep lock")
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}
	if !acquired {
		s.logger.Debug().Str("sweep", name).Msg("Sweep lock held by another process, skipping run")
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}
	defer func() {
		if _, err := s.locker.Release(context.Background(), key); err != nil {
			s.logger.Error().Err(err).Str("sweep", name).Msg("Failed to release sweep lock")
		}
	}()

	sweep(ctx, &result)
	result.Duration = time.Since(start)

	s.metrics.ObserveSweep(name, result.Removed, result.Errors, result.Duration)

	if result.Removed > 0 || result.Errors > 0 {
		s.logger.Info().
			Str("sweep", name).
			Int("scanned", result.Scanned).
			Int("removed", result.Removed).
			Int("errors", result.Errors).
			Dur("duration", result.Duration).
			Msg("Sweep completed")
	} else {
		s.logger.Debug().
			Str("sweep", name).
			Int("scanned", result.Scanned).
			Dur("duration", result.Duration).
			Msg("Sweep completed, nothing removed")
	}

	return result
}

// lockTTL outlives a normal sweep but frees the lock if the holder dies.
func lockTTL(interval time.Duration) time.Duration {
	ttl := 2 * interval
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

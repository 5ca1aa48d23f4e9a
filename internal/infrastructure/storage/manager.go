package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"portal-api/internal/infrastructure/metrics"
	"portal-api/internal/utils/platformerrors"
)

// OpenFunc opens a backend.
type OpenFunc func(ctx context.Context) (*Backend, error)

// Manager opens the backend on first use. Concurrent callers share one
// attempt; after a failure no new attempt starts until the cooldown passes.
type Manager struct {
	name     string
	open     OpenFunc
	cooldown time.Duration
	log      zerolog.Logger
	now      func() time.Time

	group    singleflight.Group
	mu       sync.RWMutex
	backend  *Backend
	lastErr  error
	failedAt time.Time
}

// NewManager wraps open. name labels metrics and logs.
func NewManager(name string, open OpenFunc, cooldown time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		name:     name,
		open:     open,
		cooldown: cooldown,
		log:      log.With().Str("component", "storage").Str("backend", name).Logger(),
		now:      time.Now,
	}
}

// Backend returns the open backend, opening it if needed.
func (m *Manager) Backend(ctx context.Context) (*Backend, error) {
	m.mu.RLock()
	backend, lastErr, failedAt := m.backend, m.lastErr, m.failedAt
	m.mu.RUnlock()

	if backend != nil {
		return backend, nil
	}
	if lastErr != nil && m.now().Sub(failedAt) < m.cooldown {
		return nil, notInitialized(ctx, lastErr)
	}

	v, err, _ := m.group.Do("open", func() (any, error) {
		m.mu.RLock()
		if m.backend != nil {
			defer m.mu.RUnlock()
			return m.backend, nil
		}
		m.mu.RUnlock()

		opened, err := m.open(context.WithoutCancel(ctx))

		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			m.lastErr = err
			m.failedAt = m.now()
			metrics.RecordStorageInitFailure(m.name)
			m.log.Error().Err(err).Dur("retry_after", m.cooldown).Msg("storage initialization failed")
			return nil, err
		}
		m.backend = opened
		m.lastErr = nil
		m.log.Info().Msg("storage initialized")
		return opened, nil
	})
	if err != nil {
		return nil, notInitialized(ctx, err)
	}
	return v.(*Backend), nil
}

// Ready reports whether the backend is usable, opening it if needed.
func (m *Manager) Ready(ctx context.Context) error {
	_, err := m.Backend(ctx)
	return err
}

// Close closes the backend if it was opened.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backend == nil {
		return nil
	}
	err := m.backend.Close()
	m.backend = nil
	return err
}

func notInitialized(ctx context.Context, cause error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeInternal, "storage not initialized", cause)
}

package monitor

import (
	"context"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pinger is a dependency whose reachability is tracked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger adapts a go-redis client to Pinger.
type RedisPinger struct {
	Client redislib.UniversalClient
}

func (p RedisPinger) Ping(ctx context.Context) error {
	if p.Client == nil {
		return redislib.ErrClosed
	}
	return p.Client.Ping(ctx).Err()
}

// BufferStats reports pending offline writes.
type BufferStats interface {
	Size() int
	Pending() map[string]int
}

// RealtimeStats reports hub activity.
type RealtimeStats interface {
	Subscribers() int
	Dropped() uint64
}

// Dependencies lists what the monitor checks. Nil members are reported down.
type Dependencies struct {
	Postgres Pinger
	Redis    Pinger
	Buffer   BufferStats
	Realtime RealtimeStats
}

type Monitor struct {
	deps Dependencies

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(deps Dependencies, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		deps:     deps,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	m.Refresh()
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether Postgres answered the last probe. Buffered
// writes are only replayed while it does.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.PostgreSQL
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh probes every dependency once.
func (m *Monitor) Refresh() {
	status := Status{
		PostgreSQL: m.ping("postgres", m.deps.Postgres, 3*time.Second),
		Redis:      m.ping("redis", m.deps.Redis, 2*time.Second),
		LastCheck:  time.Now(),
	}
	if m.deps.Buffer != nil {
		status.Buffer = true
		status.BufferSize = m.deps.Buffer.Size()
		status.BufferPending = m.deps.Buffer.Pending()
	}
	if m.deps.Realtime != nil {
		status.Subscribers = m.deps.Realtime.Subscribers()
		status.DroppedEvents = m.deps.Realtime.Dropped()
	}

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if !previous.LastCheck.IsZero() && previous.PostgreSQL != status.PostgreSQL {
		m.logger.Warn("postgres connectivity changed", zap.Bool("online", status.PostgreSQL))
	}
}

func (m *Monitor) ping(name string, p Pinger, timeout time.Duration) bool {
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		m.logger.Debug("dependency ping failed", zap.String("dependency", name), zap.Error(err))
		return false
	}
	return true
}

package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ctagard/brs-dap/internal/deploy"
	"github.com/ctagard/brs-dap/internal/device"
	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/pkg/types"
)

// Manager tracks the live sessions of the server, one per IDE connection.
type Manager struct {
	sessions map[string]*Controller
	mu       sync.RWMutex

	maxSessions    int
	sessionTimeout time.Duration

	deployer deploy.Deployer
	registry *device.Registry
	adapter  string
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	MaxSessions int
	// SessionTimeout ends sessions idle for longer. Zero disables it.
	SessionTimeout time.Duration
	Deployer       deploy.Deployer
	Registry       *device.Registry
	// Adapter names the registry entry used for new sessions.
	Adapter string
	Logger  *slog.Logger
}

// NewManager creates a manager and starts its idle-session sweeper.
func NewManager(opts ManagerOptions) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions:       make(map[string]*Controller),
		maxSessions:    opts.MaxSessions,
		sessionTimeout: opts.SessionTimeout,
		deployer:       opts.Deployer,
		registry:       opts.Registry,
		adapter:        opts.Adapter,
		logger:         opts.Logger,
		ctx:            ctx,
		cancel:         cancel,
	}
	if m.registry == nil {
		m.registry = device.NewRegistry()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	if m.sessionTimeout > 0 {
		go m.cleanupLoop(time.Minute)
	}
	return m
}

// cleanupLoop periodically ends idle sessions
func (m *Manager) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpiredSessions(time.Now())
		}
	}
}

// cleanupExpiredSessions disconnects sessions idle since before now minus
// the timeout. A session whose program is executing on the device is never
// idle.
func (m *Manager) cleanupExpiredSessions(now time.Time) {
	m.mu.RLock()
	var expired []*Controller
	for _, c := range m.sessions {
		if executing(c.State()) {
			continue
		}
		if now.Sub(c.LastActivity()) > m.sessionTimeout {
			expired = append(expired, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range expired {
		m.logger.Info("ending idle session", "session_id", c.ID(), "timeout", m.sessionTimeout)
		c.advise("Session idle for more than %s, disconnecting.", m.sessionTimeout)
		_ = c.Disconnect(m.ctx)
	}
}

// CreateSession creates an Idle session. It is removed from the manager
// once it terminates.
func (m *Manager) CreateSession() (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		return nil, errors.SessionLimitReached(m.maxSessions)
	}

	// resolved at launch so a missing adapter only fails the launch
	name := m.adapter
	dialer := func(cfg *types.LaunchConfig, logger *slog.Logger) (device.Adapter, error) {
		d, err := m.registry.Get(name)
		if err != nil {
			return nil, err
		}
		return d(cfg, logger)
	}

	c := NewController(Options{
		ID:       uuid.New().String(),
		Deployer: m.deployer,
		Dialer:   dialer,
		Logger:   m.logger,
	})
	m.sessions[c.ID()] = c

	go func() {
		<-c.Done()
		m.mu.Lock()
		delete(m.sessions, c.ID())
		m.mu.Unlock()
	}()

	return c, nil
}

// GetSession retrieves a session by ID
func (m *Manager) GetSession(id string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.sessions[id]
	if !ok {
		return nil, errors.SessionNotFound(id)
	}
	return c, nil
}

// ListSessions returns info for every session, oldest first.
func (m *Manager) ListSessions() []types.SessionInfo {
	m.mu.RLock()
	list := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		list = append(list, c)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].createdAt.Before(list[j].createdAt) })

	out := make([]types.SessionInfo, len(list))
	for i, c := range list {
		out[i] = c.Info()
	}
	return out
}

// TerminateSession disconnects a session.
func (m *Manager) TerminateSession(ctx context.Context, id string) error {
	c, err := m.GetSession(id)
	if err != nil {
		return err
	}
	return c.Disconnect(ctx)
}

// Close shuts down the manager and all sessions
func (m *Manager) Close() {
	m.cancel()

	m.mu.RLock()
	list := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		list = append(list, c)
	}
	m.mu.RUnlock()

	for _, c := range list {
		if err := c.Disconnect(context.Background()); err != nil {
			m.logger.Warn("failed to disconnect session", "session_id", c.ID(), "error", err)
		}
	}
}

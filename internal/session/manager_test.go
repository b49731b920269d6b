package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/brs-dap/internal/deploy"
	"github.com/ctagard/brs-dap/internal/device"
	"github.com/ctagard/brs-dap/internal/device/devicetest"
	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/internal/log"
	"github.com/ctagard/brs-dap/pkg/types"
)

func newTestManager(t *testing.T, max int) *Manager {
	t.Helper()
	reg := device.NewRegistry()
	reg.Register("fake", devicetest.New().Dialer())
	m := NewManager(ManagerOptions{
		MaxSessions: max,
		Deployer:    deploy.NewLocalDeployer([]string{"manifest", "source/**/*"}, log.Discard()),
		Registry:    reg,
		Adapter:     "fake",
		Logger:      log.Discard(),
	})
	t.Cleanup(m.Close)
	return m
}

func TestManagerSessionLimit(t *testing.T) {
	m := newTestManager(t, 2)

	first, err := m.CreateSession()
	require.NoError(t, err)
	_, err = m.CreateSession()
	require.NoError(t, err)

	_, err = m.CreateSession()
	assert.True(t, errors.HasCode(err, errors.CodeSessionLimitReached))

	require.NoError(t, m.TerminateSession(context.Background(), first.ID()))
	require.Eventually(t, func() bool { return len(m.ListSessions()) == 1 }, time.Second, 5*time.Millisecond)

	_, err = m.CreateSession()
	assert.NoError(t, err)
}

func TestManagerGetSession(t *testing.T) {
	m := newTestManager(t, 4)

	c, err := m.CreateSession()
	require.NoError(t, err)

	got, err := m.GetSession(c.ID())
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = m.GetSession("missing")
	assert.True(t, errors.HasCode(err, errors.CodeSessionNotFound))

	err = m.TerminateSession(context.Background(), "missing")
	assert.True(t, errors.HasCode(err, errors.CodeSessionNotFound))
}

func TestManagerListSessionsOldestFirst(t *testing.T) {
	m := newTestManager(t, 4)

	var ids []string
	for range 3 {
		c, err := m.CreateSession()
		require.NoError(t, err)
		ids = append(ids, c.ID())
		time.Sleep(time.Millisecond)
	}

	list := m.ListSessions()
	require.Len(t, list, 3)
	for i, info := range list {
		assert.Equal(t, ids[i], info.SessionID)
		assert.Equal(t, types.SessionStateIdle, info.State)
	}
}

func TestManagerUnknownAdapterFailsLaunch(t *testing.T) {
	m := newTestManager(t, 1)
	m.adapter = "serial"

	c, err := m.CreateSession()
	require.NoError(t, err)
	h := newHarness(t, nil)

	err = c.Launch(context.Background(), h.config())
	assert.True(t, errors.HasCode(err, errors.CodeAdapterNotSupported))
	assert.Equal(t, types.SessionStateTerminated, c.State())
}

func TestManagerEndsIdleSessions(t *testing.T) {
	m := newTestManager(t, 4)
	m.sessionTimeout = time.Minute

	idle, err := m.CreateSession()
	require.NoError(t, err)
	surface := newRecorder()
	idle.Attach(surface)

	m.cleanupExpiredSessions(time.Now())
	assert.Equal(t, types.SessionStateIdle, idle.State())

	m.cleanupExpiredSessions(time.Now().Add(2 * time.Minute))
	surface.waitTerminated(t)
	assert.Contains(t, surface.output(), "idle for more than 1m0s")
	require.Eventually(t, func() bool { return len(m.ListSessions()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestManagerKeepsExecutingSessions(t *testing.T) {
	h := newHarness(t, nil)
	ecp := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	t.Cleanup(ecp.Close)
	d := deploy.NewLocalDeployer([]string{"manifest", "source/**/*"}, log.Discard())
	d.ControlURL = ecp.URL

	fake := devicetest.New()
	reg := device.NewRegistry()
	reg.Register("fake", fake.Dialer())
	m := NewManager(ManagerOptions{
		MaxSessions: 1,
		Deployer:    d,
		Registry:    reg,
		Adapter:     "fake",
		Logger:      log.Discard(),
	})
	t.Cleanup(m.Close)
	m.sessionTimeout = time.Minute

	c, err := m.CreateSession()
	require.NoError(t, err)
	surface := newRecorder()
	c.Attach(surface)
	require.NoError(t, c.Launch(context.Background(), h.config()))

	before := c.LastActivity()
	time.Sleep(2 * time.Millisecond)
	fake.Emit(device.ConsoleOutputEvent{Text: "playing\n"})
	require.Eventually(t, func() bool { return strings.Contains(surface.output(), "playing") },
		time.Second, 5*time.Millisecond)
	assert.True(t, c.LastActivity().After(before))

	m.cleanupExpiredSessions(time.Now().Add(31 * time.Minute))
	assert.Equal(t, types.SessionStateConnected, c.State())

	fake.Suspend()
	surface.waitStopped(t)
	m.cleanupExpiredSessions(time.Now().Add(31 * time.Minute))
	surface.waitTerminated(t)
}

func TestManagerClose(t *testing.T) {
	m := newTestManager(t, 4)
	a, err := m.CreateSession()
	require.NoError(t, err)
	b, err := m.CreateSession()
	require.NoError(t, err)

	m.Close()
	for _, c := range []*Controller{a, b} {
		select {
		case <-c.Done():
		case <-time.After(time.Second):
			t.Fatalf("session %s still running", c.ID())
		}
	}
}

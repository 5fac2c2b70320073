package session

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/services"
)

func (m *Manager) startSweeps() {
	m.smu.Lock()
	defer m.smu.Unlock()
	if m.closed || m.sweeps != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &sweeps{cancel: cancel}
	m.sweeps = s

	s.wg.Add(2)
	m.all.Add(2)
	go m.loop(ctx, s, m.expiryEvery, m.CheckExpiry)
	go m.loop(ctx, s, m.refreshEvery, m.CheckRefresh)
}

// cancelSweeps stops the current sweeps without waiting and returns them.
func (m *Manager) cancelSweeps() *sweeps {
	m.smu.Lock()
	defer m.smu.Unlock()
	s := m.sweeps
	if s != nil {
		s.cancel()
		m.sweeps = nil
	}
	return s
}

// stopSweeps cancels the sweeps; with wait it also waits for every sweep
// goroutine started so far to return.
func (m *Manager) stopSweeps(wait bool) {
	s := m.cancelSweeps()
	if !wait {
		return
	}
	if s != nil {
		s.wg.Wait()
	}
}

func (m *Manager) loop(ctx context.Context, s *sweeps, every time.Duration, tick func(context.Context)) {
	defer m.all.Done()
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckExpiry is one expiry sweep tick: an expired session is logged out.
func (m *Manager) CheckExpiry(ctx context.Context) {
	if err := m.acquire(ctx); err != nil {
		return
	}

	sess := m.gw.Session()
	if sess == nil {
		m.stopSweeps(false)
		m.release()
		return
	}
	if m.now().Before(sess.ExpiresAt) {
		m.release()
		return
	}

	m.log.Info(ctx, "session expired", "user_id", sess.User.ID, "expires_at", sess.ExpiresAt)
	if err := m.gw.Expire(ctx); err != nil {
		m.log.Error(ctx, "failed to clear expired session", "error", err)
	}
	m.stopSweeps(false)
	m.release()

	m.emit(Event{Kind: EventExpired})
}

// CheckRefresh is one proactive refresh tick: a session expiring within the
// refresh window is renewed with exactly one refresh call.
func (m *Manager) CheckRefresh(ctx context.Context) {
	if err := m.acquire(ctx); err != nil {
		return
	}

	sess := m.gw.Session()
	if sess == nil {
		m.stopSweeps(false)
		m.release()
		return
	}
	left := sess.ExpiresAt.Sub(m.now())
	if left <= 0 || left > m.window {
		m.release()
		return
	}

	_, err := m.gw.RefreshToken(ctx)
	switch {
	case err == nil:
		fresh := m.gw.Session()
		m.release()
		if fresh == nil {
			return
		}
		m.log.Debug(ctx, "session renewed", "expires_at", fresh.ExpiresAt)
		m.emit(Event{Kind: EventRefreshed, Session: fresh})

	case errors.Is(err, services.ErrSessionSuperseded) || ctx.Err() != nil:
		// logged out meanwhile
		m.release()

	default:
		m.log.Warn(ctx, "proactive refresh failed, logging out", "error", err)
		m.dropSession(ctx, false)
		m.release()
		m.emit(Event{Kind: EventRefreshFailed, Err: err})
	}
}

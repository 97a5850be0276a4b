// Package session owns login, logout, and the guard every protected command
// passes through. Login validates the candidate key with a single call and
// persists it only on success; the guard enforces the idle timeout and
// refreshes the activity timestamp as a side effect.
package session

import (
	"context"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/apiclient"
	"github.com/bookwrightapp/bookwright/pkg/config"
	"github.com/bookwrightapp/bookwright/pkg/credentials"
	"github.com/bookwrightapp/bookwright/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// expiryWarningWindow is how close to the idle timeout the watch-mode warning
// starts showing.
const expiryWarningWindow = 5 * time.Minute

type Manager struct {
	api   *apiclient.Client
	store *credentials.Store
	log   logger.Logger

	idleTimeout time.Duration
}

func NewManager(cfg *config.Config, api *apiclient.Client, store *credentials.Store) *Manager {
	return &Manager{
		api:         api,
		store:       store,
		log:         logger.New(),
		idleTimeout: cfg.SessionIdleTimeout,
	}
}

// Login validates the key with exactly one call and persists it on success.
// A rejection surfaces the server's message verbatim; nothing is retried and
// nothing is persisted.
func (m *Manager) Login(ctx context.Context, licenseKey string) (*apiclient.LicenseInfo, error) {
	if licenseKey == "" {
		return nil, errors.WithStack(errcodes.ValidationError("A license key is required."))
	}

	info, err := m.api.ValidateLicense(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	if !info.Valid {
		return nil, errors.WithStack(errcodes.Unauthorized("License key is invalid."))
	}

	if err := m.store.Set(licenseKey); err != nil {
		return nil, err
	}

	m.log.Info("logged in", logger.Data{"customer_id": info.CustomerID, "plan": info.Plan})
	return info, nil
}

// Logout clears the persisted credential. Logging out while logged out is a
// no-op.
func (m *Manager) Logout() error {
	return m.store.Clear()
}

// Current returns the persisted session without touching it.
func (m *Manager) Current() (*credentials.Session, error) {
	return m.store.Load()
}

// Require is the guard protected operations call first. It fails when there
// is no credential, auto-logs-out and fails when the session has idled past
// the timeout, and otherwise records activity and returns the session.
func (m *Manager) Require(ctx context.Context) (*credentials.Session, error) {
	session, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if !session.IsAuthenticated {
		return nil, errors.WithStack(errcodes.Unauthorized("Not logged in. Run `bookwright login` first."))
	}

	if session.IdleFor() > m.idleTimeout {
		if err := m.store.Clear(); err != nil {
			m.log.Err(err).Warn("credential clear error")
		}
		return nil, errors.WithStack(errcodes.Unauthorized("Your session expired after inactivity. Please log in again."))
	}

	if err := m.store.Touch(); err != nil {
		m.log.Err(err).Warn("activity touch error")
	}
	return session, nil
}

// Token returns a TokenSource backed by the persisted credential, for wiring
// into the API client.
func (m *Manager) Token() apiclient.TokenSource {
	return func() string {
		session, err := m.store.Load()
		if err != nil || !session.IsAuthenticated {
			return ""
		}
		return session.LicenseKey
	}
}

// ExpiryWarning returns how long until the session idles out when that moment
// is inside the warning window. Used by watch mode for its countdown line.
func (m *Manager) ExpiryWarning() (time.Duration, bool) {
	session, err := m.store.Load()
	if err != nil || !session.IsAuthenticated {
		return 0, false
	}

	left := m.idleTimeout - session.IdleFor()
	if left <= 0 || left > expiryWarningWindow {
		return 0, false
	}
	return left, true
}

package credentials

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// Session is the client's view of its own authentication state. The license
// key is a bearer credential; its presence on disk is what makes a session.
type Session struct {
	LicenseKey      string
	IsAuthenticated bool
	SavedAt         time.Time
	LastActivityAt  time.Time
}

type storedCredential struct {
	LicenseKey     string    `json:"license_key"`
	SavedAt        time.Time `json:"saved_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Store persists the license key in the config directory. The file is written
// 0600 since the key grants full account access.
type Store struct {
	path string
}

func NewStore(configDir string) *Store {
	return &Store{path: filepath.Join(configDir, "license.json")}
}

// Load returns the current session. A missing file is not an error; it just
// means the user isn't logged in.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Session{}, nil
		}
		return nil, errors.WithStack(err)
	}

	var cred storedCredential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, errors.WithStack(err)
	}
	if cred.LicenseKey == "" {
		return &Session{}, nil
	}

	return &Session{
		LicenseKey:      cred.LicenseKey,
		IsAuthenticated: true,
		SavedAt:         cred.SavedAt,
		LastActivityAt:  cred.LastActivityAt,
	}, nil
}

// Set persists the license key and marks the session authenticated.
func (s *Store) Set(licenseKey string) error {
	if licenseKey == "" {
		return errors.New("license key must not be empty")
	}
	now := time.Now()
	return s.write(&storedCredential{
		LicenseKey:     licenseKey,
		SavedAt:        now,
		LastActivityAt: now,
	})
}

// Clear removes the persisted key. Clearing an absent credential is a no-op.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.WithStack(err)
	}
	return nil
}

// Touch records user activity for idle-timeout tracking.
func (s *Store) Touch() error {
	session, err := s.Load()
	if err != nil {
		return err
	}
	if !session.IsAuthenticated {
		return nil
	}
	return s.write(&storedCredential{
		LicenseKey:     session.LicenseKey,
		SavedAt:        session.SavedAt,
		LastActivityAt: time.Now(),
	})
}

// IdleFor returns how long the session has gone without activity.
func (session *Session) IdleFor() time.Duration {
	if session.LastActivityAt.IsZero() {
		return 0
	}
	return time.Since(session.LastActivityAt)
}

func (s *Store) write(cred *storedCredential) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.WithStack(err)
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(s.path, data, 0600))
}

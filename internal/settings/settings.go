// Package settings holds the pair configuration and the PIN lock.
package settings

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWrongPIN     = errors.New("wrong PIN")
	ErrInvalidPIN   = errors.New("PIN must be exactly 4 digits")
	ErrNoPIN        = errors.New("no PIN configured")
	ErrInvalidDuoID = errors.New("invalid duo id")
)

var (
	pinPattern   = regexp.MustCompile(`^[0-9]{4}$`)
	duoIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
)

// Settings is the persisted document.
type Settings struct {
	DuoID    string    `json:"duoId"`
	PINHash  string    `json:"pinHash,omitempty"`
	Locked   bool      `json:"locked"`
	LastSync time.Time `json:"lastSync,omitempty"`
}

// View is what clients are allowed to see.
type View struct {
	DuoID    string     `json:"duoId"`
	HasPIN   bool       `json:"hasPin"`
	Locked   bool       `json:"locked"`
	LastSync *time.Time `json:"lastSync,omitempty"`
}

func (s Settings) HasPIN() bool { return s.PINHash != "" }

func (s Settings) View() View {
	v := View{DuoID: s.DuoID, HasPIN: s.HasPIN(), Locked: s.Locked && s.HasPIN()}
	if !s.LastSync.IsZero() {
		ts := s.LastSync
		v.LastSync = &ts
	}
	return v
}

// Persister stores the settings document.
type Persister interface {
	SaveSettings(v any) error
	LoadSettings(v any) (bool, error)
}

// DefaultDuoID returns a fresh "martin-josephine-NNNN" identifier.
func DefaultDuoID() string {
	return fmt.Sprintf("martin-josephine-%d", rand.IntN(10000))
}

func ValidateDuoID(id string) error {
	if !duoIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidDuoID, id)
	}
	return nil
}

// ValidatePIN checks the PIN format. The empty string is valid and means
// "remove the PIN".
func ValidatePIN(pin string) error {
	if pin != "" && !pinPattern.MatchString(pin) {
		return ErrInvalidPIN
	}
	return nil
}

// Manager serialises access to the settings and persists every change.
type Manager struct {
	mu      sync.RWMutex
	current Settings
	store   Persister
	cost    int
}

type Option func(*Manager)

// WithBcryptCost overrides the hashing cost, mostly for tests.
func WithBcryptCost(cost int) Option {
	return func(m *Manager) { m.cost = cost }
}

// Open loads the stored settings. When none exist a document is created with
// duoID, or a generated identifier when duoID is empty. A non-empty duoID also
// overrides a stored one.
func Open(store Persister, duoID string, opts ...Option) (*Manager, error) {
	m := &Manager{store: store, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(m)
	}

	found, err := store.LoadSettings(&m.current)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	dirty := !found
	if duoID != "" && duoID != m.current.DuoID {
		if err := ValidateDuoID(duoID); err != nil {
			return nil, err
		}
		m.current.DuoID = duoID
		dirty = true
	}
	if m.current.DuoID == "" {
		m.current.DuoID = DefaultDuoID()
		dirty = true
	}
	if dirty {
		if err := store.SaveSettings(m.current); err != nil {
			return nil, fmt.Errorf("save settings: %w", err)
		}
	}
	return m, nil
}

func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) DuoID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.DuoID
}

// IsLocked reports whether requests must be refused until Unlock.
func (m *Manager) IsLocked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Locked && m.current.HasPIN()
}

func (m *Manager) SetDuoID(id string) error {
	if err := ValidateDuoID(id); err != nil {
		return err
	}
	return m.update(func(s *Settings) error {
		s.DuoID = id
		return nil
	})
}

// SetPIN sets a four digit PIN. An empty pin removes it and unlocks.
func (m *Manager) SetPIN(pin string) error {
	if pin == "" {
		return m.update(func(s *Settings) error {
			s.PINHash = ""
			s.Locked = false
			return nil
		})
	}
	if err := ValidatePIN(pin); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), m.cost)
	if err != nil {
		return fmt.Errorf("hash PIN: %w", err)
	}
	return m.update(func(s *Settings) error {
		s.PINHash = string(hash)
		return nil
	})
}

func (m *Manager) Lock() error {
	return m.update(func(s *Settings) error {
		if !s.HasPIN() {
			return ErrNoPIN
		}
		s.Locked = true
		return nil
	})
}

func (m *Manager) Unlock(pin string) error {
	return m.update(func(s *Settings) error {
		if !s.HasPIN() {
			s.Locked = false
			return nil
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.PINHash), []byte(pin)); err != nil {
			return ErrWrongPIN
		}
		s.Locked = false
		return nil
	})
}

// MarkSynced records the time of the last successful fetch.
func (m *Manager) MarkSynced(at time.Time) error {
	return m.update(func(s *Settings) error {
		s.LastSync = at.UTC()
		return nil
	})
}

func (m *Manager) update(fn func(*Settings) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.current
	if err := fn(&next); err != nil {
		return err
	}
	if err := m.store.SaveSettings(next); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	m.current = next
	return nil
}

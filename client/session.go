package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/realtime"
)

// SessionKey is the storage key the signed-in session is cached under.
const SessionKey = "delivery-app.session"

// ErrNoSession is returned by a Store that holds nothing under the key.
var ErrNoSession = errors.New("no stored session")

// Store persists the session between runs.
type Store interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
	Delete(key string) error
}

// FileStore keeps each key as a JSON file in Dir. Writes go through a temp
// file and rename, so a reader never sees a half-written session.
type FileStore struct {
	Dir string
}

func (fs FileStore) path(key string) string {
	return filepath.Join(fs.Dir, key+".json")
}

func (fs FileStore) Load(key string) ([]byte, error) {
	data, err := os.ReadFile(fs.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	return data, err
}

func (fs FileStore) Save(key string, data []byte) error {
	if err := os.MkdirAll(fs.Dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(fs.Dir, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), fs.path(key))
}

func (fs FileStore) Delete(key string) error {
	err := os.Remove(fs.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryStore is a Store for tests and short-lived tools.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Load(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	if !ok {
		return nil, ErrNoSession
	}
	return append([]byte(nil), d...), nil
}

func (m *MemoryStore) Save(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Profile is the minimal user data cached with the token.
type Profile struct {
	UserID       uint   `json:"user_id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	RestaurantID uint   `json:"restaurant_id,omitempty"`
}

type storedSession struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}

// Session is the signed-in actor. It is safe for concurrent use and is
// the only place the token is read from.
type Session struct {
	store Store

	mu      sync.RWMutex
	token   string
	profile Profile
}

func NewSession(store Store) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{store: store}
}

// Restore loads a previously saved session. A missing session is not an
// error; the session simply stays signed out.
func (s *Session) Restore() error {
	data, err := s.store.Load(SessionKey)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	var st storedSession
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	s.mu.Lock()
	s.token, s.profile = st.Token, st.Profile
	s.mu.Unlock()
	return nil
}

// Set signs the session in and persists it.
func (s *Session) Set(token string, p Profile) error {
	data, err := json.Marshal(storedSession{Token: token, Profile: p})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.token, s.profile = token, p
	s.mu.Unlock()
	return s.store.Save(SessionKey, data)
}

// Clear signs the session out and removes the stored copy.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.token, s.profile = "", Profile{}
	s.mu.Unlock()
	return s.store.Delete(SessionKey)
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

func (s *Session) Authenticated() bool { return s.Token() != "" }

// Actor is the lifecycle actor the signed-in role acts as.
func (s *Session) Actor() (lifecycle.Actor, bool) {
	return lifecycle.ActorForRole(s.Profile().Role)
}

// Identity is what the realtime client connects with.
func (s *Session) Identity() realtime.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return realtime.Identity{
		UserID:       s.profile.UserID,
		Role:         s.profile.Role,
		RestaurantID: s.profile.RestaurantID,
		Token:        s.token,
	}
}

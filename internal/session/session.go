/**
 * @description
 * Explicit session handling for the gateway. The session used to live in an
 * ambient module-level store on the client; here it is a plain value constructed
 * once per request from the verified bearer token plus the persisted profile
 * blob, and passed by reference to whoever needs it. The gateway only ever reads
 * the profile (user id and role decide admin-vs-user aggregate scope); writing
 * and invalidating it belongs to the auth collaborator.
 */

package session

import (
	"context"
	"errors"
	"sync"
)

// RoleAdmin is the role that unlocks the admin-scoped aggregate views.
const RoleAdmin = "admin"

// Session is the per-request session context: identity plus the raw bearer token
// forwarded to the upstream API.
type Session struct {
	UserID string
	Name   string
	Email  string
	Role   string
	Token  string
}

// IsAdmin reports whether the session may use admin-scoped operations.
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Profile is the minimal persisted user profile, stored under a single key per
// user by the auth collaborator.
type Profile struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// ErrNotFound is returned when no profile is stored for a user.
var ErrNotFound = errors.New("session: profile not found")

// Store reads and writes persisted session profiles. The gateway itself only
// loads; Save and Delete exist for the auth collaborator and for tests.
type Store interface {
	Load(ctx context.Context, userID string) (Profile, error)
	Save(ctx context.Context, profile Profile) error
	Delete(ctx context.Context, userID string) error
}

// MemoryStore is an in-process Store, used in tests and as the fallback when no
// Redis is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]Profile)}
}

// Load returns the stored profile or ErrNotFound.
func (m *MemoryStore) Load(_ context.Context, userID string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return profile, nil
}

// Save stores the profile under its user id.
func (m *MemoryStore) Save(_ context.Context, profile Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UserID] = profile
	return nil
}

// Delete removes the profile, tolerating absence.
func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, userID)
	return nil
}

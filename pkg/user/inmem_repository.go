package user

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryUserRepository implements Repository using in-memory storage
type InMemoryUserRepository struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]User
	byUsername map[string]uuid.UUID
	byEmail    map[string]uuid.UUID // lower-cased
}

// NewInMemoryUserRepository creates a new in-memory user repository
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:      make(map[uuid.UUID]User),
		byUsername: make(map[string]uuid.UUID),
		byEmail:    make(map[string]uuid.UUID),
	}
}

// clone keeps callers from mutating stored role slices
func clone(u User) User {
	if u.Roles != nil {
		roles := make([]Role, len(u.Roles))
		for i, role := range u.Roles {
			roles[i] = Role{Name: role.Name, Permissions: append([]string(nil), role.Permissions...)}
		}
		u.Roles = roles
	}
	if u.ActivationExpiresAt != nil {
		t := *u.ActivationExpiresAt
		u.ActivationExpiresAt = &t
	}
	return u
}

func (r *InMemoryUserRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return clone(r.users[id]), nil
}

func (r *InMemoryUserRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return clone(r.users[id]), nil
}

func (r *InMemoryUserRepository) FindByID(ctx context.Context, id uuid.UUID) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return clone(u), nil
}

func (r *InMemoryUserRepository) FindByActivationToken(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrUserNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ActivationToken == token {
			return clone(u), nil
		}
	}
	return User{}, ErrUserNotFound
}

// Create stores a new user, assigning an ID and timestamps when unset
func (r *InMemoryUserRepository) Create(ctx context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[u.Username]; ok {
		return User{}, ErrDuplicateUsername
	}
	if _, ok := r.byEmail[strings.ToLower(u.Email)]; ok {
		return User{}, ErrDuplicateEmail
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	u = clone(u)
	r.users[u.ID] = u
	r.byUsername[u.Username] = u.ID
	r.byEmail[strings.ToLower(u.Email)] = u.ID
	return clone(u), nil
}

// Update replaces a stored user. Username and email stay unique.
func (r *InMemoryUserRepository) Update(ctx context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.ID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	if id, taken := r.byUsername[u.Username]; taken && id != u.ID {
		return User{}, ErrDuplicateUsername
	}
	if id, taken := r.byEmail[strings.ToLower(u.Email)]; taken && id != u.ID {
		return User{}, ErrDuplicateEmail
	}

	delete(r.byUsername, existing.Username)
	delete(r.byEmail, strings.ToLower(existing.Email))

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	u = clone(u)
	r.users[u.ID] = u
	r.byUsername[u.Username] = u.ID
	r.byEmail[strings.ToLower(u.Email)] = u.ID
	return clone(u), nil
}

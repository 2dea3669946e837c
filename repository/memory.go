package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	auth "github.com/IngAlexfit/caribeVibes-system-sub001"
)

// MemoryStore keeps accounts in process memory. Uniqueness checks and inserts
// happen under one lock.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	users   map[int64]*auth.User
	byEmail map[string]int64
	byName  map[string]int64
	roles   map[string]auth.Role
}

// NewMemoryStore returns a store seeded with roles, or with DefaultRoles
// when none are given.
func NewMemoryStore(roles ...auth.Role) *MemoryStore {
	if len(roles) == 0 {
		roles = auth.DefaultRoles
	}

	m := &MemoryStore{
		users:   map[int64]*auth.User{},
		byEmail: map[string]int64{},
		byName:  map[string]int64{},
		roles:   map[string]auth.Role{},
	}

	for i, role := range roles {
		role.ID = int64(i + 1)
		role.Name = normalizeRole(role.Name)
		m.roles[role.Name] = role
	}

	return m
}

// NewEmptyMemoryStore returns a store without any role
func NewEmptyMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   map[int64]*auth.User{},
		byEmail: map[string]int64{},
		byName:  map[string]int64{},
		roles:   map[string]auth.Role{},
	}
}

func (m *MemoryStore) FindByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	identifier = auth.NormalizeIdentifier(identifier)

	m.mu.RLock()
	defer m.mu.RUnlock()

	user := m.lookup(identifier)
	if user == nil {
		return nil, auth.ErrNotFound
	}
	return user.Clone(), nil
}

func (m *MemoryStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byEmail[auth.NormalizeIdentifier(email)]
	return ok, nil
}

func (m *MemoryStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byName[auth.NormalizeIdentifier(username)]
	return ok, nil
}

func (m *MemoryStore) Save(ctx context.Context, user *auth.User) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if user == nil {
		return nil, auth.NewValidationError(map[string]string{"user": "is required"})
	}

	record := user.Clone()
	record.Email = auth.NormalizeIdentifier(record.Email)
	record.Username = auth.NormalizeIdentifier(record.Username)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[record.Email]; ok {
		return nil, oops.Code(auth.ErrorCode(auth.ErrConflict)).With("field", "email").Wrap(auth.ErrConflict)
	}
	if _, ok := m.byName[record.Username]; ok {
		return nil, oops.Code(auth.ErrorCode(auth.ErrConflict)).With("field", "username").Wrap(auth.ErrConflict)
	}

	m.nextID++
	record.ID = m.nextID
	m.users[record.ID] = record
	m.byEmail[record.Email] = record.ID
	m.byName[record.Username] = record.ID

	return record.Clone(), nil
}

func (m *MemoryStore) FindRoleByName(ctx context.Context, name string) (*auth.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	role, ok := m.roles[normalizeRole(name)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &role, nil
}

// AssignRole grants role to the account. Granting a held role is a no-op.
func (m *MemoryStore) AssignRole(ctx context.Context, identifier, role string) error {
	return m.update(ctx, identifier, func(user *auth.User) error {
		found, ok := m.roles[normalizeRole(role)]
		if !ok {
			return auth.ErrNotFound
		}
		if !user.HasRole(found.Name) {
			user.Roles = append(user.Roles, found)
		}
		return nil
	})
}

// RevokeRole removes role from the account
func (m *MemoryStore) RevokeRole(ctx context.Context, identifier, role string) error {
	return m.update(ctx, identifier, func(user *auth.User) error {
		found, ok := m.roles[normalizeRole(role)]
		if !ok {
			return auth.ErrNotFound
		}
		kept := user.Roles[:0]
		for _, r := range user.Roles {
			if !strings.EqualFold(r.Name, found.Name) {
				kept = append(kept, r)
			}
		}
		user.Roles = kept
		return nil
	})
}

// SetActive flips the active flag of the account
func (m *MemoryStore) SetActive(ctx context.Context, identifier string, active bool) error {
	return m.update(ctx, identifier, func(user *auth.User) error {
		user.Active = active
		return nil
	})
}

// AddRole registers a role so it can be resolved by name
func (m *MemoryStore) AddRole(role auth.Role) auth.Role {
	m.mu.Lock()
	defer m.mu.Unlock()

	role.Name = normalizeRole(role.Name)
	if existing, ok := m.roles[role.Name]; ok {
		return existing
	}
	role.ID = int64(len(m.roles) + 1)
	m.roles[role.Name] = role
	return role
}

func (m *MemoryStore) update(ctx context.Context, identifier string, fn func(*auth.User) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.lookup(auth.NormalizeIdentifier(identifier))
	if user == nil {
		return auth.ErrNotFound
	}
	return fn(user)
}

func (m *MemoryStore) lookup(identifier string) *auth.User {
	index := m.byName
	if identifierColumn(identifier) == "email" {
		index = m.byEmail
	}

	id, ok := index[identifier]
	if !ok {
		return nil
	}
	return m.users[id]
}

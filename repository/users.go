package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/uptrace/bun"

	auth "github.com/IngAlexfit/caribeVibes-system-sub001"
)

// AccountManager holds the account operations used outside the auth flow
type AccountManager interface {
	AssignRole(ctx context.Context, identifier, role string) error
	RevokeRole(ctx context.Context, identifier, role string) error
	SetActive(ctx context.Context, identifier string, active bool) error
}

// Store is a credential store that also manages accounts
type Store interface {
	auth.CredentialStore
	AccountManager
}

var (
	_ Store = (*Users)(nil)
	_ Store = (*MemoryStore)(nil)
)

// Users is the bun backed credential store
type Users struct {
	db      bun.IDB
	timeout time.Duration
}

// NewUsers returns a store over db. Each call is bounded by timeout when it
// is positive.
func NewUsers(db bun.IDB, timeout time.Duration) *Users {
	// the Roles relation joins through user_roles
	db.NewSelect().DB().RegisterModel((*auth.UserRole)(nil))
	return &Users{db: db, timeout: timeout}
}

func (r *Users) FindByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	identifier = auth.NormalizeIdentifier(identifier)
	if identifier == "" {
		return nil, auth.ErrNotFound
	}

	user := &auth.User{}
	err := r.db.NewSelect().
		Model(user).
		Relation("Roles").
		Where("?TableAlias.? = ?", bun.Ident(identifierColumn(identifier)), identifier).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, oops.With("operation", "find_by_identifier").Wrapf(err, "failed to load account")
	}

	return user, nil
}

func (r *Users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

func (r *Users) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

func (r *Users) exists(ctx context.Context, column, value string) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	exists, err := r.db.NewSelect().
		Model((*auth.User)(nil)).
		Where("?TableAlias.? = ?", bun.Ident(column), auth.NormalizeIdentifier(value)).
		Exists(ctx)
	if err != nil {
		return false, oops.With("column", column).Wrapf(err, "failed to check account")
	}
	return exists, nil
}

// Save inserts user and its role grants in one transaction
func (r *Users) Save(ctx context.Context, user *auth.User) (*auth.User, error) {
	if user == nil {
		return nil, auth.NewValidationError(map[string]string{"user": "is required"})
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	record := user.Clone()
	record.ID = 0
	record.Email = auth.NormalizeIdentifier(record.Email)
	record.Username = auth.NormalizeIdentifier(record.Username)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}

		for _, role := range record.Roles {
			link := &auth.UserRole{UserID: record.ID, RoleID: role.ID}
			if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.
				Code(auth.ErrorCode(auth.ErrConflict)).
				With("email", record.Email).
				Wrap(auth.ErrConflict)
		}
		return nil, oops.With("operation", "save").Wrapf(err, "failed to insert account")
	}

	return record, nil
}

func (r *Users) FindRoleByName(ctx context.Context, name string) (*auth.Role, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	role := &auth.Role{}
	err := r.db.NewSelect().
		Model(role).
		Where("?TableAlias.name = ?", normalizeRole(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, oops.With("role", name).Wrapf(err, "failed to load role")
	}
	return role, nil
}

// AssignRole grants role to the account. Granting a held role is a no-op.
func (r *Users) AssignRole(ctx context.Context, identifier, role string) error {
	user, found, err := r.userAndRole(ctx, identifier, role)
	if err != nil {
		return err
	}

	if user.HasRole(found.Name) {
		return nil
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	link := &auth.UserRole{UserID: user.ID, RoleID: found.ID}
	if _, err := r.db.NewInsert().Model(link).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return oops.With("user_id", user.ID, "role", found.Name).Wrapf(err, "failed to grant role")
	}
	return nil
}

// RevokeRole removes role from the account
func (r *Users) RevokeRole(ctx context.Context, identifier, role string) error {
	user, found, err := r.userAndRole(ctx, identifier, role)
	if err != nil {
		return err
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	_, err = r.db.NewDelete().
		Model((*auth.UserRole)(nil)).
		Where("user_id = ?", user.ID).
		Where("role_id = ?", found.ID).
		Exec(ctx)
	if err != nil {
		return oops.With("user_id", user.ID, "role", found.Name).Wrapf(err, "failed to revoke role")
	}
	return nil
}

// SetActive flips the active flag of the account
func (r *Users) SetActive(ctx context.Context, identifier string, active bool) error {
	user, err := r.FindByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	_, err = r.db.NewUpdate().
		Model((*auth.User)(nil)).
		Set("is_active = ?", active).
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return oops.With("user_id", user.ID).Wrapf(err, "failed to update account status")
	}
	return nil
}

func (r *Users) userAndRole(ctx context.Context, identifier, role string) (*auth.User, *auth.Role, error) {
	user, err := r.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}

	found, err := r.FindRoleByName(ctx, role)
	if err != nil {
		return nil, nil, err
	}

	return user, found, nil
}

func (r *Users) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func identifierColumn(identifier string) string {
	if strings.Contains(identifier, "@") {
		return "email"
	}
	return "username"
}

func normalizeRole(name string) string {
	return strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), auth.AuthorityPrefix)
}

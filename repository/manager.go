package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/samber/oops"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/IngAlexfit/caribeVibes-system-sub001"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DefaultQueryTimeout bounds every store call made through a Manager
const DefaultQueryTimeout = 5 * time.Second

// Open connects to dsn with the bun dialect matching driver
func Open(driver, dsn string) (*bun.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "sqlite3":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, oops.With("driver", driver).Wrapf(err, "failed to open sqlite database")
		}
		// in-memory databases live per connection
		if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
			sqldb.SetMaxOpenConns(1)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres, "postgresql", "pgx":
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, oops.With("driver", driver).Wrapf(err, "failed to open postgres database")
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, oops.
			Code("CONFIGURATION_ERROR").
			With("driver", driver).
			Wrapf(auth.ErrConfiguration, "unsupported database driver %q", driver)
	}
}

// Manager owns the database handle and the repositories built on it
type Manager struct {
	db           *bun.DB
	users        *Users
	queryTimeout time.Duration
}

type ManagerOption func(*Manager)

// WithQueryTimeout bounds each store call. Zero disables the bound.
func WithQueryTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.queryTimeout = d
	}
}

// NewManager registers the models on db and builds the repositories
func NewManager(db *bun.DB, opts ...ManagerOption) *Manager {
	db.RegisterModel((*auth.UserRole)(nil))

	m := &Manager{
		db:           db,
		queryTimeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.users = NewUsers(db, m.queryTimeout)
	return m
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m *Manager) Users() *Users {
	return m.users
}

func (m *Manager) DB() *bun.DB {
	return m.db
}

// Migrate creates the roles, users and user_roles tables when missing
func (m *Manager) Migrate(ctx context.Context) error {
	return m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewCreateTable().
			Model((*auth.Role)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return oops.With("table", "roles").Wrapf(err, "failed to create table")
		}

		if _, err := tx.NewCreateTable().
			Model((*auth.User)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return oops.With("table", "users").Wrapf(err, "failed to create table")
		}

		if _, err := tx.NewCreateTable().
			Model((*auth.UserRole)(nil)).
			IfNotExists().
			ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
			ForeignKey(`("role_id") REFERENCES "roles" ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return oops.With("table", "user_roles").Wrapf(err, "failed to create table")
		}

		return nil
	})
}

// SeedRoles inserts roles that do not exist yet
func (m *Manager) SeedRoles(ctx context.Context, roles ...auth.Role) error {
	if len(roles) == 0 {
		roles = auth.DefaultRoles
	}

	return m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, role := range roles {
			role := role
			role.ID = 0
			role.Name = strings.ToUpper(strings.TrimSpace(role.Name))

			exists, err := tx.NewSelect().
				Model((*auth.Role)(nil)).
				Where("name = ?", role.Name).
				Exists(ctx)
			if err != nil {
				return oops.With("role", role.Name).Wrapf(err, "failed to look up role")
			}
			if exists {
				continue
			}

			if _, err := tx.NewInsert().Model(&role).Exec(ctx); err != nil {
				return oops.With("role", role.Name).Wrapf(err, "failed to seed role")
			}
		}
		return nil
	})
}

func (m *Manager) Close() error {
	return m.db.Close()
}

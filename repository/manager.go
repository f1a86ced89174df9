package repository

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Manager groups the navauth repositories sharing one database.
type Manager struct {
	db       *bun.DB
	activity *ActivityRepository
}

// NewRepositoryManager wires every repository against db.
func NewRepositoryManager(db *bun.DB) *Manager {
	return &Manager{
		db:       db,
		activity: NewActivityRepository(db),
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return goerrors.New("repository manager requires a database", goerrors.CategoryInternal).
			WithTextCode("REPOSITORY_DB_MISSING")
	}

	if m.activity == nil {
		return goerrors.New("repository activity should be initialized", goerrors.CategoryInternal).
			WithTextCode("REPOSITORY_NOT_INITIALIZED")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		panic(err)
	}
}

// Migrate creates the schema of every repository.
func (m *Manager) Migrate(ctx context.Context) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return m.activity.Migrate(ctx)
}

func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m *Manager) Activity() *ActivityRepository {
	return m.activity
}

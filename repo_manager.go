package auth

import (
	"context"
	"log"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes the stores backed by one database
type RepositoryManager interface {
	Validate() error
	MustValidate()
	Ping(ctx context.Context) error
	Credentials() CredentialStore
}

type mngr struct {
	db          *bun.DB
	credentials CredentialStore
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	m := &mngr{db: db}
	if db != nil {
		m.credentials = NewCredentialsRepository(db)
	}
	return m
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager database should be initialized", errors.CategoryInternal)
	}

	if m.credentials == nil {
		return errors.New("repository credentials should be initialized", errors.CategoryInternal)
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// Ping reports whether the database answers, used as the readiness check
func (m mngr) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := m.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "database unreachable")
	}
	return nil
}

func (m mngr) Credentials() CredentialStore {
	return m.credentials
}

package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

type credentials struct {
	db  *bun.DB
	idb bun.IDB
}

var _ CredentialStore = (*credentials)(nil)

// NewCredentialsRepository returns a CredentialStore backed by bun. The
// unique index on credentials.email serializes concurrent registrations.
func NewCredentialsRepository(db *bun.DB) CredentialStore {
	return &credentials{db: db, idb: db}
}

func (c *credentials) RunInTx(ctx context.Context, fn func(ctx context.Context, store CredentialStore) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, inTx := c.idb.(bun.Tx); inTx {
		return fn(ctx, c)
	}

	return c.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &credentials{db: c.db, idb: tx})
	})
}

func (c *credentials) Create(ctx context.Context, record *Credential) (*Credential, error) {
	if record == nil {
		return nil, errors.New("credential record is required", errors.CategoryBadInput)
	}

	_, err := c.idb.NewInsert().
		Model(record).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, annotate(ErrDuplicateEmail, map[string]any{"email": record.Email})
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create credential")
	}

	return record, nil
}

func (c *credentials) FindByEmail(ctx context.Context, email string) (*Credential, error) {
	return c.findOne(ctx, map[string]any{"email": email}, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", email)
	})
}

func (c *credentials) FindByID(ctx context.Context, id int64) (*Credential, error) {
	return c.findOne(ctx, map[string]any{"id": id}, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", id)
	})
}

func (c *credentials) FindByUserID(ctx context.Context, userID int64) (*Credential, error) {
	return c.findOne(ctx, map[string]any{"user_id": userID}, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.user_id = ?", userID)
	})
}

// FindByIDAndCode requires both the identifier and the code to match
func (c *credentials) FindByIDAndCode(ctx context.Context, id int64, code string) (*Credential, error) {
	return c.findOne(ctx, map[string]any{"id": id}, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.id = ?", id).
			Where("?TableAlias.activation_code = ?", code)
	})
}

func (c *credentials) UpdateEmail(ctx context.Context, id int64, email string) (*Credential, error) {
	res, err := c.idb.NewUpdate().
		Model((*Credential)(nil)).
		Set("email = ?", email).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, annotate(ErrDuplicateEmail, map[string]any{"email": email})
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update credential email")
	}

	if err := ensureAffected(res, id); err != nil {
		return nil, err
	}

	return c.FindByID(ctx, id)
}

func (c *credentials) SetDisabled(ctx context.Context, id int64, disabled bool) (*Credential, error) {
	res, err := c.idb.NewUpdate().
		Model((*Credential)(nil)).
		Set("disabled = ?", disabled).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update credential state")
	}

	if err := ensureAffected(res, id); err != nil {
		return nil, err
	}

	return c.FindByID(ctx, id)
}

// ListAll is declared on the store and returns ErrNotImplemented
func (c *credentials) ListAll(context.Context) ([]*Credential, error) {
	return nil, ErrNotImplemented
}

// Delete is declared on the store and returns ErrNotImplemented
func (c *credentials) Delete(context.Context, int64) error {
	return ErrNotImplemented
}

func (c *credentials) findOne(ctx context.Context, meta map[string]any, where func(*bun.SelectQuery) *bun.SelectQuery) (*Credential, error) {
	record := &Credential{}

	err := where(c.idb.NewSelect().Model(record).Relation("User")).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, annotate(ErrCredentialNotFound, meta)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to find credential").
			WithMetadata(meta)
	}

	return record, nil
}

func ensureAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to read affected rows")
	}
	if affected == 0 {
		return annotate(ErrCredentialNotFound, map[string]any{"id": id})
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

package auth

import (
	"context"
	"fmt"
	"time"
)

// Logger is satisfied by *slog.Logger
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PasswordHasher hashes and verifies passwords.
// Verify returns (false, nil) on mismatch and an error only when the
// stored hash cannot be parsed.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// TokenCodec signs and verifies time bound bearer tokens. Issue returns the
// signed token together with its exp claim.
type TokenCodec interface {
	Issue(claims map[string]string, ttl time.Duration) (string, time.Time, error)
	Verify(token string) (map[string]string, error)
}

// CodeGenerator produces activation codes
type CodeGenerator interface {
	Generate() (string, error)
}

// CredentialStore persists credential records. Implementations enforce
// email uniqueness at the storage boundary and report violations with
// ErrDuplicateEmail, missing rows with ErrCredentialNotFound.
type CredentialStore interface {
	Create(ctx context.Context, record *Credential) (*Credential, error)
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	FindByID(ctx context.Context, id int64) (*Credential, error)
	FindByUserID(ctx context.Context, userID int64) (*Credential, error)
	FindByIDAndCode(ctx context.Context, id int64, code string) (*Credential, error)
	UpdateEmail(ctx context.Context, id int64, email string) (*Credential, error)
	SetDisabled(ctx context.Context, id int64, disabled bool) (*Credential, error)
	ListAll(ctx context.Context) ([]*Credential, error)
	Delete(ctx context.Context, id int64) error
	RunInTx(ctx context.Context, fn func(ctx context.Context, store CredentialStore) error) error
}

// Notifier delivers the activation message to the account owner
type Notifier interface {
	SendActivationEmail(ctx context.Context, to, displayName, activationLink string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, to, displayName, activationLink string) error

// SendActivationEmail implements Notifier.
func (f NotifierFunc) SendActivationEmail(ctx context.Context, to, displayName, activationLink string) error {
	if f == nil {
		return nil
	}
	return f(ctx, to, displayName, activationLink)
}

// NoopNotifier drops every message
type NoopNotifier struct{}

func (NoopNotifier) SendActivationEmail(context.Context, string, string, string) error {
	return nil
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	d.print("ERR", msg, args)
}

func (d defLogger) Warn(msg string, args ...any) {
	d.print("WRN", msg, args)
}

func (d defLogger) Info(msg string, args ...any) {
	d.print("INF", msg, args)
}

func (d defLogger) Debug(msg string, args ...any) {
	d.print("DBG", msg, args)
}

func (defLogger) print(level, msg string, args []any) {
	line := append([]any{"[" + level + "] AUTH", msg}, args...)
	fmt.Println(line...)
}

package auth_test

import (
	"context"
	"sync"

	auth "github.com/goliatone/go-credentials"
	"github.com/stretchr/testify/mock"
)

// MockCredentialStore implements auth.CredentialStore
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) Create(ctx context.Context, record *auth.Credential) (*auth.Credential, error) {
	args := m.Called(ctx, record)
	return credentialArg(args, 0), args.Error(1)
}

func (m *MockCredentialStore) FindByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	args := m.Called(ctx, email)
	return credentialArg(args, 0), args.Error(1)
}

func (m *MockCredentialStore) FindByID(ctx context.Context, id int64) (*auth.Credential, error) {
	args := m.Called(ctx, id)
	return credentialArg(args, 0), args.Error(1)
}

func (m *MockCredentialStore) FindByUserID(ctx context.Context, userID int64) (*auth.Credential, error) {
	args := m.Called(ctx, userID)
	return credentialArg(args, 0), args.Error(1)
}

func (m *MockCredentialStore) FindByIDAndCode(ctx context.Context, id int64, code string) (*auth.Credential, error) {
	args := m.Called(ctx, id, code)
	return credentialArg(args, 0), args.Error(1)
}

func (m *MockCredentialStore) UpdateEmail(ctx context.Context, id int64, email string) (*auth.Credential, error) {
	args := m.Called(ctx, id, email)
	return credentialArg(args, 0), args.Error(1)
}

func (m *MockCredentialStore) SetDisabled(ctx context.Context, id int64, disabled bool) (*auth.Credential, error) {
	args := m.Called(ctx, id, disabled)
	return credentialArg(args, 0), args.Error(1)
}

func (m *MockCredentialStore) ListAll(ctx context.Context) ([]*auth.Credential, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]*auth.Credential)
	return records, args.Error(1)
}

func (m *MockCredentialStore) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// RunInTx runs fn against the mock itself
func (m *MockCredentialStore) RunInTx(ctx context.Context, fn func(ctx context.Context, store auth.CredentialStore) error) error {
	return fn(ctx, m)
}

func credentialArg(args mock.Arguments, idx int) *auth.Credential {
	record, _ := args.Get(idx).(*auth.Credential)
	return record
}

// MockNotifier implements auth.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendActivationEmail(ctx context.Context, to, displayName, link string) error {
	args := m.Called(ctx, to, displayName, link)
	return args.Error(0)
}

// recordingSink keeps every event, safe for concurrent use
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// silentLogger drops everything
type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}

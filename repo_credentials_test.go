package auth_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := persistence.Open(ctx, persistence.Options{
		Driver: persistence.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = persistence.Migrate(ctx, db)
	require.NoError(t, err)

	return db
}

func seedAccount(t *testing.T, db *bun.DB, name string) int64 {
	t.Helper()
	account := &auth.Account{Name: name}
	_, err := db.NewInsert().Model(account).Returning("id").Exec(context.Background())
	require.NoError(t, err)
	return account.ID
}

func newPending(userID int64, email string) *auth.Credential {
	return &auth.Credential{
		UserID:         userID,
		Email:          email,
		PasswordHash:   "$2a$04$placeholder",
		Disabled:       true,
		ActivationCode: "ab12",
	}
}

func TestCredentialsRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := auth.NewCredentialsRepository(db)
	userID := seedAccount(t, db, "Jane")

	created, err := repo.Create(ctx, newPending(userID, "jane@example.com"))
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	byEmail, err := repo.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.True(t, byEmail.Disabled)
	assert.Equal(t, "Jane", byEmail.DisplayName())
	assert.NotNil(t, byEmail.CreatedAt)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", byID.Email)

	byUser, err := repo.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byUser.ID)

	byCode, err := repo.FindByIDAndCode(ctx, created.ID, "ab12")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byCode.ID)
}

func TestCredentialsRepository_NotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := auth.NewCredentialsRepository(db)

	created, err := repo.Create(ctx, newPending(seedAccount(t, db, "Jane"), "jane@example.com"))
	require.NoError(t, err)

	tests := []struct {
		name string
		find func() (*auth.Credential, error)
	}{
		{"email", func() (*auth.Credential, error) { return repo.FindByEmail(ctx, "nobody@example.com") }},
		{"id", func() (*auth.Credential, error) { return repo.FindByID(ctx, created.ID+100) }},
		{"user id", func() (*auth.Credential, error) { return repo.FindByUserID(ctx, 999) }},
		{"wrong code", func() (*auth.Credential, error) { return repo.FindByIDAndCode(ctx, created.ID, "ffff") }},
		{"wrong id", func() (*auth.Credential, error) { return repo.FindByIDAndCode(ctx, created.ID+1, "ab12") }},
		{"update email", func() (*auth.Credential, error) { return repo.UpdateEmail(ctx, 999, "x@example.com") }},
		{"set disabled", func() (*auth.Credential, error) { return repo.SetDisabled(ctx, 999, false) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := tt.find()
			assert.Nil(t, record)
			assert.True(t, auth.IsCredentialNotFound(err), "unexpected error %v", err)
		})
	}

	// the shared sentinel must stay untouched by annotation
	assert.Empty(t, auth.ErrCredentialNotFound.Metadata)
}

func TestCredentialsRepository_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := auth.NewCredentialsRepository(db)

	_, err := repo.Create(ctx, newPending(seedAccount(t, db, "Jane"), "jane@example.com"))
	require.NoError(t, err)

	other, err := repo.Create(ctx, newPending(seedAccount(t, db, "John"), "john@example.com"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newPending(other.UserID, "jane@example.com"))
	assert.True(t, auth.IsDuplicateEmail(err), "unexpected error %v", err)

	_, err = repo.UpdateEmail(ctx, other.ID, "jane@example.com")
	assert.True(t, auth.IsDuplicateEmail(err), "unexpected error %v", err)

	stored, err := repo.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "john@example.com", stored.Email)
}

func TestCredentialsRepository_Updates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := auth.NewCredentialsRepository(db)

	created, err := repo.Create(ctx, newPending(seedAccount(t, db, "Jane"), "jane@example.com"))
	require.NoError(t, err)

	active, err := repo.SetDisabled(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, active.Disabled)

	moved, err := repo.UpdateEmail(ctx, created.ID, "jane.doe@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", moved.Email)
	assert.False(t, moved.Disabled)

	_, err = repo.FindByEmail(ctx, "jane@example.com")
	assert.True(t, auth.IsCredentialNotFound(err))
}

func TestCredentialsRepository_NotImplemented(t *testing.T) {
	db := setupTestDB(t)
	repo := auth.NewCredentialsRepository(db)

	records, err := repo.ListAll(context.Background())
	assert.Nil(t, records)
	assert.True(t, auth.IsNotImplemented(err))

	assert.True(t, auth.IsNotImplemented(repo.Delete(context.Background(), 1)))
}

func TestCredentialsRepository_RunInTx(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := auth.NewCredentialsRepository(db)
	userID := seedAccount(t, db, "Jane")

	err := repo.RunInTx(ctx, func(ctx context.Context, tx auth.CredentialStore) error {
		if _, err := tx.Create(ctx, newPending(userID, "jane@example.com")); err != nil {
			return err
		}
		return auth.ErrInvalidCode
	})
	assert.True(t, auth.IsInvalidCode(err))

	_, err = repo.FindByEmail(ctx, "jane@example.com")
	assert.True(t, auth.IsCredentialNotFound(err), "rolled back insert should not be visible")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = repo.RunInTx(cancelled, func(context.Context, auth.CredentialStore) error {
		t.Fatal("fn must not run with a cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRepositoryManager(t *testing.T) {
	db := setupTestDB(t)

	manager := auth.NewRepositoryManager(db)
	require.NoError(t, manager.Validate())
	assert.NotPanics(t, manager.MustValidate)
	assert.NoError(t, manager.Ping(context.Background()))
	assert.NotNil(t, manager.Credentials())

	empty := auth.NewRepositoryManager(nil)
	assert.Error(t, empty.Validate())
	assert.Panics(t, empty.MustValidate)
}

func TestService_ConcurrentRegistration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	userID := seedAccount(t, db, "Jane")

	codec, err := auth.NewJWTCodec(codecKey, "HS256")
	require.NoError(t, err)
	service := auth.NewService(auth.NewCredentialsRepository(db), codec).
		WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)).
		WithLogger(silentLogger{})

	const workers = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		succeeded  int
		duplicates int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Register(ctx, auth.RegisterInput{
				UserID:   userID,
				Email:    "jane@example.com",
				Password: "s3cret",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case auth.IsDuplicateEmail(err):
				duplicates++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, duplicates)
}

func TestService_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	userID := seedAccount(t, db, "Jane")

	var link string
	notifier := auth.NotifierFunc(func(_ context.Context, _, _, activationLink string) error {
		link = activationLink
		return nil
	})

	codec, err := auth.NewJWTCodec(codecKey, "HS256")
	require.NoError(t, err)
	sink := &recordingSink{}
	service := auth.NewService(auth.NewCredentialsRepository(db), codec).
		WithHasher(auth.NewBcryptHasher(bcrypt.MinCost)).
		WithNotifier(notifier).
		WithActivitySink(sink).
		WithLogger(silentLogger{})

	summary, err := service.Register(ctx, auth.RegisterInput{UserID: userID, Email: "jane@example.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.True(t, summary.Disabled)

	_, err = service.Login(ctx, "s3cret", "jane@example.com")
	assert.True(t, auth.IsAccountNotActivated(err))

	segment := link[strings.LastIndex(link, "/")+1:]
	id, code, err := auth.ParseActivationLink(segment)
	require.NoError(t, err)
	assert.Equal(t, summary.ID, id)

	assert.True(t, auth.IsInvalidCode(service.Activate(ctx, id, "zzzz")))
	require.NoError(t, service.Activate(ctx, id, code))

	token, err := service.Login(ctx, "s3cret", "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Jane", token.NameUser)

	me, err := service.ValidateToken(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, summary.ID, me.ID)
	assert.False(t, me.Disabled)

	_, err = service.UpdateEmail(ctx, userID, "jane.doe@example.com")
	require.NoError(t, err)

	_, err = service.ValidateToken(ctx, token.AccessToken)
	assert.True(t, auth.IsCredentialNotFound(err))

	_, err = service.Login(ctx, "s3cret", "jane.doe@example.com")
	require.NoError(t, err)

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventRegistered,
		auth.ActivityEventLoginFailure,
		auth.ActivityEventActivationFailure,
		auth.ActivityEventActivated,
		auth.ActivityEventLoginSuccess,
		auth.ActivityEventEmailUpdated,
		auth.ActivityEventTokenRejected,
		auth.ActivityEventLoginSuccess,
	}, sink.Types())
}

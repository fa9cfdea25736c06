package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
)

const (
	// LoginTokenTTL is the lifetime of tokens issued by Login
	LoginTokenTTL = 60 * time.Minute
	// TokenTypeBearer is reported in AccessToken.TokenType
	TokenTypeBearer = "bearer"
	// ClaimSubject carries the credential email
	ClaimSubject = "sub"
)

// timingPassword is hashed once and verified against on unknown emails so
// that a lookup miss costs the same as a password mismatch.
const timingPassword = "timing-equalizer-not-a-credential"

// RegisterInput is the payload for Service.Register
type RegisterInput struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Validate implements validation.Validatable
func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
	)
}

// Service orchestrates the credential lifecycle: register, activate,
// login, token validation and email updates. It keeps no mutable state of
// its own, every durable change goes through the CredentialStore.
type Service struct {
	store              CredentialStore
	codec              TokenCodec
	hasher             PasswordHasher
	codes              CodeGenerator
	notifier           Notifier
	activitySink       ActivitySink
	logger             Logger
	activationBaseURL  string
	loginTTL           time.Duration
	strictNotification bool
	now                func() time.Time

	timingHashOnce sync.Once
	timingHash     string
}

// NewService returns a Service using bcrypt, hex activation codes and a
// notifier that drops messages. Use the With* methods to replace them.
func NewService(store CredentialStore, codec TokenCodec) *Service {
	return &Service{
		store:             store,
		codec:             codec,
		hasher:            NewBcryptHasher(0),
		codes:             HexCodeGenerator{},
		notifier:          NoopNotifier{},
		activitySink:      noopActivitySink{},
		logger:            defLogger{},
		activationBaseURL: "http://localhost:4200",
		loginTTL:          LoginTokenTTL,
		now:               time.Now,
	}
}

func (s *Service) WithLogger(logger Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Service) WithHasher(hasher PasswordHasher) *Service {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

func (s *Service) WithCodeGenerator(codes CodeGenerator) *Service {
	if codes != nil {
		s.codes = codes
	}
	return s
}

func (s *Service) WithNotifier(notifier Notifier) *Service {
	if notifier != nil {
		s.notifier = notifier
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Service) WithActivitySink(sink ActivitySink) *Service {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithActivationBaseURL sets the URL prefix of activation links
func (s *Service) WithActivationBaseURL(baseURL string) *Service {
	if baseURL != "" {
		s.activationBaseURL = baseURL
	}
	return s
}

// WithLoginTTL overrides LoginTokenTTL
func (s *Service) WithLoginTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.loginTTL = ttl
	}
	return s
}

// WithStrictNotification makes Register fail with ErrDeliveryFailed when the
// notifier fails. The credential row is already committed at that point.
func (s *Service) WithStrictNotification(strict bool) *Service {
	s.strictNotification = strict
	return s
}

// WithClock overrides time.Now, used for AccessToken.ExpiresAt
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Register creates a pending credential and sends the activation link
func (s *Service) Register(ctx context.Context, input RegisterInput) (*CredentialSummary, error) {
	input.Email = strings.TrimSpace(input.Email)

	if err := input.Validate(); err != nil {
		return nil, errors.FromOzzoValidation(err, "invalid registration").
			WithCode(errors.CodeBadRequest)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	code, err := s.codes.Generate()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate activation code")
	}

	created, err := s.store.Create(ctx, &Credential{
		UserID:         input.UserID,
		Email:          input.Email,
		PasswordHash:   hash,
		Disabled:       true,
		ActivationCode: code,
	})
	if err != nil {
		s.logger.Error("Register create credential error", "email", input.Email, "error", err)
		return nil, err
	}

	s.emit(ctx, ActivityEventRegistered, created, nil)

	link := ActivationLink(s.activationBaseURL, created.ID, created.ActivationCode)
	if err := s.notifier.SendActivationEmail(ctx, created.Email, input.DisplayName, link); err != nil {
		s.logger.Error("Register activation email error", "credential_id", created.ID, "error", err)
		s.emit(ctx, ActivityEventNotificationFailure, created, map[string]any{
			"error": err.Error(),
		})
		if s.strictNotification {
			return nil, deliveryError(err, created.ID)
		}
	}

	return created.Summary(), nil
}

// Login verifies the password and issues a bearer token. A pending
// credential is rejected with ErrAccountNotActivated whether or not the
// password matched; the password is still checked first.
func (s *Service) Login(ctx context.Context, password, email string) (*AccessToken, error) {
	email = strings.TrimSpace(email)

	cred, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if !IsCredentialNotFound(err) {
			s.logger.Error("Login find credential error", "error", err)
			return nil, err
		}
		_, _ = s.hasher.Verify(password, s.equalizerHash())
		s.emit(ctx, ActivityEventLoginFailure, &Credential{Email: email}, map[string]any{
			"reason": "unknown_email",
		})
		return nil, ErrInvalidCredentials
	}

	match, err := s.hasher.Verify(password, cred.PasswordHash)
	if err != nil {
		s.logger.Error("Login verify password error", "credential_id", cred.ID, "error", err)
		return nil, err
	}

	if cred.Disabled {
		s.emit(ctx, ActivityEventLoginFailure, cred, map[string]any{
			"reason": "not_activated",
		})
		return nil, ErrAccountNotActivated
	}

	if !match {
		s.emit(ctx, ActivityEventLoginFailure, cred, map[string]any{
			"reason": "password_mismatch",
		})
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.codec.Issue(map[string]string{ClaimSubject: cred.Email}, s.loginTTL)
	if err != nil {
		s.logger.Error("Login issue token error", "credential_id", cred.ID, "error", err)
		return nil, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, cred, nil)

	return &AccessToken{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		NameUser:    cred.DisplayName(),
		UserID:      cred.UserID,
		EmailUser:   cred.Email,
		ExpiresAt:   expiresAt,
	}, nil
}

// UpdateEmail changes the email of the credential owned by userID
func (s *Service) UpdateEmail(ctx context.Context, userID int64, email string) (*CredentialSummary, error) {
	email = strings.TrimSpace(email)

	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return nil, errors.NewValidation("invalid email", errors.FieldError{
			Field:   "email",
			Message: err.Error(),
			Value:   email,
		}).WithCode(errors.CodeBadRequest)
	}

	cred, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateEmail(ctx, cred.ID, email)
	if err != nil {
		s.logger.Error("UpdateEmail store error", "credential_id", cred.ID, "error", err)
		return nil, err
	}

	s.emit(ctx, ActivityEventEmailUpdated, updated, map[string]any{
		"previous_email": cred.Email,
	})

	return updated.Summary(), nil
}

// ValidateToken verifies the token and resolves its subject. It either
// returns the subject's summary or an error, never a partial result.
func (s *Service) ValidateToken(ctx context.Context, token string) (*CredentialSummary, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		s.emit(ctx, ActivityEventTokenRejected, nil, map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	subject := claims[ClaimSubject]
	if subject == "" {
		s.emit(ctx, ActivityEventTokenRejected, nil, map[string]any{
			"error": "missing subject",
		})
		return nil, ErrInvalidToken
	}

	cred, err := s.store.FindByEmail(ctx, subject)
	if err != nil {
		if IsCredentialNotFound(err) {
			s.emit(ctx, ActivityEventTokenRejected, &Credential{Email: subject}, map[string]any{
				"error": "subject not found",
			})
		}
		return nil, err
	}

	return cred.Summary(), nil
}

// Activate moves a pending credential to active. Both the credential id
// and the code must match a stored record. Activating an active credential
// with its code is a no-op.
func (s *Service) Activate(ctx context.Context, credentialID int64, code string) error {
	code = strings.TrimSpace(code)
	if credentialID <= 0 || code == "" {
		return ErrInvalidCode
	}

	var activated *Credential
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx CredentialStore) error {
		cred, err := tx.FindByIDAndCode(ctx, credentialID, code)
		if err != nil {
			if IsCredentialNotFound(err) {
				return annotate(ErrInvalidCode, map[string]any{"credential_id": credentialID})
			}
			return err
		}

		if !cred.Disabled {
			activated = cred
			return nil
		}

		activated, err = tx.SetDisabled(ctx, cred.ID, false)
		return err
	})

	if err != nil {
		s.emit(ctx, ActivityEventActivationFailure, &Credential{ID: credentialID}, map[string]any{
			"error": err.Error(),
		})
		return err
	}

	s.emit(ctx, ActivityEventActivated, activated, nil)
	return nil
}

func (s *Service) equalizerHash() string {
	s.timingHashOnce.Do(func() {
		hash, err := s.hasher.Hash(timingPassword)
		if err != nil {
			s.logger.Warn("unable to build timing equalizer hash", "error", err)
			return
		}
		s.timingHash = hash
	})
	return s.timingHash
}

func (s *Service) emit(ctx context.Context, eventType ActivityEventType, cred *Credential, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}

	if cred != nil {
		event.CredentialID = cred.ID
		event.UserID = cred.UserID
		event.Email = cred.Email
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := normalizeActivitySink(s.activitySink).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}

func deliveryError(err error, credentialID int64) error {
	if IsDeliveryFailed(err) {
		return err
	}
	return errors.Wrap(err, ErrDeliveryFailed.Category, ErrDeliveryFailed.Message).
		WithCode(ErrDeliveryFailed.Code).
		WithTextCode(ErrDeliveryFailed.TextCode).
		WithMetadata(map[string]any{"credential_id": credentialID})
}

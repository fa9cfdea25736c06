package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// CommandTimeout bounds the work of a single command
var CommandTimeout = 10 * time.Second

type RegisterCredentialMessage struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`

	OnResponse func(summary *CredentialSummary) `json:"-"`
}

func (e RegisterCredentialMessage) Type() string { return "credential.register" }

func (e RegisterCredentialMessage) Validate() error {
	return e.input().Validate()
}

func (e RegisterCredentialMessage) input() RegisterInput {
	return RegisterInput{
		UserID:      e.UserID,
		Email:       e.Email,
		Password:    e.Password,
		DisplayName: e.DisplayName,
	}
}

type RegisterCredentialHandler struct {
	service *Service
}

func NewRegisterCredentialHandler(service *Service) *RegisterCredentialHandler {
	return &RegisterCredentialHandler{service: service}
}

func (h *RegisterCredentialHandler) Execute(ctx context.Context, event RegisterCredentialMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during credential registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterCredentialHandler) execute(ctx context.Context, event RegisterCredentialMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid registration").
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()

	summary, err := h.service.Register(ctx, event.input())
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "credential registration failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(summary)
	}

	return nil
}

package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// ActivateAccountMessage carries the <id>+<code> segment from the
// activation link, or the id and code already split.
type ActivateAccountMessage struct {
	Link         string `json:"link"`
	CredentialID int64  `json:"credential_id"`
	Code         string `json:"code"`
}

func (e ActivateAccountMessage) Type() string { return "credential.activate" }

// Validate requires either a link or both id and code
func (e ActivateAccountMessage) Validate() error {
	if e.Link != "" {
		return nil
	}
	return validation.ValidateStruct(&e,
		validation.Field(&e.CredentialID, validation.Required, validation.Min(int64(1))),
		validation.Field(&e.Code, validation.Required, validation.Length(ActivationCodeLength, ActivationCodeLength)),
	)
}

type ActivateAccountHandler struct {
	service *Service
}

func NewActivateAccountHandler(service *Service) *ActivateAccountHandler {
	return &ActivateAccountHandler{service: service}
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account activation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	if err := event.Validate(); err != nil {
		return annotate(ErrInvalidCode, map[string]any{"validation": err.Error()})
	}

	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()

	id, code := event.CredentialID, event.Code
	if event.Link != "" {
		var err error
		if id, code, err = ParseActivationLink(event.Link); err != nil {
			return err
		}
	}

	return h.service.Activate(ctx, id, code)
}

package server

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-errors"
)

type emailPayload struct {
	Email string `json:"email" form:"email"`
}

// TokenPost exchanges form encoded username and password for an access token
func (s *Server) TokenPost(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.FormValue("username"))
	password := c.FormValue("password")

	err := validation.Errors{
		"username": validation.Validate(username, validation.Required),
		"password": validation.Validate(password, validation.Required),
	}.Filter()
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid login form").
			WithCode(errors.CodeBadRequest)
	}

	token, err := s.service.Login(c.UserContext(), password, username)
	if err != nil {
		return err
	}

	return c.JSON(token)
}

// CredentialsPost registers a pending credential
func (s *Server) CredentialsPost(c *fiber.Ctx) error {
	msg := auth.RegisterCredentialMessage{}
	if err := c.BodyParser(&msg); err != nil {
		return badBody(err)
	}

	var created *auth.CredentialSummary
	msg.OnResponse = func(summary *auth.CredentialSummary) {
		created = summary
	}

	if err := s.register.Execute(c.UserContext(), msg); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// ActivateGet consumes the <id>+<code> segment of an activation link
func (s *Server) ActivateGet(c *fiber.Ctx) error {
	err := s.activate.Execute(c.UserContext(), auth.ActivateAccountMessage{
		Link: c.Params("link"),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"detail": "Account active"})
}

func (s *Server) EmailPut(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("user_id")
	if err != nil || userID <= 0 {
		return errors.New("user id must be a positive integer", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithMetadata(map[string]any{"user_id": c.Params("user_id")})
	}

	payload := emailPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	if err := validation.Validate(payload.Email, validation.Required, is.EmailFormat); err != nil {
		return errors.NewValidation("invalid email", errors.FieldError{
			Field:   "email",
			Message: err.Error(),
			Value:   payload.Email,
		}).WithCode(errors.CodeBadRequest)
	}

	summary, err := s.service.UpdateEmail(c.UserContext(), int64(userID), payload.Email)
	if err != nil {
		return err
	}

	return c.JSON(summary)
}

// RequireBearer resolves the bearer token and stores the credential in the
// request context
func (s *Server) RequireBearer(c *fiber.Ctx) error {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return auth.ErrInvalidToken
	}

	summary, err := s.service.ValidateToken(c.UserContext(), token)
	if err != nil {
		return err
	}

	c.SetUserContext(auth.WithCredentialContext(c.UserContext(), summary))
	return c.Next()
}

// MeGet returns the credential resolved by RequireBearer
func (s *Server) MeGet(c *fiber.Ctx) error {
	summary, ok := auth.CredentialFromContext(c.UserContext())
	if !ok {
		return auth.ErrInvalidToken
	}
	return c.JSON(summary)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func badBody(err error) error {
	return errors.Wrap(err, errors.CategoryBadInput, "invalid request body").
		WithCode(errors.CodeBadRequest)
}

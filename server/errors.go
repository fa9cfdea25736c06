package server

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// errorHandler renders every error as {"error": <text code>, "message": ...}
// using the go-errors code as the HTTP status.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error

	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &richErr):
		// sentinels are shared, never stamp them
		richErr = richErr.Clone()
	case errors.As(err, &fiberErr):
		richErr = errors.New(fiberErr.Message, categoryForStatus(fiberErr.Code)).
			WithCode(fiberErr.Code).
			WithTextCode(textCodeForStatus(fiberErr.Code))
	default:
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	if richErr.Code == 0 {
		richErr.WithCode(statusForCategory(richErr.Category))
	}
	if richErr.TextCode == "" {
		richErr.WithTextCode(textCodeForStatus(richErr.Code))
	}
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		richErr.WithRequestID(id)
	}

	log := s.logger.Info
	if richErr.Code >= http.StatusInternalServerError {
		log = s.logger.Error
	}
	log("request failed",
		"path", c.Path(),
		"status", richErr.Code,
		"text_code", richErr.TextCode,
		"error", richErr.Error(),
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	if richErr.Code == http.StatusUnauthorized {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	}

	body := fiber.Map{
		"error":   richErr.TextCode,
		"message": richErr.Message,
	}
	if v := richErr.ValidationMap(); len(v) > 0 {
		body["validation"] = v
	}
	if richErr.RequestID != "" {
		body["request_id"] = richErr.RequestID
	}

	return c.Status(richErr.Code).JSON(body)
}

func statusForCategory(category errors.Category) int {
	switch category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryBadInput, errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func categoryForStatus(status int) errors.Category {
	switch {
	case status == http.StatusNotFound:
		return errors.CategoryNotFound
	case status == http.StatusUnauthorized:
		return errors.CategoryAuth
	case status >= 400 && status < 500:
		return errors.CategoryBadInput
	default:
		return errors.CategoryInternal
	}
}

func textCodeForStatus(status int) string {
	text := http.StatusText(status)
	if text == "" {
		text = "Unknown Error"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

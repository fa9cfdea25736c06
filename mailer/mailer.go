// Package mailer delivers activation messages over SMTP.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/template/django/v3"
	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-errors"
	"github.com/sethvargo/go-retry"
	"gopkg.in/mail.v2"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	activationTemplate = "activation"
	DefaultSubject     = "Activate your account"
	DefaultRetries     = 3
	DefaultBackoff     = 500 * time.Millisecond
)

// Sender is implemented by *mail.Dialer
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

// Config holds the SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Subject  string
	StartTLS bool
	Retries  uint64
	Backoff  time.Duration
}

// SMTPNotifier implements auth.Notifier
type SMTPNotifier struct {
	sender   Sender
	engine   *django.Engine
	from     string
	fromName string
	subject  string
	retries  uint64
	backoff  time.Duration
	logger   auth.Logger
}

var _ auth.Notifier = (*SMTPNotifier)(nil)

// Option configures an SMTPNotifier
type Option func(*SMTPNotifier)

// WithSender replaces the SMTP dialer
func WithSender(sender Sender) Option {
	return func(n *SMTPNotifier) {
		if sender != nil {
			n.sender = sender
		}
	}
}

func WithLogger(logger auth.Logger) Option {
	return func(n *SMTPNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewSMTPNotifier builds a notifier from cfg. Zero Retries and Backoff fall
// back to the package defaults.
func NewSMTPNotifier(cfg Config, opts ...Option) (*SMTPNotifier, error) {
	if cfg.From == "" {
		return nil, errors.New("mail sender address is required", errors.CategoryBadInput)
	}

	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open mail templates")
	}

	engine := django.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load mail templates")
	}

	n := &SMTPNotifier{
		engine:   engine,
		from:     cfg.From,
		fromName: cfg.FromName,
		subject:  cfg.Subject,
		retries:  cfg.Retries,
		backoff:  cfg.Backoff,
		logger:   noopLogger{},
	}

	if n.subject == "" {
		n.subject = DefaultSubject
	}
	if n.retries == 0 {
		n.retries = DefaultRetries
	}
	if n.backoff <= 0 {
		n.backoff = DefaultBackoff
	}

	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}

	if n.sender == nil {
		if cfg.Host == "" {
			return nil, errors.New("mail host is required", errors.CategoryBadInput)
		}
		dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		if cfg.StartTLS {
			dialer.StartTLSPolicy = mail.MandatoryStartTLS
		}
		n.sender = dialer
	}

	return n, nil
}

// SendActivationEmail renders the activation message and sends it, retrying
// transport failures with exponential backoff.
func (n *SMTPNotifier) SendActivationEmail(ctx context.Context, to, displayName, activationLink string) error {
	msg, err := n.message(to, displayName, activationLink)
	if err != nil {
		return err
	}

	attempt := 0
	backoff := retry.WithMaxRetries(n.retries, retry.NewExponential(n.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := n.sender.DialAndSend(msg); err != nil {
			n.logger.Warn("activation email attempt failed", "to", to, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, auth.ErrDeliveryFailed.Category, auth.ErrDeliveryFailed.Message).
			WithCode(auth.ErrDeliveryFailed.Code).
			WithTextCode(auth.ErrDeliveryFailed.TextCode).
			WithMetadata(map[string]any{"to": to, "attempts": attempt})
	}

	n.logger.Debug("activation email sent", "to", to, "attempts", attempt)
	return nil
}

func (n *SMTPNotifier) message(to, displayName, link string) (*mail.Message, error) {
	var body bytes.Buffer
	err := n.engine.Render(&body, activationTemplate, map[string]any{
		"brand":        n.brand(),
		"display_name": displayName,
		"link":         link,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to render activation email")
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", n.from, n.fromName)
	if displayName != "" {
		msg.SetAddressHeader("To", to, displayName)
	} else {
		msg.SetHeader("To", to)
	}
	msg.SetHeader("Subject", n.subject)
	msg.SetBody("text/plain", fmt.Sprintf("Activate your account: %s", link))
	msg.AddAlternative("text/html", body.String())

	return msg, nil
}

func (n *SMTPNotifier) brand() string {
	if n.fromName != "" {
		return n.fromName
	}
	return n.from
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

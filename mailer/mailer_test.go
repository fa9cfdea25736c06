package mailer_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/mailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/mail.v2"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []*mail.Message
}

func (f *fakeSender) DialAndSend(msgs ...*mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("dial tcp: connection refused")
	}
	f.sent = append(f.sent, msgs...)
	return nil
}

func newNotifier(t *testing.T, sender mailer.Sender) *mailer.SMTPNotifier {
	t.Helper()
	n, err := mailer.NewSMTPNotifier(mailer.Config{
		From:     "noreply@example.com",
		FromName: "Example",
		Retries:  2,
		Backoff:  time.Millisecond,
	}, mailer.WithSender(sender))
	require.NoError(t, err)
	return n
}

func TestSendActivationEmail_RendersLink(t *testing.T) {
	sender := &fakeSender{}
	n := newNotifier(t, sender)

	link := auth.ActivationLink("http://localhost:4200", 7, "ab12")
	err := n.SendActivationEmail(context.Background(), "jane@example.com", "Jane", link)
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{mailer.DefaultSubject}, msg.GetHeader("Subject"))
	assert.Contains(t, msg.GetHeader("To")[0], "jane@example.com")
	assert.Contains(t, msg.GetHeader("From")[0], "noreply@example.com")

	var raw bytes.Buffer
	_, err = msg.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "http://localhost:4200/activate/7+ab12")
}

func TestSendActivationEmail_RetriesTransientFailures(t *testing.T) {
	sender := &fakeSender{failures: 2}
	n := newNotifier(t, sender)

	err := n.SendActivationEmail(context.Background(), "jane@example.com", "", "http://x/activate/1+abcd")
	require.NoError(t, err)
	assert.Equal(t, 3, sender.calls)
	assert.Len(t, sender.sent, 1)
}

func TestSendActivationEmail_DeliveryFailed(t *testing.T) {
	sender := &fakeSender{failures: 100}
	n := newNotifier(t, sender)

	err := n.SendActivationEmail(context.Background(), "jane@example.com", "Jane", "http://x/activate/1+abcd")
	require.Error(t, err)
	assert.True(t, auth.IsDeliveryFailed(err))
	assert.Equal(t, 3, sender.calls)
}

func TestSendActivationEmail_ContextCancelled(t *testing.T) {
	sender := &fakeSender{failures: 100}
	n := newNotifier(t, sender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.SendActivationEmail(ctx, "jane@example.com", "Jane", "http://x/activate/1+abcd")
	require.Error(t, err)
	assert.True(t, auth.IsDeliveryFailed(err))
	assert.Zero(t, sender.calls)
}

func TestNewSMTPNotifier_RequiresAddresses(t *testing.T) {
	_, err := mailer.NewSMTPNotifier(mailer.Config{})
	assert.Error(t, err)

	_, err = mailer.NewSMTPNotifier(mailer.Config{From: "noreply@example.com"})
	assert.Error(t, err)

	n, err := mailer.NewSMTPNotifier(mailer.Config{From: "noreply@example.com", Host: "smtp.example.com", Port: 587, StartTLS: true})
	require.NoError(t, err)
	assert.NotNil(t, n)
}

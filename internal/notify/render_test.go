package notify

import (
	"bytes"
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/project-portal/internal/queue"
)

type captureMailer struct {
	to, subject, body string
}

func (c *captureMailer) Send(_ context.Context, to, subject, body string) error {
	c.to, c.subject, c.body = to, subject, body
	return nil
}

func TestRender_KnownTypes(t *testing.T) {
	types := []string{
		queue.EventClientDesignConfirmation,
		queue.EventDeveloperDesignAlert,
		queue.EventPhaseChanged,
		queue.EventPasswordReset,
		queue.EventMagicLink,
		queue.EventClientNewMessage,
		queue.EventDeveloperNewMessage,
	}
	for _, typ := range types {
		t.Run(typ, func(t *testing.T) {
			subject, body, err := Render(queue.NotificationEvent{Type: typ, ProjectID: "WS-1", Data: map[string]string{"url": "https://x"}})
			require.NoError(t, err)
			assert.NotEmpty(t, subject)
			assert.NotEmpty(t, body)
		})
	}
}

func TestRender_Unknown(t *testing.T) {
	_, _, err := Render(queue.NotificationEvent{Type: "whatsapp_ping"})
	assert.Error(t, err)
}

func TestDeliverer_Handle(t *testing.T) {
	m := &captureMailer{}
	err := Deliverer{Mailer: m}.Handle(context.Background(), queue.NotificationEvent{
		Type:      queue.EventMagicLink,
		ProjectID: "WS-1",
		To:        "a@b.nl",
		Data:      map[string]string{"url": "https://portal/auth/magic-link/verify?token=t"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a@b.nl", m.to)
	assert.Contains(t, m.body, "token=t")
}

func TestLogMailer_OmitsBody(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	require.NoError(t, LogMailer{}.Send(context.Background(), "a@b.nl", "Reset", "open https://portal/reset-password?token=live-secret"))
	assert.Contains(t, buf.String(), "a@b.nl")
	assert.NotContains(t, buf.String(), "live-secret")
}

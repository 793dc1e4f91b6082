package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exampattern/internal/config"
)

func TestMailRendererVerificationLink(t *testing.T) {
	r := newMailRenderer("http://localhost:8080/")

	m, err := r.verification("Ada", "tok en")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/auth/verify-email?token=tok+en", m.Link)
	assert.Contains(t, m.HTML, "Welcome, Ada!")
	assert.Contains(t, m.Text, m.Link)
}

func TestMailRendererReceiptHasNoButton(t *testing.T) {
	r := newMailRenderer("http://localhost:8080")

	m, err := r.receipt(250, "19.99", "abc")
	require.NoError(t, err)
	assert.Contains(t, m.Text, "250 tokens for $19.99")
	assert.NotContains(t, m.HTML, `class="btn"`)
}

func TestBuildMIMEMessage(t *testing.T) {
	msg := string(buildMIMEMessage("App <no-reply@example.com>", "to@example.com", &renderedMail{
		Subject: "Hello",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	}))
	assert.True(t, strings.HasPrefix(msg, "From: App <no-reply@example.com>\r\n"))
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "text/plain; charset=UTF-8")
	assert.Contains(t, msg, "<p>hi</p>")
}

func TestNewMailServiceFallsBackToLogger(t *testing.T) {
	svc := NewMailService(config.SMTPConfig{}, "http://localhost")
	_, ok := svc.(*logMailService)
	assert.True(t, ok)
	assert.NoError(t, svc.SendMailToResetPassword("a@example.com", "t"))
}

package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/hildam/harvey-go/entity/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeMessage(t *testing.T) {
	raw, err := Compose(&Message{
		From:    "Harvey <harvey@acme.test>",
		To:      []string{"a@b.com"},
		Subject: "Thanks",
		Body:    "Hi,\n\n**Thanks** for your time.\n\nBest regards,\nAsha",
	})
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, "Subject: Thanks")
	assert.Contains(t, s, "To: <a@b.com>")
	assert.Contains(t, s, "multipart/alternative")
	assert.Contains(t, s, "text/plain")
	assert.Contains(t, s, "text/html")
	assert.Contains(t, s, "Message-Id:")
}

func TestComposeRejectsBadInput(t *testing.T) {
	_, err := Compose(&Message{From: "harvey@acme.test", Subject: "x", Body: "y"})
	assert.Error(t, err)

	_, err = Compose(&Message{From: "not an address", To: []string{"a@b.com"}})
	assert.Error(t, err)
}

func TestOutboxRecords(t *testing.T) {
	o := NewOutbox()
	msg := &Message{From: "harvey@acme.test", To: []string{"a@b.com"}, Subject: "Hi", Body: "Hello"}
	require.NoError(t, o.Send(context.Background(), msg))

	sent := o.Sent()
	require.Len(t, sent, 1)
	assert.Same(t, msg, sent[0].Message)
	assert.True(t, strings.Contains(string(sent[0].Raw), "Hello"))
}

func TestNew(t *testing.T) {
	s, err := New(conf.MailConfig{Driver: "log"})
	require.NoError(t, err)
	assert.IsType(t, &Outbox{}, s)

	_, err = New(conf.MailConfig{Driver: "smtp"})
	assert.Error(t, err)

	s, err = New(conf.MailConfig{Driver: "smtp", SMTP: conf.SMTPConfig{Host: "mail.test", Port: 587}})
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)

	_, err = New(conf.MailConfig{Driver: "pigeon"})
	assert.Error(t, err)
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress("a@b.com"))
	assert.False(t, ValidAddress("Asha"))
	assert.False(t, ValidAddress("Asha <a@b.com>"))
	assert.False(t, ValidAddress(""))
}

func TestMarkdownToPlain(t *testing.T) {
	assert.Equal(t, "Title\nsee docs (http://x)", markdownToPlain("# Title\nsee [docs](http://x)"))
}

package mailer

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsieve/internal/config"
	"feedsieve/internal/digest"
	"feedsieve/internal/logging"
)

func message() digest.Message {
	return digest.Message{
		ID:      "1234@feedsieve",
		From:    "bot@example.com",
		To:      "me@example.com",
		Subject: "feedsieve digest: 1 article (2024-06-01)",
		HTML:    "<h1>Digest</h1>",
		Text:    "# Digest",
	}
}

func TestWriterProducesMultipartMessage(t *testing.T) {
	var buf bytes.Buffer
	res := NewWriter(&buf, logging.Discard()).Send(context.Background(), message())
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "1234@feedsieve", res.MessageID)

	out := buf.String()
	assert.Contains(t, out, "Message-ID: <1234@feedsieve>")
	assert.Contains(t, out, "To: <me@example.com>")
	assert.Contains(t, out, "multipart/alternative")
	assert.Contains(t, out, "text/plain")
	assert.Contains(t, out, "text/html")
	assert.Contains(t, out, "<h1>Digest</h1>")
}

func TestWriterSendsWithDefaultConfig(t *testing.T) {
	cfg := config.Default()
	m := message()
	m.From = cfg.Digest.From
	m.To = cfg.Digest.To()

	var buf bytes.Buffer
	res := New(cfg.SMTP, &buf, logging.Discard()).Send(context.Background(), m)
	require.True(t, res.OK, res.Error)
	assert.Contains(t, buf.String(), "To: <feedsieve@localhost>")
}

func TestBuildRejectsBadAddress(t *testing.T) {
	m := message()
	m.To = "not an address"
	_, err := Build(m)
	assert.Error(t, err)

	res := NewWriter(&bytes.Buffer{}, logging.Discard()).Send(context.Background(), m)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
}

func TestSMTPFailureIsAResult(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	s := NewSMTP(config.SMTPConfig{Host: "127.0.0.1", Port: port, TLS: "none"}, logging.Discard())
	res := s.Send(context.Background(), message())
	assert.False(t, res.OK)
	assert.True(t, strings.HasPrefix(res.Error, "smtp send:"), res.Error)
}

func TestNewPicksSender(t *testing.T) {
	_, ok := New(config.SMTPConfig{}, &bytes.Buffer{}, logging.Discard()).(*Writer)
	assert.True(t, ok)
	_, ok = New(config.SMTPConfig{Host: "smtp.example.com"}, nil, logging.Discard()).(*SMTP)
	assert.True(t, ok)
}

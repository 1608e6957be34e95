package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeHeaders(t *testing.T) {
	raw := string(compose(Message{
		From:    "noreply@lms.local",
		To:      []string{"alice@example.com", "bob@example.com"},
		Subject: "Hello",
		Body:    "line one\nline two",
	}))

	assert.True(t, strings.HasPrefix(raw, "From: noreply@lms.local\r\n"))
	assert.Contains(t, raw, "To: alice@example.com, bob@example.com\r\n")
	assert.Contains(t, raw, "Subject: Hello\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nline one\r\nline two"))
}

func TestSMTPMailerRequiresRecipients(t *testing.T) {
	m := NewSMTPMailer("localhost", "25", "", "")
	err := m.Send(context.Background(), Message{Subject: "x"})
	require.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Err = errors.New("smtp down")

	err := r.Send(context.Background(), Message{To: []string{"a@b.c"}, Subject: "s"})
	assert.EqualError(t, err, "smtp down")

	msg := <-r.Sent()
	assert.Equal(t, "s", msg.Subject)
	assert.Len(t, r.Messages(), 1)
}

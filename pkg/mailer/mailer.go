package mailer

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strings"
	"sync"
)

type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer delivers plain-text email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type smtpMailer struct {
	addr     string
	host     string
	username string
	password string
}

// NewSMTPMailer sends through host:port, authenticating with PLAIN auth when
// a username is configured.
func NewSMTPMailer(host, port, username, password string) Mailer {
	return &smtpMailer{
		addr:     net.JoinHostPort(host, port),
		host:     host,
		username: username,
		password: password,
	}
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mail %q has no recipients", msg.Subject)
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, auth, msg.From, msg.To, compose(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send mail via %s: %w", m.addr, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func compose(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

type logMailer struct{}

// NewLogMailer writes mail to the log instead of sending it, for development.
func NewLogMailer() Mailer {
	return logMailer{}
}

func (logMailer) Send(_ context.Context, msg Message) error {
	log.Printf("📧 mail to=%s subject=%q\n%s", strings.Join(msg.To, ","), msg.Subject, msg.Body)
	return nil
}

// Recorder keeps sent messages in memory. Tests use it in place of SMTP.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
	sent chan Message
}

func NewRecorder() *Recorder {
	return &Recorder{sent: make(chan Message, 16)}
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	err := r.Err
	r.mu.Unlock()

	select {
	case r.sent <- msg:
	default:
	}
	return err
}

// Sent returns a channel receiving every message passed to Send.
func (r *Recorder) Sent() <-chan Message {
	return r.sent
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

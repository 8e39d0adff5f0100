// Package mail delivers the storefront's transactional email.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// ErrMissingCredentials is returned when the SMTP user or password is unset.
var ErrMissingCredentials = errors.New("mail: missing SMTP credentials")

// Message is a plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
}

// Config holds configuration for the SMTPSender.
type Config struct {
	// Host is the SMTP server.
	// Default: "smtp.gmail.com"
	Host string

	// Port is the SMTP submission port.
	// Default: 587
	Port int

	// Username and Password authenticate with SMTP PLAIN.
	Username string
	Password string

	// From is used when a Message has no sender.
	// Default: Username
	From string

	// Timeout bounds dialing and each SMTP command.
	// Default: 15s
	Timeout time.Duration
}

// DefaultConfig returns the defaults for a Gmail submission account.
func DefaultConfig() Config {
	return Config{
		Host:    "smtp.gmail.com",
		Port:    587,
		Timeout: 15 * time.Second,
	}
}

func (c *Config) validate() error {
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	if c.Host == "" {
		c.Host = "smtp.gmail.com"
	}
	if c.Port < 1 {
		c.Port = 587
	}
	if c.From == "" {
		c.From = c.Username
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	return nil
}

// SMTPSender sends messages through an SMTP server, one connection per message.
type SMTPSender struct {
	client *gomail.Client
	from   string
	logger *slog.Logger
}

// NewSMTPSender creates a new SMTPSender.
func NewSMTPSender(config Config, logger *slog.Logger) (*SMTPSender, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := gomail.NewClient(config.Host,
		gomail.WithPort(config.Port),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(config.Username),
		gomail.WithPassword(config.Password),
		gomail.WithTimeout(config.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("mail: create client: %w", err)
	}

	return &SMTPSender{client: client, from: config.From, logger: logger}, nil
}

// Send delivers msg.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mail: send to %s: %w", msg.To, err)
	}
	s.logger.DebugContext(ctx, "mail sent", "subject", msg.Subject)
	return nil
}

func (s *SMTPSender) build(msg Message) (*gomail.Msg, error) {
	from := msg.From
	if from == "" {
		from = s.from
	}

	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("mail: from %q: %w", from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail: to %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	return m, nil
}

// Recorder is a Sender that keeps messages in memory instead of delivering them.
// It fails every send while Err is set.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

// Send records msg, or returns r.Err.
func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

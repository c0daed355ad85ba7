package email

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/rdv-api/internal/config"
	"github.com/jwalitptl/rdv-api/pkg/circuitbreaker"
)

// Message is one outbound email. Bodies are HTML.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Error codes stored with failed deliveries.
const (
	ErrorCodeSMTP        = "smtp_error"
	ErrorCodeCircuitOpen = "circuit_open"
	ErrorCodeCanceled    = "canceled"
)

// ErrorCode classifies a Send error for the retry queue.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		return ErrorCodeCircuitOpen
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeCanceled
	default:
		return ErrorCodeSMTP
	}
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends through an SMTP relay behind a circuit breaker.
type SMTPSender struct {
	dialer   dialer
	from     string
	fromName string
	cb       *circuitbreaker.CircuitBreaker
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.From,
		fromName: cfg.FromName,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "smtp",
			MaxFailures: 5,
		}),
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("email has no recipient")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.Body)

	err := s.cb.Execute(func() error {
		return s.dialer.DialAndSend(m)
	})
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

package mailer

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// defaultSMTPTimeout bounds a send whose context carries no deadline.
const defaultSMTPTimeout = 30 * time.Second

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender delivers HTML mail through an SMTP relay, upgrading with
// STARTTLS when the server offers it. Every send dials its own connection
// and that connection is closed as soon as ctx ends, so an abandoned
// attempt cannot complete behind the caller's back.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer net.Dialer
	now    func() time.Time
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, now: time.Now}
}

func (s *SMTPSender) Send(ctx context.Context, m *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.message(m)
	if err != nil {
		return fmt.Errorf("compose %s: %w", m.ID, err)
	}

	stop := func() bool { return false }
	dial := func(dctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := s.dialer.DialContext(dctx, network, addr)
		if err != nil {
			return nil, err
		}
		if dl, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(dl)
		}
		stop = context.AfterFunc(ctx, func() { _ = conn.Close() })
		return conn, nil
	}

	client, err := gomail.NewClient(s.cfg.Host, s.clientOptions(ctx, dial)...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	err = client.DialAndSendWithContext(ctx, msg)
	stop()
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("smtp send %s: %w", m.ID, cerr)
		}
		return fmt.Errorf("smtp send %s: %w", m.ID, err)
	}
	return nil
}

func (s *SMTPSender) clientOptions(ctx context.Context, dial gomail.DialContextFunc) []gomail.Option {
	timeout := defaultSMTPTimeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < timeout {
			timeout = d
		}
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(timeout),
		gomail.WithDialContextFunc(dial),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

func (s *SMTPSender) message(m *Message) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
		return nil, err
	}
	if err := msg.To(m.Recipients...); err != nil {
		return nil, err
	}
	msg.Subject(m.Subject)
	msg.SetDateWithValue(s.now())
	msg.SetMessageIDWithValue(m.ID + "@pricewatch")
	msg.SetBodyString(gomail.TypeTextHTML, m.Body)
	return msg, nil
}

package alert

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// EmailSink notifies the administrator mailbox over SMTP.
type EmailSink struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

func NewEmailSink(host string, port int, username, password, from, to string) *EmailSink {
	return &EmailSink{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		to:     to,
	}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(_ context.Context, a SecurityAlert) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", fmt.Sprintf("[rollcall] security alert: %s", a.Event))
	m.SetBody("text/plain", fmt.Sprintf(
		"Security alert %s\n\nUser: %s\nEvent: %s\nScore: %d\nAt: %s\nDetails: %v\n",
		a.ID, a.UserID, a.Event, a.Score, a.CreatedAt.Format("2006-01-02 15:04:05 MST"), a.Details,
	))
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	return nil
}

package services

import (
	"context"
	"fmt"
	"log"

	"gopkg.in/gomail.v2"
)

// Mailer is satisfied by *gomail.Dialer
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSink mails the commission notice to the beneficiary
type EmailSink struct {
	users  UserDirectory
	mailer Mailer
	from   string
}

func NewEmailSink(users UserDirectory, mailer Mailer, from string) *EmailSink {
	return &EmailSink{users: users, mailer: mailer, from: from}
}

// NewSMTPDialer builds the gomail dialer used by EmailSink
func NewSMTPDialer(host string, port int, user, pass string) *gomail.Dialer {
	return gomail.NewDialer(host, port, user, pass)
}

func (s *EmailSink) Notify(ctx context.Context, userID, message string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("email lookup for %s: %w", userID, err)
	}
	if user.Email == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", commissionTitle)
	m.SetBody("text/plain", message)

	// gomail has no context support; bound the send from outside
	done := make(chan error, 1)
	go func() { done <- s.mailer.DialAndSend(m) }()
	select {
	case err := <-done:
		if err != nil {
			log.Printf("Failed to send commission email to %s: %v", user.Email, err)
			return fmt.Errorf("send email to %s: %w", userID, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email to %s: %w", userID, ctx.Err())
	}
}


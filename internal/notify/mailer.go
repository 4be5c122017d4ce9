package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"TRIPCOLLAB_BACK-END/internal/config"
)

// Mailer delivers plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends email through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	config config.EmailConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates a mailer for cfg.
func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{config: cfg, send: smtp.SendMail}
}

// Send sends an email using SMTP
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	// Check if credentials are set
	if m.config.SMTPUsername == "" || m.config.SMTPPassword == "" {
		return fmt.Errorf("email credentials not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	auth := smtp.PlainAuth("", m.config.SMTPUsername, m.config.SMTPPassword, m.config.SMTPHost)

	fromEmail := m.config.FromEmail
	if fromEmail == "" {
		fromEmail = m.config.SMTPUsername
	}

	message := []byte(fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		m.config.FromName, fromEmail, to, subject, body))

	addr := m.config.SMTPHost + ":" + m.config.SMTPPort
	if err := m.send(addr, auth, fromEmail, []string{to}, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func invitationEmail(destination, inviter, link string) (string, string) {
	subject := fmt.Sprintf("You're invited to plan a trip to %s", destination)
	body := fmt.Sprintf(`
Hello,

%s invited you to plan a group trip to %s.

Sign in with this email address to accept or decline the invitation:
%s

Best regards,
TripCollab Team
`, inviter, destination, link)
	return subject, body
}

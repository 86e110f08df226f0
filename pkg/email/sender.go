package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/maritimeconnect/mir/pkg/config"
	"github.com/maritimeconnect/mir/pkg/observability"
)

// ErrNoRecipient is returned when a notification has no destination address
var ErrNoRecipient = errors.New("no recipient address")

// sendFunc delivers a single message. It matches smtp.SendMail without
// authentication so tests can substitute a recorder.
type sendFunc func(addr, from string, to []string, msg []byte) error

// Sender delivers registry notification mail through an SMTP relay
type Sender struct {
	config config.EmailConfig
	logger *observability.Logger
	send   sendFunc
}

// NewSender creates a new mail sender using the given SMTP settings
func NewSender(cfg config.EmailConfig, logger *observability.Logger) *Sender {
	return &Sender{
		config: cfg,
		logger: logger,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// SendOrgAwaitingApproval notifies the applicant that the organization was
// received and is awaiting approval
func (s *Sender) SendOrgAwaitingApproval(_ context.Context, to, orgName string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	subject := fmt.Sprintf("%s: your organization is awaiting approval", s.config.PortalName)
	body := fmt.Sprintf("Thank you for applying to %s.\r\n\r\n"+
		"The application for %q has been received and is awaiting approval by an administrator. "+
		"You will be able to sign in once the organization has been approved.\r\n",
		s.config.PortalName, orgName)
	return s.deliver(to, subject, body)
}

// SendAdminOrgAwaitingApproval notifies the registry administrator that a
// new organization application needs review
func (s *Sender) SendAdminOrgAwaitingApproval(_ context.Context, orgName string) error {
	if strings.TrimSpace(s.config.AdminEmail) == "" {
		return ErrNoRecipient
	}
	subject := fmt.Sprintf("%s: organization awaiting approval", s.config.PortalName)
	body := fmt.Sprintf("The organization %q has applied and is awaiting approval.\r\n\r\n"+
		"Review the application at %s\r\n", orgName, s.config.PortalURL)
	return s.deliver(s.config.AdminEmail, subject, body)
}

// SendUserCreated sends the new user their login name and temporary password
func (s *Sender) SendUserCreated(_ context.Context, to, userName, loginName, password string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	subject := fmt.Sprintf("%s: your account has been created", s.config.PortalName)
	body := fmt.Sprintf("Hello %s,\r\n\r\n"+
		"An account has been created for you.\r\n\r\n"+
		"Username: %s\r\nTemporary password: %s\r\n\r\n"+
		"Sign in at %s using the %s identity provider and change your password.\r\n",
		userName, loginName, password, s.config.PortalURL, s.config.PortalName)
	return s.deliver(to, subject, body)
}

func (s *Sender) deliver(to, subject, body string) error {
	msg := buildMessage(s.config.From, to, subject, body)
	addr := net.JoinHostPort(s.config.Host, s.config.Port)
	if err := s.send(addr, s.config.From, []string{to}, msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	s.logger.WithFields(map[string]interface{}{
		"to":      to,
		"subject": subject,
	}).Debug("sent notification mail")
	return nil
}

// buildMessage assembles an RFC 5322 message with CRLF line endings
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

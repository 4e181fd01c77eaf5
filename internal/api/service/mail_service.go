package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipflow"

	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"
)

const mailTimeout = 30 * time.Second

var (
	ErrSmtpNotConfigured = errors.New("smtp not configured")
	ErrNoRecipients      = errors.New("no recipients")
)

// EmailMessage is a plain text notification.
type EmailMessage struct {
	To      []string
	Subject string
	Body    string
}

// SmtpSettings is the part of the SMTP configuration the mailer needs.
type SmtpSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

type MailService struct {
	smtp   SmtpSettings
	logger zerolog.Logger
}

func NewMailService() *MailService {
	cfg := clipflow.GetConfig().SmtpConfig
	return NewMailServiceWith(SmtpSettings{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		UseTLS:   cfg.UseTLS,
	})
}

func NewMailServiceWith(smtp SmtpSettings) *MailService {
	return &MailService{smtp: smtp, logger: clipflow.Logger}
}

func (s *MailService) Configured() bool {
	return s.smtp.Host != ""
}

// Send delivers msg through the configured relay. The sender is SMTP_FROM, or the SMTP user when
// it is empty.
func (s *MailService) Send(ctx context.Context, msg EmailMessage) error {
	if !s.Configured() {
		return ErrSmtpNotConfigured
	}
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	m, err := s.message(msg)
	if err != nil {
		return err
	}
	client, err := gomail.NewClient(s.smtp.Host, s.options()...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	s.logger.Info().Strs("to", msg.To).Str("subject", msg.Subject).Msg("Email sent")
	return nil
}

func (s *MailService) message(msg EmailMessage) (*gomail.Msg, error) {
	from := s.smtp.From
	if from == "" {
		from = s.smtp.Username
	}
	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("set sender %q: %w", from, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return m, nil
}

func (s *MailService) options() []gomail.Option {
	policy := gomail.TLSOpportunistic
	if s.smtp.UseTLS {
		policy = gomail.TLSMandatory
	}
	opts := []gomail.Option{
		gomail.WithPort(s.smtp.Port),
		gomail.WithTLSPolicy(policy),
		gomail.WithTimeout(mailTimeout),
	}
	if s.smtp.Password != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.smtp.Username),
			gomail.WithPassword(s.smtp.Password),
		)
	}
	return opts
}

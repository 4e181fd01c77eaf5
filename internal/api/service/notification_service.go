package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"clipflow"
	"clipflow/internal/engine"

	"github.com/rs/zerolog"
)

type mailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// NotificationService tells execution owners about failed runs by email.
type NotificationService struct {
	mail    mailSender
	enabled bool
	logger  zerolog.Logger
}

func NewNotificationService() *NotificationService {
	mail := NewMailService()
	enabled := clipflow.GetConfig().SmtpConfig.Enabled && mail.Configured()
	return newNotificationService(mail, enabled)
}

func newNotificationService(mail mailSender, enabled bool) *NotificationService {
	return &NotificationService{mail: mail, enabled: enabled, logger: clipflow.Logger}
}

// ExecutionFinished is called once per execution when it reaches a terminal status. The email
// is sent in the background so the scheduler is never held by SMTP.
func (slf *NotificationService) ExecutionFinished(rec engine.Record) {
	if !slf.enabled || rec.Status != engine.ExecutionFailed || rec.UserEmail == "" {
		return
	}
	msg := failureEmail(rec)
	go func() {
		if err := slf.mail.Send(context.Background(), msg); err != nil {
			slf.logger.Error().Err(err).Str("executionId", rec.ID).Msg("Failed to send failure email")
		}
	}()
}

func failureEmail(rec engine.Record) EmailMessage {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your workflow execution %s failed.\n", rec.ID)
	if rec.ErrorMessage != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", rec.ErrorMessage)
	}

	ids := make([]string, 0, len(rec.NodeStates))
	for id, st := range rec.NodeStates {
		if st.Status == engine.NodeFailed && st.Error != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		sb.WriteString("\nFailed nodes:\n")
		for _, id := range ids {
			e := rec.NodeStates[id].Error
			fmt.Fprintf(&sb, "- %s: [%s] %s\n", id, e.Code, e.Message)
		}
	}
	if rec.CreditsUsed > 0 {
		fmt.Fprintf(&sb, "\nCredits used: %d\n", rec.CreditsUsed)
	}

	return EmailMessage{
		To:      []string{rec.UserEmail},
		Subject: "Workflow execution failed",
		Body:    sb.String(),
	}
}

package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// EmailSender is the part of the Resend client used here.
type EmailSender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

var emailBody = template.Must(template.New("run").Parse(`Tax rate update run {{.RunID}}

Verdict: {{.Verdict}}
Gate decision: {{.GateDecision}}
Change: {{printf "%.2f" .ChangePercent}}%

{{.Summary}}
{{if .StructuralChanges}}
Structural changes:
{{range .StructuralChanges}}  - {{.}}
{{end}}{{end}}{{if .Error}}
Error: {{.Error}}
{{end}}`))

// Email sends notifications through Resend.
type Email struct {
	sender EmailSender
	from   string
	to     []string
	logger *zap.Logger
}

// NewEmail creates a Resend notifier from an API key.
func NewEmail(apiKey, from string, to []string, logger *zap.Logger) *Email {
	return NewEmailWithSender(resend.NewClient(apiKey).Emails, from, to, logger)
}

// NewEmailWithSender wraps an existing sender.
func NewEmailWithSender(sender EmailSender, from string, to []string, logger *zap.Logger) *Email {
	return &Email{sender: sender, from: from, to: to, logger: logger}
}

func (e *Email) Notify(ctx context.Context, n Notification) error {
	var body bytes.Buffer
	if err := emailBody.Execute(&body, n); err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	sent, err := e.sender.Send(&resend.SendEmailRequest{
		From:    e.from,
		To:      e.to,
		Subject: fmt.Sprintf("[taxrates] update run %s: %s", n.Verdict, n.GateDecision),
		Text:    body.String(),
		Tags: []resend.Tag{
			{Name: "category", Value: "rate_update"},
		},
	})
	if err != nil {
		e.logger.Error("failed to send notification email", zap.Error(err), zap.Strings("to", e.to))
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info("notification email sent", zap.String("email_id", sent.Id), zap.Strings("to", e.to))
	return nil
}

// Package mail renders and dispatches account emails. Delivery transport is
// a collaborator concern; the implementations here render the message and
// hand it to a sink, which in production is the process log and in tests a
// capture function.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"
)

// Confirmation carries everything the confirmation email needs.
type Confirmation struct {
	Email   string
	Link    string
	Profile map[string]any
}

// Rendered is a fully rendered outbound message.
type Rendered struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers the registration confirmation message.
type Mailer interface {
	SendConfirmation(ctx context.Context, msg Confirmation) error
}

const confirmationSubject = "Confirm your account"

var confirmationTemplate = template.Must(template.New("confirmation").Parse(
	`Hello{{with .Profile.name}} {{.}}{{end}},

An account was registered for {{.Email}}.

Confirm it by opening the link below:

{{.Link}}

If you did not register this account, ignore this message.
`))

// TemplateMailer renders the confirmation template and passes the result to
// Sink. The default sink logs the message, which is enough for environments
// where real delivery is wired up out-of-process.
type TemplateMailer struct {
	logger *slog.Logger

	// Sink receives every rendered message. Overridable so tests can
	// capture and preview outbound mail.
	Sink func(ctx context.Context, msg Rendered) error
}

func NewTemplateMailer(logger *slog.Logger) *TemplateMailer {
	m := &TemplateMailer{logger: logger}
	m.Sink = m.logSink
	return m
}

func (m *TemplateMailer) SendConfirmation(ctx context.Context, msg Confirmation) error {
	var body bytes.Buffer
	if err := confirmationTemplate.Execute(&body, msg); err != nil {
		return fmt.Errorf("mail: render confirmation: %w", err)
	}
	return m.Sink(ctx, Rendered{
		To:      msg.Email,
		Subject: confirmationSubject,
		Body:    body.String(),
	})
}

func (m *TemplateMailer) logSink(ctx context.Context, msg Rendered) error {
	m.logger.InfoContext(ctx, "outbound mail",
		"to", msg.To,
		"subject", msg.Subject,
		"bytes", len(msg.Body),
	)
	return nil
}

package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
)

var (
	// ErrInvalidMessage is returned when a message is missing a recipient
	// or subject.
	ErrInvalidMessage = errors.New("mailer: invalid message")

	// ErrSendFailed is returned when the delivery backend rejects the
	// message.
	ErrSendFailed = errors.New("mailer: send failed")
)

// Message is a single email to deliver.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a rendered message. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Kind selects which transactional email to send.
type Kind string

const (
	// KindActivation carries an activation token for accounts that have
	// never set a credential.
	KindActivation Kind = "activation"

	// KindReset carries a password reset token.
	KindReset Kind = "reset"

	// KindVerification re-sends the email verification link to an
	// account that already has credentials.
	KindVerification Kind = "verification"
)

var subjects = map[Kind]string{
	KindActivation:   "Complete your registration",
	KindReset:        "Reset your password",
	KindVerification: "Please verify your email",
}

var bodyTemplates = map[Kind]*template.Template{
	KindActivation: template.Must(template.New("activation").Parse(
		`<p>Welcome. To finish creating your account, <a href="{{.Link}}">set your password</a>.</p>`)),
	KindReset: template.Must(template.New("reset").Parse(
		`<p>We received a request to reset your password. <a href="{{.Link}}">Choose a new password</a>. If you did not make this request, you can ignore this email.</p>`)),
	KindVerification: template.Must(template.New("verification").Parse(
		`<p>You already have an account. <a href="{{.Link}}">Verify your email</a> to continue.</p>`)),
}

// Mailer renders transactional emails and hands them to a Sender.
type Mailer struct {
	sender Sender
}

// New builds a Mailer on top of sender.
func New(sender Sender) *Mailer {
	return &Mailer{sender: sender}
}

// SendTokenEmail renders the email for kind with the given token link and
// dispatches it.
func (m *Mailer) SendTokenEmail(ctx context.Context, kind Kind, to, link string) error {
	if to == "" {
		return fmt.Errorf("%w: no recipient", ErrInvalidMessage)
	}
	tmpl, ok := bodyTemplates[kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, kind)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, struct{ Link string }{Link: link}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	msg := Message{
		To:       to,
		Subject:  subjects[kind],
		HTMLBody: body.String(),
		TextBody: link,
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Package sesmail delivers mailer messages through AWS SES.
package sesmail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/guardian/gateway-sub002/mailer"
)

// Sender implements mailer.Sender using AWS SES.
type Sender struct {
	client      *ses.Client
	fromAddress string
}

// New creates an SES-backed sender. fromAddress must be a verified SES
// identity.
func New(client *ses.Client, fromAddress string) *Sender {
	return &Sender{client: client, fromAddress: fromAddress}
}

// NewFromEnv builds a sender from the ambient AWS configuration (environment,
// shared config files, instance metadata).
func NewFromEnv(ctx context.Context, fromAddress string) (*Sender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("sesmail: loading aws config: %w", err)
	}
	return New(ses.NewFromConfig(cfg), fromAddress), nil
}

// Send delivers msg via SES.
func (s *Sender) Send(ctx context.Context, msg mailer.Message) error {
	body := &types.Body{}
	if msg.TextBody != "" {
		body.Text = &types.Content{
			Data:    aws.String(msg.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{
			Data:    aws.String(msg.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}

	input := &ses.SendEmailInput{
		Source:      aws.String(s.fromAddress),
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: body,
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("sesmail: sending to %s: %w", msg.To, err)
	}
	return nil
}

package transport

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/teemow/mailout/internal/config"
	"github.com/teemow/mailout/internal/mailerr"
	"github.com/teemow/mailout/internal/message"
)

// SendEmailAPI is the SES v2 SendEmail operation.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES sends raw messages through AWS SES v2.
type SES struct {
	client SendEmailAPI
	sender string
}

// NewSES loads AWS configuration for cfg.Region. Static keys from cfg are
// used when both are set; otherwise the default credential chain applies.
func NewSES(ctx context.Context, cfg config.SESConfig) (*SES, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, mailerr.Configuration("transport.ses", "failed to load AWS config: %v", err)
	}
	return NewSESWithClient(sesv2.NewFromConfig(awsCfg), cfg.Sender), nil
}

// NewSESWithClient returns an SES transport using client. A non-empty
// sender overrides the envelope sender of each payload.
func NewSESWithClient(client SendEmailAPI, sender string) *SES {
	return &SES{client: client, sender: sender}
}

// Name returns "ses".
func (s *SES) Name() string { return config.TransportSES }

// Send submits p as raw content. SES returns the message id.
func (s *SES) Send(ctx context.Context, p *message.Payload) (Result, error) {
	from := p.Sender
	if s.sender != "" {
		from = s.sender
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: p.Recipients},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: p.Data},
		},
	})
	if err != nil {
		return Result{}, mailerr.Transport("transport.ses", err)
	}

	id := aws.ToString(out.MessageId)
	if id == "" {
		return Result{}, mailerr.Transport("transport.ses", fmt.Errorf("SES returned no message id"))
	}
	return Result{ID: id, Transport: s.Name()}, nil
}

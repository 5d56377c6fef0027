// Package mainconfig holds wiring shared by the binaries under cmd/.
package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/odonto-agent/internal/config"
)

// LoadAWSConfig centralizes AWS SDK initialization so LocalStack and
// production share the same wiring. AWS_ENDPOINT_OVERRIDE points every
// client at one endpoint.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
	}
	return awsCfg, nil
}

// AWSClients are the service clients used by the lead sinks and notifier.
type AWSClients struct {
	S3    *s3.Client
	SQS   *sqs.Client
	SESv2 *sesv2.Client
}

// NewAWSClients builds the clients. LocalStack needs path-style S3 addressing.
func NewAWSClients(awsCfg aws.Config, cfg *appconfig.Config) AWSClients {
	pathStyle := strings.TrimSpace(cfg.AWSEndpointOverride) != ""
	return AWSClients{
		S3: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = pathStyle
		}),
		SQS:   sqs.NewFromConfig(awsCfg),
		SESv2: sesv2.NewFromConfig(awsCfg),
	}
}

// NeedsAWS reports whether any configured feature talks to AWS.
func NeedsAWS(cfg *appconfig.Config) bool {
	return (cfg.HasSink("s3") && cfg.LeadsArchiveBucket != "") ||
		(cfg.HasSink("sqs") && cfg.LeadsQueueURL != "") ||
		cfg.SESFromEmail != ""
}

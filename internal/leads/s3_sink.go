package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/odonto-agent/internal/dialogue"
)

// S3API is the subset of the S3 client used by S3Sink.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink archives each lead as one JSON object.
type S3Sink struct {
	client S3API
	bucket string
}

// NewS3Sink returns nil when bucket or client is missing, so callers can skip it.
func NewS3Sink(client S3API, bucket string) *S3Sink {
	if client == nil || bucket == "" {
		return nil
	}
	return &S3Sink{client: client, bucket: bucket}
}

// Append writes leads/v1/by-date/YYYY/MM/DD/<id>.json.
func (s *S3Sink) Append(ctx context.Context, rec dialogue.LeadRecord) error {
	lead := FromRecord(rec)
	data, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("leads: marshal lead: %w", err)
	}
	ts := lead.CreatedAt
	key := fmt.Sprintf("leads/v1/by-date/%d/%02d/%02d/%s.json", ts.Year(), ts.Month(), ts.Day(), lead.ID)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("leads: s3 put %s: %w", key, err)
	}
	return nil
}

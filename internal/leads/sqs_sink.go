package leads

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/odonto-agent/internal/dialogue"
)

// SQSAPI is the subset of the SQS client used by SQSSink.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink publishes each lead for downstream CRM workers.
type SQSSink struct {
	client   SQSAPI
	queueURL string
}

// NewSQSSink returns nil when queueURL or client is missing.
func NewSQSSink(client SQSAPI, queueURL string) *SQSSink {
	if client == nil || queueURL == "" {
		return nil
	}
	return &SQSSink{client: client, queueURL: queueURL}
}

// Append sends the lead as a JSON message body.
func (s *SQSSink) Append(ctx context.Context, rec dialogue.LeadRecord) error {
	lead := FromRecord(rec)
	body, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("leads: marshal lead: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"channel": {DataType: aws.String("String"), StringValue: aws.String(lead.Channel)},
		},
	})
	if err != nil {
		return fmt.Errorf("leads: failed to send SQS message: %w", err)
	}
	return nil
}

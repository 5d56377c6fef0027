package leads

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestNewS3Sink_Unconfigured(t *testing.T) {
	assert.Nil(t, NewS3Sink(nil, "bucket"))
	assert.Nil(t, NewS3Sink(&fakeS3{}, ""))
}

func TestS3Sink_AppendWritesDatedKey(t *testing.T) {
	client := &fakeS3{}
	sink := NewS3Sink(client, "odonto-leads")
	require.NotNil(t, sink)

	require.NoError(t, sink.Append(context.Background(), sampleRecord()))
	require.NotNil(t, client.input)
	assert.Equal(t, "odonto-leads", aws.ToString(client.input.Bucket))
	assert.Equal(t, "application/json", aws.ToString(client.input.ContentType))
	assert.Regexp(t, regexp.MustCompile(`^leads/v1/by-date/2025/08/20/[0-9a-f-]{36}\.json$`), aws.ToString(client.input.Key))

	var lead Lead
	require.NoError(t, json.Unmarshal(client.body, &lead))
	assert.Equal(t, "Maria Silva", lead.Name)
	assert.Equal(t, "manhã", lead.Period)
}

func TestS3Sink_AppendError(t *testing.T) {
	sink := NewS3Sink(&fakeS3{err: errors.New("access denied")}, "odonto-leads")
	err := sink.Append(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNewSQSSink_Unconfigured(t *testing.T) {
	assert.Nil(t, NewSQSSink(nil, "https://sqs/queue"))
	assert.Nil(t, NewSQSSink(&fakeSQS{}, ""))
}

func TestSQSSink_AppendSendsJSON(t *testing.T) {
	client := &fakeSQS{}
	sink := NewSQSSink(client, "https://sqs.sa-east-1.amazonaws.com/123/leads")
	require.NoError(t, sink.Append(context.Background(), sampleRecord()))

	require.NotNil(t, client.input)
	assert.Equal(t, "https://sqs.sa-east-1.amazonaws.com/123/leads", aws.ToString(client.input.QueueUrl))
	attr, ok := client.input.MessageAttributes["channel"]
	require.True(t, ok)
	assert.Equal(t, "twilio-sandbox", aws.ToString(attr.StringValue))

	var lead Lead
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &lead))
	assert.Equal(t, "+5532991413852", lead.UserID)
	assert.Equal(t, "Terça 09:30 – Dra. Ana", lead.Slot)
}

func TestSQSSink_AppendError(t *testing.T) {
	sink := NewSQSSink(&fakeSQS{err: errors.New("throttled")}, "q")
	err := sink.Append(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SQS")
}

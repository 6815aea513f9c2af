package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"listingpilot/backend/internal/models"
	"listingpilot/backend/internal/orchestrator"
)

type stubHandler struct {
	results map[string]models.OperationResult
	sources []string
}

func (h *stubHandler) HandleRaw(ctx context.Context, data []byte, source string) models.OperationResult {
	h.sources = append(h.sources, source)
	if res, ok := h.results[string(data)]; ok {
		return res
	}
	return models.Failed("unexpected body")
}

type mockSQSClient struct {
	mock.Mock
}

func (m *mockSQSClient) ReceiveMessages(ctx context.Context, queueURL string, waitSeconds int32) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(queueURL, waitSeconds)
	out, _ := args.Get(0).(*sqs.ReceiveMessageOutput)
	return out, args.Error(1)
}

func (m *mockSQSClient) DeleteMessage(ctx context.Context, queueURL string, receiptHandle *string) error {
	return m.Called(queueURL, aws.ToString(receiptHandle)).Error(0)
}

func TestNATSResponder_Process(t *testing.T) {
	h := &stubHandler{results: map[string]models.OperationResult{
		`{"action":"ping"}`: {Success: true},
	}}
	r := &NATSResponder{handler: h}

	reply := r.process(context.Background(), []byte(`{"action":"ping"}`))

	var res models.OperationResult
	require.NoError(t, json.Unmarshal(reply, &res))
	assert.True(t, res.Success)
	assert.JSONEq(t, `{"success":true}`, string(reply))
	assert.Equal(t, []string{SourceNATS}, h.sources)
}

func TestSQSConsumer_DeletesHandledMessages(t *testing.T) {
	h := &stubHandler{results: map[string]models.OperationResult{
		"ok":   models.Succeeded(orchestrator.SuccessMessage),
		"bad":  models.Failed("Unknown action: x"),
		"busy": models.Failed(orchestrator.BusyMessage),
		"map":  models.Failed(orchestrator.MappingMessage),
	}}
	client := new(mockSQSClient)
	client.On("ReceiveMessages", "queue-url", int32(20)).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{
			{MessageId: aws.String("1"), Body: aws.String("ok"), ReceiptHandle: aws.String("h-ok")},
			{MessageId: aws.String("2"), Body: aws.String("bad"), ReceiptHandle: aws.String("h-bad")},
			{MessageId: aws.String("3"), Body: aws.String("busy"), ReceiptHandle: aws.String("h-busy")},
			{MessageId: aws.String("4"), Body: aws.String("map"), ReceiptHandle: aws.String("h-map")},
		},
	}, nil)
	client.On("DeleteMessage", "queue-url", "h-ok").Return(nil)
	client.On("DeleteMessage", "queue-url", "h-bad").Return(nil)

	c := NewSQSConsumer(client, "queue-url", 20, h)
	require.NoError(t, c.poll(context.Background()))

	client.AssertExpectations(t)
	client.AssertNotCalled(t, "DeleteMessage", "queue-url", "h-busy")
	client.AssertNotCalled(t, "DeleteMessage", "queue-url", "h-map")
	assert.Equal(t, []string{SourceSQS, SourceSQS, SourceSQS, SourceSQS}, h.sources)
}

func TestSQSConsumer_RunStopsOnCancel(t *testing.T) {
	client := new(mockSQSClient)
	client.On("ReceiveMessages", "queue-url", int32(1)).Return(nil, errors.New("aws error"))

	c := NewSQSConsumer(client, "queue-url", 1, &stubHandler{})
	c.backoff = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
	client.AssertCalled(t, "ReceiveMessages", "queue-url", int32(1))
}

func mockSQSMiddleware(output interface{}, err error) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Finalize.Add(
			middleware.FinalizeMiddlewareFunc("MockMiddleware", func(context.Context, middleware.FinalizeInput, middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
				return middleware.FinalizeOutput{Result: output}, middleware.Metadata{}, err
			}),
			middleware.Before,
		)
	}
}

func TestAWSSQSClient(t *testing.T) {
	output := &sqs.ReceiveMessageOutput{
		Messages: []types.Message{{Body: aws.String(`{"action":"ping"}`), ReceiptHandle: aws.String("handle")}},
	}
	client := NewSQSClient(sqs.NewFromConfig(aws.Config{Region: "us-east-1"}, func(o *sqs.Options) {
		o.APIOptions = append(o.APIOptions, mockSQSMiddleware(output, nil))
	}))

	got, err := client.ReceiveMessages(context.TODO(), "queue-url", 1)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, `{"action":"ping"}`, aws.ToString(got.Messages[0].Body))

	failing := NewSQSClient(sqs.NewFromConfig(aws.Config{Region: "us-east-1"}, func(o *sqs.Options) {
		o.APIOptions = append(o.APIOptions, mockSQSMiddleware(nil, errors.New("aws error")))
	}))
	err = failing.DeleteMessage(context.TODO(), "queue-url", aws.String("handle"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete message")
}

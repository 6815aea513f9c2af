package transport

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	config_aws "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"listingpilot/backend/internal/orchestrator"
)

const SourceSQS = "sqs"

type SQSClient interface {
	ReceiveMessages(ctx context.Context, queueURL string, waitSeconds int32) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, queueURL string, receiptHandle *string) error
}

type AWSSQSClient struct {
	Client *sqs.Client
}

func NewSQSClient(client *sqs.Client) SQSClient {
	return &AWSSQSClient{Client: client}
}

// NewDefaultSQSClient builds a client from the ambient AWS configuration.
func NewDefaultSQSClient(ctx context.Context) (SQSClient, error) {
	awsCfg, err := config_aws.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewSQSClient(sqs.NewFromConfig(awsCfg)), nil
}

func (c *AWSSQSClient) ReceiveMessages(ctx context.Context, queueURL string, waitSeconds int32) (*sqs.ReceiveMessageOutput, error) {
	return c.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     waitSeconds,
	})
}

func (c *AWSSQSClient) DeleteMessage(ctx context.Context, queueURL string, receiptHandle *string) error {
	_, err := c.Client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// SQSConsumer long-polls one queue and handles messages one at a time. A
// message rejected because a post is in flight is left on the queue so the
// visibility timeout redelivers it.
type SQSConsumer struct {
	client      SQSClient
	queueURL    string
	waitSeconds int32
	handler     Handler
	backoff     time.Duration
}

func NewSQSConsumer(client SQSClient, queueURL string, waitSeconds int, handler Handler) *SQSConsumer {
	return &SQSConsumer{
		client:      client,
		queueURL:    queueURL,
		waitSeconds: int32(waitSeconds),
		handler:     handler,
		backoff:     5 * time.Second,
	}
}

// Run blocks until ctx is done.
func (c *SQSConsumer) Run(ctx context.Context) {
	log.Printf("📡 Polling SQS queue %s", c.queueURL)
	for {
		if ctx.Err() != nil {
			log.Printf("🛑 SQS consumer stopped")
			return
		}
		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("❌ SQS receive failed: %v", err)
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
			}
		}
	}
}

func (c *SQSConsumer) poll(ctx context.Context) error {
	out, err := c.client.ReceiveMessages(ctx, c.queueURL, c.waitSeconds)
	if err != nil {
		return err
	}
	for _, msg := range out.Messages {
		body := aws.ToString(msg.Body)
		result := c.handler.HandleRaw(ctx, []byte(body), SourceSQS)
		if orchestrator.IsBusy(result) {
			log.Printf("⏳ %s, leaving message %s for redelivery", result.Error, aws.ToString(msg.MessageId))
			continue
		}
		if result.Success {
			log.Printf("✅ SQS message %s handled", aws.ToString(msg.MessageId))
		} else {
			log.Printf("⚠️ SQS message %s failed: %s", aws.ToString(msg.MessageId), result.Error)
		}
		if err := c.client.DeleteMessage(ctx, c.queueURL, msg.ReceiptHandle); err != nil {
			log.Printf("❌ %v", err)
		}
	}
	return nil
}

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/metrics"
)

// SQS queue naming convention:
//   {prefix}-{handler_type}  -- one work queue per handler type

// SQSAPI is the subset of the SQS client the dispatcher uses.
type SQSAPI interface {
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSDispatcher delivers due jobs to per-handler-type SQS work queues.
type SQSDispatcher struct {
	client      SQSAPI
	queuePrefix string

	queueURLsMu sync.RWMutex
	queueURLs   map[string]string
}

// NewSQSDispatcher creates an SQS dispatcher. queuePrefix namespaces the
// work queues, e.g. "retryd" yields "retryd-async-continuation".
func NewSQSDispatcher(client SQSAPI, queuePrefix string) *SQSDispatcher {
	return &SQSDispatcher{
		client:      client,
		queuePrefix: queuePrefix,
		queueURLs:   make(map[string]string),
	}
}

// Dispatch sends the job's envelope to the work queue for its handler type.
func (d *SQSDispatcher) Dispatch(ctx context.Context, job *core.Job) error {
	queueURL, err := d.getOrCreateQueueURL(ctx, job.HandlerType)
	if err != nil {
		return err
	}

	body, err := json.Marshal(NewEnvelope(job))
	if err != nil {
		return fmt.Errorf("encode dispatch envelope: %w", err)
	}

	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"job_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.ID),
			},
			"handler_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.HandlerType),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SQS SendMessage: %w", err)
	}

	metrics.JobsDispatched.Inc()
	return nil
}

// Close releases dispatcher resources. The SQS client has no close.
func (d *SQSDispatcher) Close() error { return nil }

func (d *SQSDispatcher) queueName(handlerType string) string {
	return d.queuePrefix + "-" + sanitizeQueueName(handlerType)
}

// sanitizeQueueName converts a handler type to an SQS-compatible name.
// SQS allows alphanumeric, hyphens, and underscores.
func sanitizeQueueName(name string) string {
	return strings.ReplaceAll(name, ".", "-")
}

// getOrCreateQueueURL gets (from cache) or creates a work queue and returns
// its URL. CreateQueue is idempotent for identical attributes.
func (d *SQSDispatcher) getOrCreateQueueURL(ctx context.Context, handlerType string) (string, error) {
	d.queueURLsMu.RLock()
	if url, ok := d.queueURLs[handlerType]; ok {
		d.queueURLsMu.RUnlock()
		return url, nil
	}
	d.queueURLsMu.RUnlock()

	name := d.queueName(handlerType)
	result, err := d.client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
		Attributes: map[string]string{
			"ReceiveMessageWaitTimeSeconds": "20",      // Long polling
			"VisibilityTimeout":             "30",      // Default 30s
			"MessageRetentionPeriod":        "1209600", // 14 days
		},
	})
	if err != nil {
		return "", fmt.Errorf("create SQS queue %s: %w", name, err)
	}

	url := *result.QueueUrl

	d.queueURLsMu.Lock()
	d.queueURLs[handlerType] = url
	d.queueURLsMu.Unlock()

	return url, nil
}

package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/procflow/retryd/internal/core"
)

type fakeSQS struct {
	created []string
	sent    []*sqs.SendMessageInput
}

func (f *fakeSQS) CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	name := aws.ToString(params.QueueName)
	f.created = append(f.created, name)
	return &sqs.CreateQueueOutput{
		QueueUrl: aws.String("http://localhost:4566/000000000000/" + name),
	}, nil
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, params)
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSDispatcher_Dispatch(t *testing.T) {
	client := &fakeSQS{}
	d := NewSQSDispatcher(client, "retryd")

	job := &core.Job{
		ID:          "job-1",
		HandlerType: core.HandlerAsyncContinuation,
		Retries:     2,
	}
	if err := d.Dispatch(context.Background(), job); err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}

	if len(client.created) != 1 || client.created[0] != "retryd-async-continuation" {
		t.Errorf("created queues = %v, want [retryd-async-continuation]", client.created)
	}
	if len(client.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(client.sent))
	}

	var env Envelope
	if err := json.Unmarshal([]byte(aws.ToString(client.sent[0].MessageBody)), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.JobID != "job-1" || env.HandlerType != core.HandlerAsyncContinuation || env.Retries != 2 {
		t.Errorf("envelope = %+v", env)
	}
	if got := aws.ToString(client.sent[0].MessageAttributes["job_id"].StringValue); got != "job-1" {
		t.Errorf("job_id attribute = %q, want job-1", got)
	}
}

func TestSQSDispatcher_CachesQueueURL(t *testing.T) {
	client := &fakeSQS{}
	d := NewSQSDispatcher(client, "retryd")

	job := &core.Job{ID: "job-1", HandlerType: core.HandlerTimerTransition}
	for i := 0; i < 3; i++ {
		if err := d.Dispatch(context.Background(), job); err != nil {
			t.Fatalf("Dispatch error = %v", err)
		}
	}

	if len(client.created) != 1 {
		t.Errorf("CreateQueue called %d times, want 1", len(client.created))
	}
	if len(client.sent) != 3 {
		t.Errorf("sent %d messages, want 3", len(client.sent))
	}
}

func TestMemoryDispatcher(t *testing.T) {
	d := NewMemoryDispatcher(4)
	defer d.Close()

	job := &core.Job{ID: "job-1", HandlerType: core.HandlerTimerStartEvent}
	if err := d.Dispatch(context.Background(), job); err != nil {
		t.Fatalf("Dispatch error = %v", err)
	}

	select {
	case env := <-d.Jobs():
		if env.JobID != "job-1" {
			t.Errorf("envelope job id = %q, want job-1", env.JobID)
		}
	default:
		t.Fatal("no envelope delivered")
	}
}

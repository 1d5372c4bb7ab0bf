package state

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/procflow/retryd/internal/core"
)

// DynamoDBStore implements the Store interface using AWS DynamoDB.
// Single-table design with PK/SK pattern:
//   - Jobs: PK="JOB#<id>", SK="JOB"
//   - Failure causes: PK="FAILURE#<ref>", SK="FAILURE"
//   - Executions: PK="EXECUTION#<id>", SK="EXECUTION"
//   - Definitions: PK="DEFINITION#<id>", SK="DEFINITION"
//   - Retry schedule: PK="RETRY#<jobID>", SK="RETRY"
//
// GSI1: GSI1PK ("DUE#retry") + GSI1SK (<due_at_ms>) indexes the retry
// schedule for due-job queries.
type DynamoDBStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoDBStore creates a new DynamoDB store.
func NewDynamoDBStore(client *dynamodb.Client, tableName string) *DynamoDBStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
	}
}

// EnsureTable creates the table with its GSI if it doesn't exist.
func (s *DynamoDBStore) EnsureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err == nil {
		// Table already exists
		return nil
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI1PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI1SK"), AttributeType: types.ScalarAttributeTypeN},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String("GSI1"),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("GSI1PK"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("GSI1SK"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: &types.ProvisionedThroughput{
					ReadCapacityUnits:  aws.Int64(5),
					WriteCapacityUnits: aws.Int64(5),
				},
			},
		},
		BillingMode: types.BillingModeProvisioned,
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("failed waiting for table: %w", err)
	}

	return nil
}

// PutJob stores a job record.
func (s *DynamoDBStore) PutJob(ctx context.Context, record *JobRecord) error {
	record.PK = jobPK(record.ID)
	record.SK = "JOB"
	return s.putItem(ctx, record, "job")
}

// GetJob retrieves a job by ID.
func (s *DynamoDBStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	item, err := s.getItem(ctx, jobPK(jobID), "JOB")
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if item == nil {
		return nil, core.NewNotFoundError("Job", jobID)
	}

	var record JobRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &record, nil
}

// UpdateJob updates a job's state and additional fields in one write.
func (s *DynamoDBStore) UpdateJob(ctx context.Context, jobID, newState string, updates map[string]any) error {
	updateExpr := "SET #state = :state"
	exprAttrNames := map[string]string{
		"#state": "state",
	}
	exprAttrValues := map[string]types.AttributeValue{
		":state": &types.AttributeValueMemberS{Value: newState},
	}

	for key, value := range updates {
		placeholder := fmt.Sprintf(":val%d", len(exprAttrValues))
		attrName := fmt.Sprintf("#attr%d", len(exprAttrNames))
		updateExpr += fmt.Sprintf(", %s = %s", attrName, placeholder)
		exprAttrNames[attrName] = key

		av, err := attributevalue.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal update value for %s: %w", key, err)
		}
		exprAttrValues[placeholder] = av
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: jobPK(jobID)},
			"SK": &types.AttributeValueMemberS{Value: "JOB"},
		},
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeNames:  exprAttrNames,
		ExpressionAttributeValues: exprAttrValues,
		ConditionExpression:       aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return nil
}

// DeleteJob removes a job.
func (s *DynamoDBStore) DeleteJob(ctx context.Context, jobID string) error {
	return s.deleteItem(ctx, jobPK(jobID), "JOB", "job")
}

// PutFailure stores a failure cause record.
func (s *DynamoDBStore) PutFailure(ctx context.Context, record *FailureRecord) error {
	record.PK = failurePK(record.Ref)
	record.SK = "FAILURE"
	return s.putItem(ctx, record, "failure")
}

// GetFailure retrieves a failure cause by ref.
func (s *DynamoDBStore) GetFailure(ctx context.Context, ref string) (*FailureRecord, error) {
	item, err := s.getItem(ctx, failurePK(ref), "FAILURE")
	if err != nil {
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	if item == nil {
		return nil, core.NewNotFoundError("Failure", ref)
	}

	var record FailureRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failure: %w", err)
	}
	return &record, nil
}

// PutExecution stores an execution record.
func (s *DynamoDBStore) PutExecution(ctx context.Context, record *ExecutionRecord) error {
	record.PK = executionPK(record.ID)
	record.SK = "EXECUTION"
	return s.putItem(ctx, record, "execution")
}

// GetExecution retrieves an execution by ID.
func (s *DynamoDBStore) GetExecution(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	item, err := s.getItem(ctx, executionPK(executionID), "EXECUTION")
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	if item == nil {
		return nil, core.NewNotFoundError("Execution", executionID)
	}

	var record ExecutionRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	return &record, nil
}

// PutDefinition stores a process definition record.
func (s *DynamoDBStore) PutDefinition(ctx context.Context, record *DefinitionRecord) error {
	record.PK = definitionPK(record.ID)
	record.SK = "DEFINITION"
	return s.putItem(ctx, record, "definition")
}

// GetDefinition retrieves a process definition by ID.
func (s *DynamoDBStore) GetDefinition(ctx context.Context, definitionID string) (*DefinitionRecord, error) {
	item, err := s.getItem(ctx, definitionPK(definitionID), "DEFINITION")
	if err != nil {
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	if item == nil {
		return nil, core.NewNotFoundError("ProcessDefinition", definitionID)
	}

	var record DefinitionRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}
	return &record, nil
}

// DeleteDefinition removes a process definition.
func (s *DynamoDBStore) DeleteDefinition(ctx context.Context, definitionID string) error {
	return s.deleteItem(ctx, definitionPK(definitionID), "DEFINITION", "definition")
}

// AddRetrySchedule adds a job to the due-retry index.
func (s *DynamoDBStore) AddRetrySchedule(ctx context.Context, jobID string, dueAtMs int64) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: retrySchedulePK(jobID)},
			"SK":        &types.AttributeValueMemberS{Value: "RETRY"},
			"job_id":    &types.AttributeValueMemberS{Value: jobID},
			"due_at_ms": &types.AttributeValueMemberN{Value: strconv.FormatInt(dueAtMs, 10)},
			"GSI1PK":    &types.AttributeValueMemberS{Value: "DUE#retry"},
			"GSI1SK":    &types.AttributeValueMemberN{Value: strconv.FormatInt(dueAtMs, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add retry schedule: %w", err)
	}
	return nil
}

// GetDueRetryJobs returns retry-scheduled jobs that are due.
func (s *DynamoDBStore) GetDueRetryJobs(ctx context.Context, nowMs int64) ([]string, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK <= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":  &types.AttributeValueMemberS{Value: "DUE#retry"},
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(nowMs, 10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query due retry jobs: %w", err)
	}

	jobIDs := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		if jobIDAttr, ok := item["job_id"]; ok {
			if jobIDVal, ok := jobIDAttr.(*types.AttributeValueMemberS); ok {
				jobIDs = append(jobIDs, jobIDVal.Value)
			}
		}
	}
	return jobIDs, nil
}

// RemoveRetrySchedule removes a job from the due-retry index.
func (s *DynamoDBStore) RemoveRetrySchedule(ctx context.Context, jobID string) error {
	return s.deleteItem(ctx, retrySchedulePK(jobID), "RETRY", "retry schedule")
}

// Ping checks the connection to DynamoDB.
func (s *DynamoDBStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return fmt.Errorf("failed to ping DynamoDB: %w", err)
	}
	return nil
}

// Close closes the store (no-op for DynamoDB client).
func (s *DynamoDBStore) Close() error {
	return nil
}

func (s *DynamoDBStore) putItem(ctx context.Context, record any, kind string) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", kind, err)
	}
	return nil
}

func (s *DynamoDBStore) getItem(ctx context.Context, pk, sk string) (map[string]types.AttributeValue, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return nil, err
	}
	return result.Item, nil
}

func (s *DynamoDBStore) deleteItem(ctx context.Context, pk, sk, kind string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/caridad-cloud/allocation-service/internal/domain"
	pkgconfig "github.com/caridad-cloud/allocation-service/pkg/config"
)

var (
	ErrSessionNotFound = errors.New("allocation session not found")
)

// SessionRepository persists allocation sessions and their per-warehouse
// submission outcomes in DynamoDB.
type SessionRepository struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoDBClient(cfg *pkgconfig.Config) (*dynamodb.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(awsCfg), nil
}

func NewSessionRepository(client *dynamodb.Client, tableName string) *SessionRepository {
	return &SessionRepository{
		client:    client,
		tableName: tableName,
	}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session *domain.AllocationSession) error {
	av, err := attributevalue.MarshalMap(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})

	if err != nil {
		return fmt.Errorf("failed to put session: %w", err)
	}

	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*domain.AllocationSession, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if result.Item == nil {
		return nil, ErrSessionNotFound
	}

	var session domain.AllocationSession
	if err := attributevalue.UnmarshalMap(result.Item, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// SaveSubmission replaces the session's submission outcomes and the applied
// assignments after a reconciliation run.
func (r *SessionRepository) SaveSubmission(ctx context.Context, sessionID string, outcomes map[string]domain.CommandOutcome, assignments []domain.CellAssignment) error {
	update := expression.Set(
		expression.Name("outcomes"),
		expression.Value(outcomes),
	).Set(
		expression.Name("assignments"),
		expression.Value(assignments),
	).Set(
		expression.Name("updated_at"),
		expression.Value(time.Now()),
	)

	condition := expression.AttributeExists(expression.Name("session_id"))

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(condition).
		Build()
	if err != nil {
		return err
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to save submission: %w", err)
	}

	return nil
}

// UpdateOutcomeStatus moves one warehouse's outcome to a new status. The
// update only applies when that warehouse's outcome already exists on the
// session.
func (r *SessionRepository) UpdateOutcomeStatus(ctx context.Context, sessionID string, warehouseID int, status string) error {
	key := strconv.Itoa(warehouseID)

	update := expression.Set(
		expression.Name("outcomes."+key+".status"),
		expression.Value(status),
	).Set(
		expression.Name("updated_at"),
		expression.Value(time.Now()),
	)

	condition := expression.AttributeExists(
		expression.Name("outcomes." + key),
	)

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(condition).
		Build()
	if err != nil {
		return err
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to update outcome status: %w", err)
	}

	return nil
}

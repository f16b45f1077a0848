package dynamodb

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"inventory/application/ports"
	pkgerrors "inventory/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DistributedLock is a lease-based JobLock built on conditional writes.
// An expired lease can be taken over by another owner.
type DistributedLock struct {
	client    API
	tableName string
	ownerID   string
	logger    *zap.Logger
	now       func() time.Time
}

// LockRecord represents a lock record in DynamoDB
type LockRecord struct {
	PK         string `dynamodbav:"PK"`         // LOCK#<job>
	SK         string `dynamodbav:"SK"`         // LOCK
	LockID     string `dynamodbav:"LockID"`     // Unique lock identifier
	Owner      string `dynamodbav:"Owner"`      // Lock owner identifier
	AcquiredAt string `dynamodbav:"AcquiredAt"` // RFC3339 timestamp
	ExpiresAt  int64  `dynamodbav:"ExpiresAt"`  // Unix milliseconds
	TTL        int64  `dynamodbav:"TTL"`        // Unix timestamp for DynamoDB TTL
}

var _ ports.JobLock = (*DistributedLock)(nil)

// NewDistributedLock creates a new distributed lock. The owner id defaults
// to the host name.
func NewDistributedLock(client API, tableName string, logger *zap.Logger) *DistributedLock {
	owner, err := os.Hostname()
	if err != nil || owner == "" {
		owner = "unknown"
	}
	return &DistributedLock{
		client:    client,
		tableName: tableName,
		ownerID:   owner + "-" + strconv.Itoa(os.Getpid()),
		logger:    logger,
		now:       time.Now,
	}
}

// Acquire takes the lease on job for the given duration
func (dl *DistributedLock) Acquire(ctx context.Context, job string, lease time.Duration) (ports.ReleaseFunc, error) {
	now := dl.now()
	expiresAt := now.Add(lease)
	record := LockRecord{
		PK:         lockPK(job),
		SK:         "LOCK",
		LockID:     uuid.New().String(),
		Owner:      dl.ownerID,
		AcquiredAt: now.UTC().Format(time.RFC3339),
		ExpiresAt:  expiresAt.UnixMilli(),
		TTL:        expiresAt.Unix(),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("marshal lock", err)
	}

	_, err = dl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dl.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			dl.logger.Debug("Failed to acquire lock - already held",
				zap.String("job", job),
				zap.String("owner", dl.ownerID),
			)
			return nil, pkgerrors.NewConflictError(fmt.Sprintf("job %s is already running", job))
		}
		return nil, pkgerrors.NewDatabaseError("acquire lock", err)
	}

	dl.logger.Debug("Lock acquired",
		zap.String("job", job),
		zap.String("lock_id", record.LockID),
		zap.Duration("lease", lease),
	)

	return func(ctx context.Context) error {
		return dl.release(ctx, job, record.LockID)
	}, nil
}

func (dl *DistributedLock) release(ctx context.Context, job, lockID string) error {
	_, err := dl.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(dl.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: lockPK(job)},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		ConditionExpression: aws.String("LockID = :lockId AND #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "Owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lockId": &types.AttributeValueMemberS{Value: lockID},
			":owner":  &types.AttributeValueMemberS{Value: dl.ownerID},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			dl.logger.Warn("Lock already released or taken over",
				zap.String("job", job),
				zap.String("lock_id", lockID),
			)
			return nil
		}
		return pkgerrors.NewDatabaseError("release lock", err)
	}

	dl.logger.Debug("Lock released", zap.String("job", job), zap.String("lock_id", lockID))
	return nil
}

package dynamodb

import (
	"context"
	"time"

	"inventory/application/ports"
	pkgerrors "inventory/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// maxTransactItems is the DynamoDB limit on items per transaction
const maxTransactItems = 100

// ScanObjects calls fn for every object and connection record
func (s *Store) ScanObjects(ctx context.Context, fn func(ports.ObjectRecord) error) error {
	filter := expression.Name("EntityType").In(
		expression.Value(entityObject),
		expression.Value(entityConnection),
	)
	return s.scan(ctx, filter, func(av map[string]types.AttributeValue) error {
		var item ObjectItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return pkgerrors.NewDatabaseError("unmarshal object", err)
		}
		return fn(item.toRecord())
	})
}

// ScanViewDocuments calls fn for every saved view
func (s *Store) ScanViewDocuments(ctx context.Context, fn func(ports.StoredDocument) error) error {
	filter := expression.Name("EntityType").Equal(expression.Value(entityView))
	return s.scan(ctx, filter, func(av map[string]types.AttributeValue) error {
		var item ViewItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return pkgerrors.NewDatabaseError("unmarshal view", err)
		}
		return fn(item.toStoredDocument())
	})
}

// SaveViewDocuments writes the structures of existing views in
// transactions of up to 100 views. Each transaction is all-or-nothing; a
// view that no longer exists cancels its transaction with NOT_FOUND.
func (s *Store) SaveViewDocuments(ctx context.Context, docs []ports.StoredDocument) error {
	updatedAt := s.now().UTC().Format(time.RFC3339Nano)

	for start := 0; start < len(docs); start += maxTransactItems {
		end := start + maxTransactItems
		if end > len(docs) {
			end = len(docs)
		}

		items := make([]types.TransactWriteItem, 0, end-start)
		for _, doc := range docs[start:end] {
			update := expression.
				Set(expression.Name("Structure"), expression.Value(doc.Structure)).
				Set(expression.Name("UpdatedAt"), expression.Value(updatedAt))
			expr, err := expression.NewBuilder().
				WithUpdate(update).
				WithCondition(expression.Name("PK").AttributeExists()).
				Build()
			if err != nil {
				return pkgerrors.NewInternalError("failed to build expression: " + err.Error())
			}

			items = append(items, types.TransactWriteItem{
				Update: &types.Update{
					TableName: aws.String(s.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: viewPK(doc.ViewID)},
						"SK": &types.AttributeValueMemberS{Value: skMetadata},
					},
					UpdateExpression:          expr.Update(),
					ConditionExpression:       expr.Condition(),
					ExpressionAttributeNames:  expr.Names(),
					ExpressionAttributeValues: expr.Values(),
				},
			})
		}

		started := time.Now()
		_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items,
		})
		if err != nil && isTransactionConditionFailed(err) {
			err = pkgerrors.NewNotFoundError("one of the views being saved")
		}
		if err = s.observe("TransactWriteItems", started, err); err != nil {
			return err
		}

		s.logger.Debug("Saved view documents",
			zap.Int("batch_start", start),
			zap.Int("batch_size", len(items)),
		)
	}
	return nil
}

func (s *Store) scan(ctx context.Context, filter expression.ConditionBuilder, fn func(map[string]types.AttributeValue) error) error {
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build expression: " + err.Error())
	}

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	for paginator.HasMorePages() {
		started := time.Now()
		page, err := paginator.NextPage(ctx)
		if err = s.observe("Scan", started, err); err != nil {
			return err
		}
		for _, av := range page.Items {
			if err := fn(av); err != nil {
				return err
			}
		}
	}
	return nil
}

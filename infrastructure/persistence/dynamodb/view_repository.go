package dynamodb

import (
	"context"
	"fmt"
	"time"

	"inventory/application/ports"
	pkgerrors "inventory/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GetView returns the view of the given kind saved for owner
func (s *Store) GetView(ctx context.Context, owner ports.ObjectKey, viewClass string) (*ports.StoredView, error) {
	identity, err := s.resolveParent(ctx, owner)
	if err != nil {
		return nil, err
	}

	item, err := s.findView(ctx, identity, viewClass)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("%s of %s", viewClass, owner))
	}
	return item.toStoredView(), nil
}

// CreateView stores a new view. The owner may hold one view per class.
func (s *Store) CreateView(ctx context.Context, owner ports.ObjectKey, viewClass string, structure, background []byte) (string, error) {
	identity, err := s.resolveParent(ctx, owner)
	if err != nil {
		return "", err
	}

	existing, err := s.findView(ctx, identity, viewClass)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", pkgerrors.NewConflictError(fmt.Sprintf("%s of %s already exists", viewClass, owner))
	}

	viewID := uuid.New().String()
	item := ViewItem{
		PK:         viewPK(viewID),
		SK:         skMetadata,
		EntityType: entityView,
		ViewID:     viewID,
		OwnerClass: owner.ClassName,
		OwnerID:    owner.ID,
		ViewClass:  viewClass,
		Structure:  structure,
		Background: background,
		UpdatedAt:  s.now().UTC().Format(time.RFC3339Nano),
		GSI1PK:     parentPK(identity),
		GSI1SK:     viewSK(viewClass),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return "", pkgerrors.NewDatabaseError("marshal view", err)
	}

	cond := expression.Name("PK").AttributeNotExists()
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return "", pkgerrors.NewInternalError("failed to build expression: " + err.Error())
	}

	started := time.Now()
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil && isConditionalCheckFailed(err) {
		err = pkgerrors.NewConflictError("view " + viewID + " already exists")
	}
	if err = s.observe("PutItem", started, err); err != nil {
		return "", err
	}

	s.logger.Debug("View created",
		zap.String("view_id", viewID),
		zap.String("owner", owner.String()),
		zap.String("view_class", viewClass),
	)
	return viewID, nil
}

// UpdateView replaces the content of an existing view
func (s *Store) UpdateView(ctx context.Context, viewID string, structure, background []byte) error {
	update := expression.
		Set(expression.Name("Structure"), expression.Value(structure)).
		Set(expression.Name("UpdatedAt"), expression.Value(s.now().UTC().Format(time.RFC3339Nano)))
	if len(background) > 0 {
		update = update.Set(expression.Name("Background"), expression.Value(background))
	} else {
		update = update.Remove(expression.Name("Background"))
	}
	cond := expression.Name("PK").AttributeExists()

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build expression: " + err.Error())
	}

	started := time.Now()
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: viewPK(viewID)},
			"SK": &types.AttributeValueMemberS{Value: skMetadata},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil && isConditionalCheckFailed(err) {
		err = pkgerrors.NewNotFoundError("view " + viewID)
	}
	return s.observe("UpdateItem", started, err)
}

// findView returns nil when the owner has no view of that class
func (s *Store) findView(ctx context.Context, ownerIdentity, viewClass string) (*ViewItem, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(parentPK(ownerIdentity))).
		And(expression.Key("GSI1SK").Equal(expression.Value(viewSK(viewClass))))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build expression: " + err.Error())
	}

	started := time.Now()
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err = s.observe("Query", started, err); err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, nil
	}

	var item ViewItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal view", err)
	}
	return &item, nil
}

package dynamodb

import (
	"context"
	"fmt"
	"time"

	"inventory/application/ports"
	"inventory/domain/core/entities"
	"inventory/domain/core/valueobjects"
	pkgerrors "inventory/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// LookupLight finds an object by class and reference. UUID references
// hit the base table; numeric ids go through the legacy id index.
func (s *Store) LookupLight(ctx context.Context, className string, ref valueobjects.NodeRef) (entities.BusinessObject, error) {
	var (
		item ObjectItem
		err  error
	)
	if id, ok := ref.UUID(); ok {
		item, err = s.getObject(ctx, uuidIdentity(id))
	} else if id, ok := ref.LegacyID(); ok {
		item, err = s.getObjectByLegacyID(ctx, id)
	} else {
		return entities.BusinessObject{}, pkgerrors.NewValidationError("object reference is empty")
	}
	if err != nil {
		return entities.BusinessObject{}, err
	}

	if className != "" && item.ClassName != className {
		return entities.BusinessObject{}, pkgerrors.NewNotFoundError(fmt.Sprintf("%s %s", className, ref))
	}
	return item.toEntity(), nil
}

// GetChildren lists the objects contained in parent
func (s *Store) GetChildren(ctx context.Context, parent ports.ObjectKey) ([]entities.BusinessObject, error) {
	identity, err := s.resolveParent(ctx, parent)
	if err != nil {
		return nil, err
	}

	items, err := s.queryParent(ctx, identity, prefixChild)
	if err != nil {
		return nil, err
	}

	result := make([]entities.BusinessObject, 0, len(items))
	for _, item := range items {
		result = append(result, item.toEntity())
	}
	return result, nil
}

// GetConnections lists the connections held by parent
func (s *Store) GetConnections(ctx context.Context, parent ports.ObjectKey) ([]entities.Connection, error) {
	identity, err := s.resolveParent(ctx, parent)
	if err != nil {
		return nil, err
	}

	items, err := s.queryParent(ctx, identity, prefixConnection)
	if err != nil {
		return nil, err
	}

	result := make([]entities.Connection, 0, len(items))
	for _, item := range items {
		result = append(result, item.toConnection())
	}
	return result, nil
}

// resolveParent returns the identity the containment index is keyed by
func (s *Store) resolveParent(ctx context.Context, key ports.ObjectKey) (string, error) {
	ref, err := key.Ref()
	if err != nil {
		return "", pkgerrors.NewValidationError(err.Error())
	}
	obj, err := s.LookupLight(ctx, key.ClassName, ref)
	if err != nil {
		return "", err
	}
	return obj.Identity(), nil
}

func (s *Store) getObject(ctx context.Context, identity string) (ObjectItem, error) {
	started := time.Now()
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: objectPK(identity)},
			"SK": &types.AttributeValueMemberS{Value: skMetadata},
		},
	})
	if err = s.observe("GetItem", started, err); err != nil {
		return ObjectItem{}, err
	}
	if result.Item == nil {
		return ObjectItem{}, pkgerrors.NewNotFoundError("object " + identity)
	}

	var item ObjectItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return ObjectItem{}, pkgerrors.NewDatabaseError("unmarshal object", err)
	}
	return item, nil
}

func (s *Store) getObjectByLegacyID(ctx context.Context, id int64) (ObjectItem, error) {
	keyCond := expression.Key("GSI2PK").Equal(expression.Value(legacyPK(id)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return ObjectItem{}, pkgerrors.NewInternalError("failed to build expression: " + err.Error())
	}

	started := time.Now()
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.gsi2IndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err = s.observe("Query", started, err); err != nil {
		return ObjectItem{}, err
	}
	if len(result.Items) == 0 {
		return ObjectItem{}, pkgerrors.NewNotFoundError(fmt.Sprintf("object %d", id))
	}

	var item ObjectItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return ObjectItem{}, pkgerrors.NewDatabaseError("unmarshal object", err)
	}
	return item, nil
}

// queryParent reads every item under parent whose GSI1 sort key starts with
// prefix, in sort key order
func (s *Store) queryParent(ctx context.Context, parentIdentity, prefix string) ([]ObjectItem, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(parentPK(parentIdentity))).
		And(expression.Key("GSI1SK").BeginsWith(prefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build expression: " + err.Error())
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var items []ObjectItem
	for paginator.HasMorePages() {
		started := time.Now()
		page, err := paginator.NextPage(ctx)
		if err = s.observe("Query", started, err); err != nil {
			return nil, err
		}

		var batch []ObjectItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, pkgerrors.NewDatabaseError("unmarshal objects", err)
		}
		items = append(items, batch...)
	}
	return items, nil
}

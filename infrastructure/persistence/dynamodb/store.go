package dynamodb

import (
	"errors"
	"time"

	pkgerrors "inventory/pkg/errors"
	"inventory/pkg/observability"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Store is the DynamoDB single-table implementation of the object
// directory, the view store and the inventory store
type Store struct {
	client        API
	tableName     string
	indexName     string // GSI1: parent -> children, connections and views
	gsi2IndexName string // GSI2: legacy numeric id -> object
	metrics       *observability.Collector
	logger        *zap.Logger
	now           func() time.Time
}

// NewStore creates a new DynamoDB store
func NewStore(client API, tableName, indexName, gsi2IndexName string, metrics *observability.Collector, logger *zap.Logger) *Store {
	return &Store{
		client:        client,
		tableName:     tableName,
		indexName:     indexName,
		gsi2IndexName: gsi2IndexName,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// observe records the outcome of one DynamoDB call and maps its error
func (s *Store) observe(operation string, started time.Time, err error) error {
	s.metrics.RecordDBOperation(operation, started, err)
	if err == nil {
		return nil
	}
	if pkgerrors.IsAppError(err) {
		return err
	}
	s.logger.Error("DynamoDB operation failed",
		zap.String("operation", operation),
		zap.String("table", s.tableName),
		zap.Error(err),
	)
	return pkgerrors.NewDatabaseError(operation, err)
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func isTransactionConditionFailed(err error) bool {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return false
	}
	for _, reason := range canceled.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

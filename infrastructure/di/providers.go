package di

import (
	"context"
	"fmt"

	"inventory/application/migration"
	"inventory/application/ports"
	"inventory/application/services"
	domainservices "inventory/domain/services"
	"inventory/domain/core/valueobjects"
	"inventory/infrastructure/config"
	"inventory/infrastructure/messaging"
	"inventory/infrastructure/messaging/eventbridge"
	"inventory/infrastructure/persistence/dynamodb"
	"inventory/infrastructure/persistence/memory"
	"inventory/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Backends groups the store adapters selected by configuration
type Backends struct {
	Directory ports.ObjectDirectory
	Views     ports.ViewStore
	Inventory ports.InventoryStore
	// Lock is nil when the store is process-local
	Lock ports.JobLock
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// ProvideMetrics creates the metrics collector
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.MetricsNamespace)
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return dynamodb.NewAWSConfig(ctx, cfg.AWSRegion)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return dynamodb.NewClient(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideBackends selects the memory or DynamoDB store
func ProvideBackends(
	cfg *config.Config,
	client *awsdynamodb.Client,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*Backends, error) {
	switch cfg.Store {
	case config.StoreDynamoDB:
		store := dynamodb.NewStore(client, cfg.DynamoDBTable, cfg.IndexName, cfg.GSI2IndexName, metrics, logger)
		return &Backends{
			Directory: store,
			Views:     store,
			Inventory: store,
			Lock:      dynamodb.NewDistributedLock(client, cfg.DynamoDBTable, logger),
		}, nil
	case config.StoreMemory:
		graph := memory.NewInventoryGraph()
		if cfg.FixturesFile != "" {
			loaded, err := memory.LoadFixturesFile(cfg.FixturesFile)
			if err != nil {
				return nil, err
			}
			graph = loaded
			logger.Info("Loaded inventory fixtures", zap.String("file", cfg.FixturesFile))
		}
		return &Backends{Directory: graph, Views: graph, Inventory: graph}, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// ProvideObjectDirectory exposes the selected object directory
func ProvideObjectDirectory(b *Backends) ports.ObjectDirectory {
	return b.Directory
}

// ProvideViewStore exposes the selected view store
func ProvideViewStore(b *Backends) ports.ViewStore {
	return b.Views
}

// ProvideInventoryStore exposes the selected inventory store
func ProvideInventoryStore(b *Backends) ports.InventoryStore {
	return b.Inventory
}

// ProvideNotifier always logs; it also publishes to EventBridge when a bus
// is configured
func ProvideNotifier(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.Notifier {
	sinks := []ports.Notifier{messaging.NewLogNotifier(logger)}
	if cfg.EventBusName != "" {
		sinks = append(sinks, eventbridge.NewNotifier(client, cfg.EventBusName, eventbridge.DefaultBreakerConfig(), logger))
	}
	return messaging.NewFanOutNotifier(sinks...)
}

// ProvideReconciler builds the reconciler from the view policy
func ProvideReconciler(cfg *config.Config) *domainservices.Reconciler {
	layout := domainservices.RowLayout{
		Origin: valueobjects.NewPoint(0, 0),
		Step:   cfg.Views.LayoutStep,
	}
	return domainservices.NewReconciler(layout, domainservices.ReconcilePolicy{
		PruneStale:                 cfg.Views.PruneStale,
		SkipUnplaceableConnections: cfg.Views.SkipUnplaceableConnections,
	})
}

// ProvideViewService creates the view service
func ProvideViewService(
	cfg *config.Config,
	directory ports.ObjectDirectory,
	views ports.ViewStore,
	notifier ports.Notifier,
	reconciler *domainservices.Reconciler,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.ViewService {
	return services.NewViewService(
		directory,
		views,
		notifier,
		reconciler,
		metrics,
		services.ViewServiceOptions{AutoRepair: cfg.Views.AutoRepair},
		logger,
	)
}

// ProvideMigrator creates the id migrator, guarded by the store's job
// lock when it has one
func ProvideMigrator(b *Backends, metrics *observability.Collector, logger *zap.Logger) *migration.Migrator {
	m := migration.NewMigrator(b.Inventory, metrics, logger)
	if b.Lock != nil {
		m.WithLock(b.Lock, migration.DefaultLockLease)
	}
	return m
}

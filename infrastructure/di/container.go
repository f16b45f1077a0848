package di

import (
	"inventory/application/migration"
	"inventory/application/ports"
	"inventory/application/services"
	"inventory/infrastructure/config"
	"inventory/pkg/observability"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *observability.Collector
	Inventory   ports.InventoryStore
	ViewService *services.ViewService
	Migrator    *migration.Migrator
}

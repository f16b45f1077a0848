package config

import (
	"fmt"
	"os"
	"strconv"

	"inventory/pkg/utils"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address" validate:"required"`
	Environment   string `yaml:"environment" validate:"oneof=development test staging production"`

	// Storage configuration
	Store        string `yaml:"store" validate:"oneof=memory dynamodb"`
	FixturesFile string `yaml:"fixtures_file"`

	// AWS configuration
	AWSRegion     string `yaml:"aws_region" validate:"required_if=Store dynamodb"`
	DynamoDBTable string `yaml:"table_name" validate:"required_if=Store dynamodb"`
	IndexName     string `yaml:"index_name" validate:"required_if=Store dynamodb"`      // GSI1 - children and connections by parent
	GSI2IndexName string `yaml:"gsi2_index_name" validate:"required_if=Store dynamodb"` // GSI2 - lookups by legacy id
	EventBusName  string `yaml:"event_bus_name"`

	// Lambda configuration
	IsLambda           bool   `yaml:"is_lambda"`
	LambdaFunctionName string `yaml:"-"`

	// Logging
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Feature flags
	EnableMetrics    bool   `yaml:"enable_metrics"`
	EnableCORS       bool   `yaml:"enable_cors"`
	MetricsNamespace string `yaml:"metrics_namespace" validate:"required"`

	// View engine policy
	Views ViewPolicy `yaml:"views"`
}

// ViewPolicy configures reconciliation and repair of saved views
type ViewPolicy struct {
	AutoRepair                 bool `yaml:"auto_repair"`
	PruneStale                 bool `yaml:"prune_stale"`
	SkipUnplaceableConnections bool `yaml:"skip_unplaceable_connections"`
	LayoutStep                 int  `yaml:"layout_step" validate:"min=1"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		ServerAddress:    ":8080",
		Environment:      "development",
		Store:            StoreMemory,
		AWSRegion:        "us-west-2",
		DynamoDBTable:    "inventory",
		IndexName:        "ParentIndex",
		GSI2IndexName:    "LegacyIdIndex",
		LogLevel:         "info",
		EnableMetrics:    true,
		EnableCORS:       true,
		MetricsNamespace: "inventory",
		Views: ViewPolicy{
			AutoRepair: true,
			LayoutStep: 100,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file
// named by CONFIG_FILE when set, then environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig for backwards compatibility
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.Store = getEnv("STORE", c.Store)
	c.FixturesFile = getEnv("FIXTURES_FILE", c.FixturesFile)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.IndexName = getEnv("INDEX_NAME", c.IndexName)
	c.GSI2IndexName = getEnv("GSI2_INDEX_NAME", c.GSI2IndexName)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda)
	c.LambdaFunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", c.LambdaFunctionName)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.MetricsNamespace = getEnv("METRICS_NAMESPACE", c.MetricsNamespace)

	c.Views.AutoRepair = getEnvBool("VIEWS_AUTO_REPAIR", c.Views.AutoRepair)
	c.Views.PruneStale = getEnvBool("VIEWS_PRUNE_STALE", c.Views.PruneStale)
	c.Views.SkipUnplaceableConnections = getEnvBool("VIEWS_SKIP_UNPLACEABLE_CONNECTIONS", c.Views.SkipUnplaceableConnections)
	c.Views.LayoutStep = getEnvInt("VIEWS_LAYOUT_STEP", c.Views.LayoutStep)

	// Lambda sets this for every function
	if c.LambdaFunctionName != "" {
		c.IsLambda = true
	}
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	return utils.ValidateStruct(c)
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

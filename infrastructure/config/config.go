// Package config loads the service configuration.
//
// Sources, from lowest to highest priority:
//  1. defaults in code
//  2. the YAML file named by CONFIG_FILE, if set
//  3. environment variables
//
// The result is validated once; an invalid configuration fails startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	domainconfig "synergy-backend/domain/config"
	"synergy-backend/infrastructure/messaging/eventbridge"
	"synergy-backend/infrastructure/persistence/batch"
	"synergy-backend/infrastructure/persistence/connection"
	"synergy-backend/infrastructure/persistence/dynamodb"
	"synergy-backend/pkg/retry"
	"synergy-backend/pkg/utils"
)

// Store backends
const (
	StoreDynamoDB = "dynamodb"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// ServiceName identifies the service in traces and metrics
const ServiceName = "synergy-backend"

// Config holds all application configuration
type Config struct {
	// Server configuration
	Environment   string `mapstructure:"environment" yaml:"environment" validate:"oneof=development test staging production"`
	ServerAddress string `mapstructure:"server_address" yaml:"server_address" validate:"required"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`

	// Store configuration
	StoreBackend     string `mapstructure:"store_backend" yaml:"store_backend" validate:"oneof=dynamodb sqlite memory"`
	AWSRegion        string `mapstructure:"aws_region" yaml:"aws_region" validate:"required_if=StoreBackend dynamodb"`
	AWSProfile       string `mapstructure:"aws_profile" yaml:"aws_profile"`
	TableName        string `mapstructure:"table_name" yaml:"table_name" validate:"required_if=StoreBackend dynamodb"`
	DynamoDBEndpoint string `mapstructure:"dynamodb_endpoint" yaml:"dynamodb_endpoint"`
	SQLitePath       string `mapstructure:"sqlite_path" yaml:"sqlite_path" validate:"required_if=StoreBackend sqlite"`
	EventBusName     string `mapstructure:"event_bus_name" yaml:"event_bus_name"`

	// Graph rules
	SynergyThreshold     float64 `mapstructure:"synergy_threshold" yaml:"synergy_threshold" validate:"gte=0,lte=1"`
	MaxDomainConnections int     `mapstructure:"max_domain_connections" yaml:"max_domain_connections" validate:"min=1"`
	EvictionTieBreak     string  `mapstructure:"eviction_tie_break" yaml:"eviction_tie_break" validate:"oneof=keep_existing replace_existing"`
	MaxDomainIDLength    int     `mapstructure:"max_domain_id_length" yaml:"max_domain_id_length" validate:"min=1"`
	HydrateOnStart       bool    `mapstructure:"hydrate_on_start" yaml:"hydrate_on_start"`

	// Batch writer
	BatchSize        int           `mapstructure:"batch_size" yaml:"batch_size" validate:"min=1,max=1000"`
	FlushParallelism int           `mapstructure:"flush_parallelism" yaml:"flush_parallelism" validate:"min=1,max=64"`
	FlushInterval    time.Duration `mapstructure:"flush_interval" yaml:"flush_interval" validate:"gte=0"`

	// Remote operations
	MaxRetryAttempts int           `mapstructure:"max_retry_attempts" yaml:"max_retry_attempts" validate:"min=1,max=10"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay" validate:"gt=0"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay" yaml:"retry_max_delay" validate:"gt=0"`
	RetryJitter      float64       `mapstructure:"retry_jitter" yaml:"retry_jitter" validate:"gte=0,lte=1"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout" validate:"gte=0"`
	InitTimeout      time.Duration `mapstructure:"init_timeout" yaml:"init_timeout" validate:"gt=0"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold" yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown" yaml:"breaker_cooldown" validate:"gte=0"`

	// Feature flags
	EnableMetrics bool    `mapstructure:"enable_metrics" yaml:"enable_metrics"`
	EnableTracing bool    `mapstructure:"enable_tracing" yaml:"enable_tracing"`
	OTLPEndpoint  string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint" validate:"required_if=EnableTracing true"`
	SampleRatio   float64 `mapstructure:"trace_sample_ratio" yaml:"trace_sample_ratio" validate:"gte=0,lte=1"`
	EnableCORS    bool    `mapstructure:"enable_cors" yaml:"enable_cors"`

	// LoadedFrom lists the sources applied, in order
	LoadedFrom []string `mapstructure:"-" yaml:"-"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	policy := retry.DefaultPolicy()
	domain := domainconfig.DefaultDomainConfig()
	conn := connection.DefaultConfig()
	writer := batch.DefaultConfig()

	return &Config{
		Environment:   "development",
		ServerAddress: ":8080",
		LogLevel:      "info",

		StoreBackend: StoreDynamoDB,
		AWSRegion:    "us-west-2",
		TableName:    "synergy-graph",
		SQLitePath:   "data/synergy.db",

		SynergyThreshold:     domain.SynergyThreshold,
		MaxDomainConnections: domain.MaxDomainConnections,
		EvictionTieBreak:     string(domain.TieBreak),
		MaxDomainIDLength:    domain.MaxDomainIDLength,

		BatchSize:        writer.BatchSize,
		FlushParallelism: writer.Parallelism,
		FlushInterval:    5 * time.Second,

		MaxRetryAttempts: policy.MaxAttempts,
		RetryBaseDelay:   policy.BaseDelay,
		RetryMaxDelay:    policy.MaxDelay,
		RetryJitter:      policy.Jitter,
		OperationTimeout: conn.OperationTimeout,
		InitTimeout:      conn.InitTimeout,
		BreakerThreshold: conn.BreakerThreshold,
		BreakerCooldown:  conn.BreakerCooldown,

		EnableMetrics: true,
		EnableCORS:    true,
		OTLPEndpoint:  "localhost:4317",
		SampleRatio:   1,
	}
}

// envAliases maps keys whose environment variable is not simply the upper-cased key
var envAliases = map[string]string{
	"synergy_threshold": "KG_SYNERGY_THRESHOLD",
}

// Load builds the configuration from defaults, CONFIG_FILE and the environment
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	loadedFrom := []string{"defaults"}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		loadedFrom = append(loadedFrom, path)
	}
	loadedFrom = append(loadedFrom, "environment")

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		trimSpaceHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.LoadedFrom = loadedFrom

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// newViper registers every key with its default and binds the environment
func newViper() (*viper.Viper, error) {
	defaults := map[string]interface{}{}
	if err := mapstructure.Decode(Default(), &defaults); err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return v, nil
}

// trimSpaceHook drops surrounding whitespace from string values before they
// are converted, so "0.5 " in the environment still parses.
func trimSpaceHook() mapstructure.DecodeHookFuncKind {
	return func(from, to reflect.Kind, data interface{}) (interface{}, error) {
		if str, ok := data.(string); ok {
			return strings.TrimSpace(str), nil
		}
		return data, nil
	}
}

// YAML renders the effective configuration in the CONFIG_FILE format
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks struct tags and the rules spanning several fields
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("retry_max_delay (%s) must be >= retry_base_delay (%s)", c.RetryMaxDelay, c.RetryBaseDelay)
	}
	if c.BreakerThreshold > 0 && c.BreakerCooldown <= 0 {
		return errors.New("breaker_cooldown must be > 0 when the breaker is enabled")
	}
	if c.StoreBackend == StoreDynamoDB && c.BatchSize > dynamodb.MaxGroupSize {
		return fmt.Errorf("batch_size (%d) must be <= %d with the dynamodb backend", c.BatchSize, dynamodb.MaxGroupSize)
	}
	if c.IsProduction() && c.StoreBackend == StoreMemory {
		return errors.New("the memory store backend is not allowed in production")
	}
	if err := c.DomainConfig().Validate(); err != nil {
		return err
	}
	return c.RetryPolicy().Validate()
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DomainConfig returns the graph rules
func (c *Config) DomainConfig() *domainconfig.DomainConfig {
	return &domainconfig.DomainConfig{
		SynergyThreshold:     c.SynergyThreshold,
		MaxDomainConnections: c.MaxDomainConnections,
		TieBreak:             domainconfig.TieBreak(c.EvictionTieBreak),
		MaxDomainIDLength:    c.MaxDomainIDLength,
	}
}

// RetryPolicy returns the per-operation retry policy
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.MaxRetryAttempts,
		BaseDelay:   c.RetryBaseDelay,
		MaxDelay:    c.RetryMaxDelay,
		Jitter:      c.RetryJitter,
	}
}

// ConnectionConfig returns the connection manager settings
func (c *Config) ConnectionConfig() connection.Config {
	name := c.StoreBackend
	switch c.StoreBackend {
	case StoreDynamoDB:
		name = "dynamodb:" + c.TableName
	case StoreSQLite:
		name = "sqlite:" + c.SQLitePath
	}
	return connection.Config{
		StoreName:        name,
		Policy:           c.RetryPolicy(),
		OperationTimeout: c.OperationTimeout,
		InitTimeout:      c.InitTimeout,
		BreakerThreshold: c.BreakerThreshold,
		BreakerCooldown:  c.BreakerCooldown,
	}
}

// BatchConfig returns the batch writer settings
func (c *Config) BatchConfig() batch.Config {
	return batch.Config{
		BatchSize:   c.BatchSize,
		Parallelism: c.FlushParallelism,
	}
}

// DialerConfig returns the DynamoDB dialer settings
func (c *Config) DialerConfig() dynamodb.DialerConfig {
	return dynamodb.DialerConfig{
		Region:    c.AWSRegion,
		Profile:   c.AWSProfile,
		Endpoint:  c.DynamoDBEndpoint,
		TableName: c.TableName,
	}
}

// PublisherConfig returns the EventBridge publisher settings. Publishing is
// disabled when no bus is configured.
func (c *Config) PublisherConfig() (eventbridge.Config, bool) {
	if c.EventBusName == "" {
		return eventbridge.Config{}, false
	}
	return eventbridge.DefaultConfig(c.EventBusName), true
}

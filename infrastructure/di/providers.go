package di

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"synergy-backend/application/ports"
	"synergy-backend/application/services"
	"synergy-backend/infrastructure/config"
	"synergy-backend/infrastructure/messaging/eventbridge"
	infraobservability "synergy-backend/infrastructure/observability"
	"synergy-backend/infrastructure/persistence/batch"
	"synergy-backend/infrastructure/persistence/connection"
	"synergy-backend/infrastructure/persistence/dynamodb"
	"synergy-backend/infrastructure/persistence/memory"
	"synergy-backend/infrastructure/persistence/sqlite"
	"synergy-backend/interfaces/http/rest"
	"synergy-backend/pkg/observability"
)

// metricsNamespace prefixes every exported metric
const metricsNamespace = "synergy"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", config.ServiceName), zap.String("environment", cfg.Environment)), nil
}

// ProvideMetrics creates the Prometheus collector, or nil when metrics are disabled
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector(metricsNamespace)
}

// ProvideTracing installs the OTLP tracer provider, or returns nil when
// tracing is disabled
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, error) {
	if !cfg.EnableTracing {
		return nil, nil
	}
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: config.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	logger.Info("Tracing enabled",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.Float64("sampleRatio", cfg.SampleRatio))
	return tp, nil
}

// ProvideStoreDialer selects the document store backend
func ProvideStoreDialer(cfg *config.Config, logger *zap.Logger) (ports.StoreDialer, error) {
	switch cfg.StoreBackend {
	case config.StoreDynamoDB:
		return dynamodb.NewDialer(cfg.DialerConfig(), logger), nil
	case config.StoreSQLite:
		return sqlite.NewDialer(cfg.SQLitePath, logger), nil
	case config.StoreMemory:
		logger.Warn("Using the in-memory document store; nothing survives a restart")
		return memory.NewDocumentStore().Dialer(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// ProvideEventPublisher creates the EventBridge publisher, or nil when no bus is configured
func ProvideEventPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*eventbridge.Publisher, error) {
	pubCfg, enabled := cfg.PublisherConfig()
	if !enabled {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for EventBridge: %w", err)
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), pubCfg, logger), nil
}

// ProvideEventSink fans events out to logs, metrics and EventBridge
func ProvideEventSink(logger *zap.Logger, metrics *observability.Collector, publisher *eventbridge.Publisher) ports.EventSink {
	sinks := ports.MultiSink{infraobservability.NewLoggingSink(logger)}
	if metrics != nil {
		sinks = append(sinks, infraobservability.NewMetricsSink(metrics))
	}
	if publisher != nil {
		sinks = append(sinks, publisher)
	}
	return sinks
}

// ProvideConnectionManager creates the connection manager and exports its
// health as gauges
func ProvideConnectionManager(
	dialer ports.StoreDialer,
	cfg *config.Config,
	sink ports.EventSink,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*connection.Manager, error) {
	manager := connection.NewManager(dialer, cfg.ConnectionConfig(), sink, logger)
	if metrics == nil {
		return manager, nil
	}

	gauges := []struct {
		name, help string
		fn         func() float64
	}{
		{"store_connected", "1 when the store handle is connected", func() float64 {
			if manager.Health().Connected {
				return 1
			}
			return 0
		}},
		{"store_consecutive_failures", "Consecutive failed store attempts", func() float64 {
			return float64(manager.Health().ConsecutiveFailures)
		}},
		{"store_operations", "Store attempts made since start", func() float64 {
			return float64(manager.Health().TotalOperations)
		}},
	}
	for _, g := range gauges {
		if err := metrics.RegisterGaugeFunc(metricsNamespace, g.name, g.help, g.fn); err != nil {
			return nil, fmt.Errorf("failed to register %s gauge: %w", g.name, err)
		}
	}
	return manager, nil
}

// ProvideExecutor wraps the connection manager with operation metrics
func ProvideExecutor(manager *connection.Manager, cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) ports.Executor {
	return infraobservability.NewMetricsExecutor(manager, metrics, cfg.OperationTimeout/2, logger)
}

// ProvideBatchWriter creates the batch writer
func ProvideBatchWriter(executor ports.Executor, cfg *config.Config, sink ports.EventSink, logger *zap.Logger) *batch.Writer {
	return batch.NewWriter(executor, cfg.BatchConfig(), sink, logger)
}

// ProvideSynergyGraph creates the synergy graph
func ProvideSynergyGraph(
	cfg *config.Config,
	queue ports.MutationQueue,
	executor ports.Executor,
	sink ports.EventSink,
	logger *zap.Logger,
) (*services.SynergyGraph, error) {
	return services.NewSynergyGraph(cfg.DomainConfig(), queue, executor, sink, logger)
}

// ProvidePersistLoop creates the background flush loop
func ProvidePersistLoop(graph *services.SynergyGraph, cfg *config.Config, logger *zap.Logger) *services.PersistLoop {
	return services.NewPersistLoop(graph, cfg.FlushInterval, cfg.OperationTimeout, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	graph *services.SynergyGraph,
	manager *connection.Manager,
	metrics *observability.Collector,
	tracing *observability.TracerProvider,
	cfg *config.Config,
	logger *zap.Logger,
) *rest.Router {
	options := rest.Options{EnableCORS: cfg.EnableCORS}
	if tracing != nil {
		options.Tracer = observability.Tracer(config.ServiceName)
	}
	return rest.NewRouter(graph, manager, metrics, options, logger)
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/lmittmann/tint"

	"github.com/procflow/retryd/internal/core"
	"github.com/procflow/retryd/internal/dispatch"
	"github.com/procflow/retryd/internal/expr"
	"github.com/procflow/retryd/internal/metrics"
	"github.com/procflow/retryd/internal/notify"
	"github.com/procflow/retryd/internal/procdef"
	"github.com/procflow/retryd/internal/retry"
	"github.com/procflow/retryd/internal/scheduler"
	"github.com/procflow/retryd/internal/server"
	"github.com/procflow/retryd/internal/state"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	ctx := context.Background()

	// State store
	var store state.Store
	var sqsClient *sqs.Client
	switch cfg.Store {
	case "memory":
		store = state.NewMemoryStore()
		logger.Info("in-memory state store ready")
	default:
		awsCfg, err := buildAWSConfig(cfg)
		if err != nil {
			logger.Error("failed to configure AWS", "error", err)
			os.Exit(1)
		}
		sqsClient = sqs.NewFromConfig(awsCfg)
		dynamoStore := state.NewDynamoDBStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable)
		if err := dynamoStore.EnsureTable(ctx); err != nil {
			logger.Error("failed to ensure DynamoDB table", "error", err)
			os.Exit(1)
		}
		store = dynamoStore
		logger.Info("DynamoDB state store ready", "table", cfg.DynamoDBTable)
	}
	defer store.Close()

	// Work-queue dispatcher
	var dispatcher dispatch.Dispatcher
	if sqsClient != nil {
		dispatcher = dispatch.NewSQSDispatcher(sqsClient, cfg.SQSQueuePrefix)
		logger.Info("SQS dispatcher ready", "prefix", cfg.SQSQueuePrefix, "region", cfg.AWSRegion)
	} else {
		dispatcher = dispatch.NewMemoryDispatcher(256)
		logger.Info("in-memory dispatcher ready")
	}
	defer dispatcher.Close()

	broker := notify.NewBroker()
	defer broker.Close()

	cache := procdef.NewCache(store)

	var retryOpts []retry.Option
	if cfg.GlobalRetryCycle != "" {
		retryOpts = append(retryOpts, retry.WithGlobalCycle(cfg.GlobalRetryCycle))
		logger.Info("global retry cycle configured", "cycle", cfg.GlobalRetryCycle)
	}
	retries := retry.NewHandler(store, cache, expr.NewTemplateEvaluator(), broker, broker, logger, retryOpts...)

	metrics.Init(core.EngineVersion, cfg.Store)

	sched := scheduler.New(store, dispatcher, broker, broker, logger,
		time.Duration(cfg.PromoteIntervalMs)*time.Millisecond)
	sched.Start()
	defer sched.Stop()

	router := server.NewRouter(server.Deps{
		Store:      store,
		Cache:      cache,
		Retries:    retries,
		Dispatcher: dispatcher,
		Subscriber: broker,
		StoreName:  cfg.Store,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("retryd listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

func buildLogger(cfg server.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if cfg.LogFormat == "text" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func buildAWSConfig(cfg server.Config) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.AWSRegion),
	}

	// For LocalStack or custom endpoints
	if cfg.AWSEndpointURL != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.AWSEndpointURL,
					HostnameImmutable: true,
					PartitionID:       "aws",
				}, nil
			},
		)
		opts = append(opts,
			config.WithEndpointResolverWithOptions(customResolver),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "test")),
		)
	}

	return config.LoadDefaultConfig(context.Background(), opts...)
}

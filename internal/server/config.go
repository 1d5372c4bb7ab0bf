package server

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Config holds server configuration. Values come from an optional YAML config
// file, overridden by environment variables.
type Config struct {
	Port           string `yaml:"port"`
	Store          string `yaml:"store"` // "dynamodb" or "memory"
	AWSRegion      string `yaml:"aws_region"`
	AWSEndpointURL string `yaml:"aws_endpoint_url"` // For LocalStack
	DynamoDBTable  string `yaml:"dynamodb_table"`
	SQSQueuePrefix string `yaml:"sqs_queue_prefix"`

	// GlobalRetryCycle is the engine-wide fallback retry cycle, applied to
	// failing jobs with no activity-level configuration. Empty disables it.
	GlobalRetryCycle string `yaml:"global_retry_cycle"`

	// PromoteIntervalMs bounds how long a due retry waits for promotion when
	// no wake signal arrives.
	PromoteIntervalMs int `yaml:"promote_interval_ms"`

	LogFormat string `yaml:"log_format"` // "json" or "text"
	LogLevel  string `yaml:"log_level"`
}

// LoadConfig reads configuration from RETRYD_CONFIG_FILE (if set) and the
// environment, with environment variables taking precedence.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:              "8080",
		Store:             "dynamodb",
		AWSRegion:         "us-east-1",
		DynamoDBTable:     "retryd-state",
		SQSQueuePrefix:    "retryd",
		PromoteIntervalMs: 200,
		LogFormat:         "json",
		LogLevel:          "info",
	}

	if path := os.Getenv("RETRYD_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("RETRYD_PORT", cfg.Port)
	cfg.Store = getEnv("RETRYD_STORE", cfg.Store)
	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.AWSEndpointURL = getEnv("AWS_ENDPOINT_URL", cfg.AWSEndpointURL)
	cfg.DynamoDBTable = getEnv("DYNAMODB_TABLE", cfg.DynamoDBTable)
	cfg.SQSQueuePrefix = getEnv("SQS_QUEUE_PREFIX", cfg.SQSQueuePrefix)
	cfg.GlobalRetryCycle = getEnv("RETRYD_GLOBAL_RETRY_CYCLE", cfg.GlobalRetryCycle)
	cfg.PromoteIntervalMs = getEnvInt("RETRYD_PROMOTE_INTERVAL_MS", cfg.PromoteIntervalMs)
	cfg.LogFormat = getEnv("RETRYD_LOG_FORMAT", cfg.LogFormat)
	cfg.LogLevel = getEnv("RETRYD_LOG_LEVEL", cfg.LogLevel)

	switch cfg.Store {
	case "dynamodb", "memory":
	default:
		return cfg, fmt.Errorf("invalid store %q: must be dynamodb or memory", cfg.Store)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

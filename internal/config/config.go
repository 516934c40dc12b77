package config

import (
	"errors"
	"net/url"
	"os"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers         []string
	KafkaRequestTopic    string
	KafkaResultTopic     string
	KafkaStatisticsTopic string
	KafkaGroupID         string
	HTTPAddr             string
	LogLevel             string
	LogFormat            string
	ShutdownTimeout      time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// PushgatewayURL enables pushing one-shot bake metrics when set.
	PushgatewayURL string

	// StatisticsEnabled wires write.publish_statistics to the statistics topic.
	StatisticsEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:         sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRequestTopic:    sharedcfg.EnvOrDefault("KAFKA_REQUEST_TOPIC", "cset-bake-requests"),
		KafkaResultTopic:     sharedcfg.EnvOrDefault("KAFKA_RESULT_TOPIC", "cset-bake-results"),
		KafkaStatisticsTopic: sharedcfg.EnvOrDefault("KAFKA_STATISTICS_TOPIC", "cset-statistics"),
		KafkaGroupID:         sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "cset-bake-worker"),
		HTTPAddr:             sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:             sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:      shutdownTimeout,
		BatchSize:            batchSize,
		BatchFlushInterval:   flushInterval,
		PushgatewayURL:       os.Getenv("PUSHGATEWAY_URL"),
	}

	cfg.StatisticsEnabled = len(cfg.KafkaBrokers) > 0
	if v := os.Getenv("STATISTICS_ENABLED"); v != "" {
		cfg.StatisticsEnabled = v == "true"
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaRequestTopic == "" {
		return nil, errors.New("KAFKA_REQUEST_TOPIC is required")
	}
	if cfg.KafkaResultTopic == "" {
		return nil, errors.New("KAFKA_RESULT_TOPIC is required")
	}
	if cfg.PushgatewayURL != "" {
		if u, err := url.Parse(cfg.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errors.New("invalid PUSHGATEWAY_URL: must be an absolute URL")
		}
	}

	return cfg, nil
}

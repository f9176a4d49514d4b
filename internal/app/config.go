package app

import (
	"time"

	"github.com/meridianbio/batchsight-backend/internal/platform/envutil"
)

type Config struct {
	Port        string
	LogMode     string
	Environment string
	Version     string

	ConnectorEnabled bool
	ConnectorTick    time.Duration
	ConnectorWindow  time.Duration
	ConnectorTimeout time.Duration
	ConnectorSeed    int
}

func LoadConfig() Config {
	return Config{
		Port:        envutil.String("PORT", "8080"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		Environment: envutil.String("ENVIRONMENT", "development"),
		Version:     envutil.String("SERVICE_VERSION", "dev"),

		ConnectorEnabled: envutil.Bool("CONNECTOR_ENABLED", true),
		ConnectorTick:    envutil.Duration("CONNECTOR_TICK_INTERVAL", 30*time.Second),
		ConnectorWindow:  envutil.Duration("CONNECTOR_COMPANION_WINDOW", 20*time.Second),
		ConnectorTimeout: envutil.Duration("CONNECTOR_TIMEOUT", 45*time.Second),
		ConnectorSeed:    envutil.Int("CONNECTOR_SEED", 1),
	}
}

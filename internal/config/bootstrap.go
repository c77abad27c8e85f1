package config

import (
	"fmt"
	"strings"
	"time"
)

// BootstrapConfig holds the process-wiring settings PipelineConfig
// deliberately excludes: where to listen, where the AI backend and the
// database live, and whether to emit OpenTelemetry traces. These are
// deployment concerns, not analysis thresholds — they never flow into an
// analyzer's decision logic.
type BootstrapConfig struct {
	ListenAddr  string
	MetricsPath string

	DatabaseURL string

	AIBaseURL string
	AIAPIKey  string

	OTelEnabled      bool
	OTelServiceName  string
	OTelEndpoint     string
	OTelSampleRate   float64

	ShutdownGracePeriod time.Duration
}

// DefaultBootstrap returns the documented defaults before any environment
// override is applied.
func DefaultBootstrap() *BootstrapConfig {
	return &BootstrapConfig{
		ListenAddr:  ":8080",
		MetricsPath: "/metrics",

		DatabaseURL: "",

		AIBaseURL: "http://localhost:11434/v1",
		AIAPIKey:  "",

		OTelEnabled:     false,
		OTelServiceName: "telemetry-pipeline",
		OTelEndpoint:    "localhost:4317",
		OTelSampleRate:  0.1,

		ShutdownGracePeriod: 15 * time.Second,
	}
}

// LoadBootstrap builds a BootstrapConfig from DefaultBootstrap overridden
// by GUARDIAN_-prefixed environment variables. Unlike Load, a database URL
// is mandatory: the pipeline serve command has nowhere durable to write
// without one.
func LoadBootstrap() (*BootstrapConfig, error) {
	cfg := DefaultBootstrap()
	l := &loader{}

	l.bindString("LISTEN_ADDR", &cfg.ListenAddr)
	l.bindString("METRICS_PATH", &cfg.MetricsPath)
	l.bindString("DATABASE_URL", &cfg.DatabaseURL)
	l.bindString("AI_BASE_URL", &cfg.AIBaseURL)
	l.bindString("AI_API_KEY", &cfg.AIAPIKey)
	l.bindBool("OTEL_ENABLED", &cfg.OTelEnabled)
	l.bindString("OTEL_SERVICE_NAME", &cfg.OTelServiceName)
	l.bindString("OTEL_ENDPOINT", &cfg.OTelEndpoint)
	l.bindFloat("OTEL_SAMPLE_RATE", &cfg.OTelSampleRate, 0, 1)
	l.bindDuration("SHUTDOWN_GRACE_PERIOD", &cfg.ShutdownGracePeriod)

	if cfg.DatabaseURL == "" {
		l.errs = append(l.errs, EnvPrefix+"_DATABASE_URL: is required")
	}

	if len(l.errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(l.errs, "; "))
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".workflowgate/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"workflowgate/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-southeast-2"`
}

// GatewayEnv carries every tunable of the mutation gateway. Defaults mirror
// the platform's production settings.
type GatewayEnv struct {
	RateLimitPerWindow int           `envconfig:"RATE_LIMIT_PER_WINDOW" default:"60"`
	RateLimitWindow    time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"60s"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	MaxWorkflowDepth   int           `envconfig:"MAX_WORKFLOW_DEPTH" default:"3"`
	MaxWorkflowNodes   int           `envconfig:"MAX_WORKFLOW_NODES" default:"50"`
	MaxBatchSize       int           `envconfig:"MAX_BATCH_SIZE" default:"10"`
	CleanupInterval    time.Duration `envconfig:"CLEANUP_INTERVAL" default:"5m"`
	ResetInterval      time.Duration `envconfig:"RESET_INTERVAL" default:"1h"`
	RetentionHorizon   time.Duration `envconfig:"RETENTION_HORIZON" default:"1h"`
	// PatternTablePath points at the forbidden-token table. Empty means the
	// built-in table with no hot reload.
	PatternTablePath string `envconfig:"PATTERN_TABLE_PATH" default:""`
}

// VAPIDEnv configures web-push alerting for blocked operations. Alerting is
// disabled when the keys are empty.
type VAPIDEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string `envconfig:"VAPID_SUBSCRIBER" default:"mailto:ops@tradeease.app"`
}

type Env struct {
	BaseEnv
	StorageEnv
	GatewayEnv
	VAPIDEnv
}

const namespace = "WORKFLOWGATE"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func GatewayEnvFromEnv(env *Env) *GatewayEnv {
	return &env.GatewayEnv
}

func VAPIDEnvFromEnv(env *Env) *VAPIDEnv {
	return &env.VAPIDEnv
}

// Package config loads the process-wide deployment conventions. The loaded
// struct is immutable by convention and passed explicitly into assembly so
// the declaration has no hidden global state.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all deployment tooling configuration.
type Config struct {
	Conventions Conventions `mapstructure:"conventions"`
	Log         LogConfig   `mapstructure:"log"`
}

// Conventions holds the fixed values every deployment shares regardless of
// stage: ports, resource shape, lookup keys and the trusted service
// principal. Varying any of these is a code change, not a per-stage knob.
type Conventions struct {
	// Region is the AWS region deployments target.
	Region string `mapstructure:"region"`

	// RepositoryName is the ECR repository holding the server image.
	RepositoryName string `mapstructure:"repository_name"`

	// ServicePrincipal is the identity allowed to assume the task roles.
	ServicePrincipal string `mapstructure:"service_principal"`

	// ContainerPort is the port the server listens on inside the container.
	ContainerPort int `mapstructure:"container_port"`

	// ListenerPort is the public HTTP listener port on the load balancer.
	ListenerPort int `mapstructure:"listener_port"`

	// DatabasePort is the port the data store accepts connections on.
	DatabasePort int `mapstructure:"database_port"`

	// TaskMemory and TaskCPU are the Fargate task resource shape.
	TaskMemory int `mapstructure:"task_memory"`
	TaskCPU    int `mapstructure:"task_cpu"`

	// LogRetentionDays is the CloudWatch log group retention window.
	LogRetentionDays int `mapstructure:"log_retention_days"`

	// DesiredCount is the number of running task copies per service.
	DesiredCount int `mapstructure:"desired_count"`

	// SecretNameParameter is the SSM parameter whose value is the name of
	// the Secrets Manager secret holding database connection material.
	SecretNameParameter string `mapstructure:"secret_name_parameter"`

	// DBSecurityGroupParameter is the SSM parameter whose value is the ID of
	// the data store's security group.
	DBSecurityGroupParameter string `mapstructure:"db_security_group_parameter"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("conventions.region", "us-east-1")
	v.SetDefault("conventions.repository_name", "web-server")
	v.SetDefault("conventions.service_principal", "ecs-tasks.amazonaws.com")
	v.SetDefault("conventions.container_port", 3000)
	v.SetDefault("conventions.listener_port", 80)
	v.SetDefault("conventions.database_port", 5432)
	v.SetDefault("conventions.task_memory", 512)
	v.SetDefault("conventions.task_cpu", 256)
	v.SetDefault("conventions.log_retention_days", 30)
	v.SetDefault("conventions.desired_count", 1)
	v.SetDefault("conventions.secret_name_parameter", "/web-server/db-secret-name")
	v.SetDefault("conventions.db_security_group_parameter", "/web-server/db-security-group-id")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("DEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

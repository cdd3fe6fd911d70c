package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "runforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Engine.Backend, "RUNFORGE_ENGINE")

	setString(&cfg.Sandbox.Image, "RUNFORGE_SANDBOX_IMAGE")
	setInt(&cfg.Sandbox.MemoryMB, "RUNFORGE_SANDBOX_MEMORY_MB")
	setInt(&cfg.Sandbox.MemoryReserveMB, "RUNFORGE_SANDBOX_MEMORY_RESERVE_MB")
	setInt(&cfg.Sandbox.CPUShares, "RUNFORGE_SANDBOX_CPU_SHARES")
	setInt(&cfg.Sandbox.CPUs, "RUNFORGE_SANDBOX_CPUS")
	setInt(&cfg.Sandbox.PidsLimit, "RUNFORGE_SANDBOX_PIDS_LIMIT")
	setString(&cfg.Sandbox.NetworkMode, "RUNFORGE_SANDBOX_NETWORK")
	setBool(&cfg.Sandbox.ReadOnlyRoot, "RUNFORGE_SANDBOX_READ_ONLY")
	setBool(&cfg.Sandbox.NoNewPrivileges, "RUNFORGE_SANDBOX_NO_NEW_PRIVS")
	setBool(&cfg.Sandbox.DropCaps, "RUNFORGE_SANDBOX_DROP_CAPS")
	setString(&cfg.Sandbox.SecurityProfile, "RUNFORGE_SANDBOX_SECURITY_PROFILE")
	setString(&cfg.Sandbox.User, "RUNFORGE_SANDBOX_USER")
	setString(&cfg.Sandbox.WorkDir, "RUNFORGE_SANDBOX_WORKDIR")

	setBool(&cfg.GC.Enabled, "RUNFORGE_GC_ENABLED")
	setDuration(&cfg.GC.Interval, "RUNFORGE_GC_INTERVAL")
	setDuration(&cfg.GC.MaxIdleTime, "RUNFORGE_GC_MAX_IDLE_TIME")
	setInt(&cfg.GC.MaxContainersPerUser, "RUNFORGE_GC_MAX_PER_USER")
	setInt(&cfg.GC.MaxContainersPerProj, "RUNFORGE_GC_MAX_PER_PROJECT")
	setInt64(&cfg.GC.MaxDiskMB, "RUNFORGE_GC_MAX_DISK_MB")
	setInt64(&cfg.GC.MaxMemoryMB, "RUNFORGE_GC_MAX_MEMORY_MB")
	setDuration(&cfg.GC.PreserveCompleted, "RUNFORGE_GC_PRESERVE_COMPLETED")
	setDuration(&cfg.GC.PreserveFailed, "RUNFORGE_GC_PRESERVE_FAILED")
	setBool(&cfg.GC.BackupBeforeDelete, "RUNFORGE_GC_BACKUP")

	setString(&cfg.Git.DefaultProvider, "RUNFORGE_GIT_PROVIDER")
	setBool(&cfg.Git.GitHub.Enabled, "RUNFORGE_GITHUB_ENABLED")
	setString(&cfg.Git.GitHub.BaseURL, "RUNFORGE_GITHUB_BASE_URL")
	setBool(&cfg.Git.GitLab.Enabled, "RUNFORGE_GITLAB_ENABLED")
	setString(&cfg.Git.GitLab.BaseURL, "RUNFORGE_GITLAB_BASE_URL")

	setInt(&cfg.Run.MaxIterations, "RUNFORGE_RUN_MAX_ITERATIONS")
	setDuration(&cfg.Run.ExecTimeout, "RUNFORGE_RUN_EXEC_TIMEOUT")
	setDuration(&cfg.Run.StopTimeout, "RUNFORGE_RUN_STOP_TIMEOUT")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "RUNFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "RUNFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "RUNFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "RUNFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "RUNFORGE_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")

	setInt64(&cfg.Cache.MaxSizeMB, "RUNFORGE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.ImageTTL, "RUNFORGE_CACHE_IMAGE_TTL")

	setString(&cfg.Archive.Endpoint, "RUNFORGE_ARCHIVE_ENDPOINT")
	setString(&cfg.Archive.AccessKey, "RUNFORGE_ARCHIVE_ACCESS_KEY")
	setString(&cfg.Archive.SecretKey, "RUNFORGE_ARCHIVE_SECRET_KEY")
	setString(&cfg.Archive.Bucket, "RUNFORGE_ARCHIVE_BUCKET")
	setBool(&cfg.Archive.UseSSL, "RUNFORGE_ARCHIVE_SSL")

	setString(&cfg.Logging.Level, "RUNFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "RUNFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "RUNFORGE_LOG_ASYNC")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	switch cfg.Engine.Backend {
	case "auto", "docker", "podman", "apple":
	default:
		return fmt.Errorf("engine.backend %q is not one of auto, docker, podman, apple", cfg.Engine.Backend)
	}
	if cfg.Sandbox.Image == "" {
		return errors.New("sandbox.image is required")
	}
	if cfg.GC.Interval <= 0 {
		return errors.New("gc.interval must be positive")
	}
	if cfg.GC.MaxContainersPerUser < 1 {
		return errors.New("gc.max_containers_per_user must be >= 1")
	}
	if cfg.Run.MaxIterations < 1 {
		return errors.New("run.max_iterations must be >= 1")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/appclacks/sloworker/internal/database"
	"github.com/appclacks/sloworker/internal/http"
	"github.com/appclacks/sloworker/internal/redisstore"
	"github.com/appclacks/sloworker/internal/tracing"
	"github.com/appclacks/sloworker/internal/validator"
	"github.com/appclacks/sloworker/internal/worker"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"

	RefreshTimeEnv = "SLI_REFRESH_TIME"
	DefaultSLOFile = "config.yaml"
)

type Configuration struct {
	Store    string
	HTTP     http.Configuration
	Database database.Configuration
	Redis    redisstore.Configuration
	Worker   worker.Configuration
	Tracing  tracing.Configuration
}

// Load reads the configuration file at path and resolves it into a
// complete configuration: defaults first, then environment overrides.
// Without a file, the SLIs are kept in memory.
func Load(logger *slog.Logger, path string, getenv func(string) string) (*Configuration, error) {
	config := Configuration{
		Worker: worker.Configuration{
			CommitRetries: worker.DefaultCommitRetries,
		},
	}
	if path == "" {
		config.Store = StoreMemory
	} else {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("fail to read configuration file: %w", err)
		}
		if err := yaml.Unmarshal(file, &config); err != nil {
			return nil, fmt.Errorf("fail to parse yaml configuration file: %w", err)
		}
	}
	err := config.resolve(logger, getenv)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Configuration) resolve(logger *slog.Logger, getenv func(string) string) error {
	if c.Store == "" {
		c.Store = StorePostgres
	}
	if c.Worker.SLOFile == "" {
		c.Worker.SLOFile = DefaultSLOFile
	}
	if c.Worker.Interval == 0 {
		c.Worker.Interval = worker.DefaultInterval
	}
	if c.Worker.Probe.Concurrency == 0 {
		c.Worker.Probe.Concurrency = 1
	}
	if refreshTime := getenv(RefreshTimeEnv); refreshTime != "" {
		seconds, err := strconv.Atoi(refreshTime)
		if err != nil || seconds <= 0 {
			logger.Warn(fmt.Sprintf("ignoring invalid %s value %q, refreshing every %s", RefreshTimeEnv, refreshTime, c.Worker.Interval))
		} else {
			c.Worker.Interval = time.Duration(seconds) * time.Second
		}
	}
	err := validator.Validator.Var(c.Store, "oneof=postgres redis memory")
	if err != nil {
		return fmt.Errorf("invalid store %q: %w", c.Store, err)
	}
	err = validator.Validator.Struct(c.Worker)
	if err != nil {
		return fmt.Errorf("invalid worker configuration: %w", err)
	}
	switch c.Store {
	case StorePostgres:
		err = validator.Validator.Struct(c.Database)
	case StoreRedis:
		err = validator.Validator.Struct(c.Redis)
	}
	if err != nil {
		return fmt.Errorf("invalid %s configuration: %w", c.Store, err)
	}
	return nil
}

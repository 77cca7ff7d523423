package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/appclacks/sloworker/config"
	"github.com/appclacks/sloworker/internal/database"
	"github.com/appclacks/sloworker/internal/memory"
	"github.com/appclacks/sloworker/internal/redisstore"
	"github.com/appclacks/sloworker/pkg/slo"
)

type sliStore interface {
	slo.Store
	Close() error
}

func openStore(ctx context.Context, logger *slog.Logger, appConfig *config.Configuration) (sliStore, error) {
	switch appConfig.Store {
	case config.StorePostgres:
		db, err := database.New(logger, appConfig.Database)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.StoreRedis:
		client, err := redisstore.New(ctx, logger, appConfig.Redis)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.StoreMemory:
		logger.Warn("using the in-memory store, SLIs will be lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store %s", appConfig.Store)
	}
}

func closeStore(logger *slog.Logger, s sliStore) {
	logger.Info("closing the SLI store")
	err := s.Close()
	if err != nil {
		logger.Error(fmt.Sprintf("fail to close the SLI store: %s", err.Error()))
	}
}

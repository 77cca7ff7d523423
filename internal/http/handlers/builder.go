package handlers

import (
	"context"
	"log/slog"

	"github.com/appclacks/sloworker/pkg/slo"
	"github.com/appclacks/sloworker/pkg/slo/aggregates"
)

type SLIService interface {
	Evaluations(ctx context.Context, definitions []aggregates.Definition) ([]slo.Evaluation, error)
	GetRate(ctx context.Context, url string) (aggregates.Rate, error)
}

type DefinitionsStore interface {
	Refresh() (bool, error)
	Definitions() []aggregates.Definition
}

type Builder struct {
	logger      *slog.Logger
	sli         SLIService
	definitions DefinitionsStore
}

func NewBuilder(logger *slog.Logger, sli SLIService, definitions DefinitionsStore) *Builder {
	return &Builder{
		logger:      logger,
		sli:         sli,
		definitions: definitions,
	}
}

package slo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/appclacks/sloworker/pkg/slo/aggregates"
	er "github.com/mcorbin/corbierror"
)

// Store persists one counters row per url.
//
// EnsureRow inserts a zeroed row if none exists. RecordOutcome increments
// the three counters of a row as one atomic, committed unit, and does
// nothing when the row is missing. RecordBatch
// applies EnsureRow and RecordOutcome for every outcome and commits once
// for the whole batch.
type Store interface {
	EnsureRow(ctx context.Context, url string) error
	RecordOutcome(ctx context.Context, outcome aggregates.Outcome) error
	RecordBatch(ctx context.Context, outcomes []aggregates.Outcome) error
	ListCounters(ctx context.Context) ([]aggregates.Counters, error)
}

type Service struct {
	logger *slog.Logger
	store  Store
}

func New(logger *slog.Logger, store Store) *Service {
	return &Service{
		logger: logger,
		store:  store,
	}
}

func (s *Service) RecordBatch(ctx context.Context, outcomes []aggregates.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	s.logger.Debug(fmt.Sprintf("recording %d outcomes", len(outcomes)))
	return s.store.RecordBatch(ctx, outcomes)
}

// ToRate computes the success and fast rates of a counters row.
func ToRate(counters aggregates.Counters) (aggregates.Rate, error) {
	if counters.Total == 0 {
		return aggregates.Rate{}, fmt.Errorf("%w (url %s)", ErrDivisionUndefined, counters.URL)
	}
	return aggregates.Rate{
		URL:         counters.URL,
		SuccessRate: float64(counters.Successful) / float64(counters.Total),
		FastRate:    float64(counters.Fast) / float64(counters.Total),
	}, nil
}

// ReadAll returns the rates of every counters row, sorted by url.
func (s *Service) ReadAll(ctx context.Context) ([]aggregates.Rate, error) {
	counters, err := s.store.ListCounters(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(counters, func(i, j int) bool {
		return counters[i].URL < counters[j].URL
	})
	result := make([]aggregates.Rate, 0, len(counters))
	for _, row := range counters {
		rate, err := ToRate(row)
		if err != nil {
			return nil, err
		}
		result = append(result, rate)
	}
	return result, nil
}

func (s *Service) GetRate(ctx context.Context, url string) (aggregates.Rate, error) {
	counters, err := s.store.ListCounters(ctx)
	if err != nil {
		return aggregates.Rate{}, err
	}
	for _, row := range counters {
		if row.URL == url {
			return ToRate(row)
		}
	}
	return aggregates.Rate{}, er.Newf("no SLI recorded for %s", er.NotFound, true, url)
}

// Evaluations joins the recorded rates with the objectives of definitions.
func (s *Service) Evaluations(ctx context.Context, definitions []aggregates.Definition) ([]Evaluation, error) {
	rates, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]Evaluation, 0, len(rates))
	for _, rate := range rates {
		result = append(result, Evaluate(rate, definitions))
	}
	return result, nil
}

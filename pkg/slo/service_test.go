package slo

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/appclacks/sloworker/pkg/slo/aggregates"
	er "github.com/mcorbin/corbierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) EnsureRow(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *mockStore) RecordOutcome(ctx context.Context, outcome aggregates.Outcome) error {
	args := m.Called(ctx, outcome)
	return args.Error(0)
}

func (m *mockStore) RecordBatch(ctx context.Context, outcomes []aggregates.Outcome) error {
	args := m.Called(ctx, outcomes)
	return args.Error(0)
}

func (m *mockStore) ListCounters(ctx context.Context) ([]aggregates.Counters, error) {
	args := m.Called(ctx)
	return args.Get(0).([]aggregates.Counters), args.Error(1)
}

func TestToRate(t *testing.T) {
	rate, err := ToRate(aggregates.Counters{URL: "a", Successful: 3, Fast: 1, Total: 4})
	assert.NoError(t, err)
	assert.Equal(t, aggregates.Rate{URL: "a", SuccessRate: 0.75, FastRate: 0.25}, rate)

	_, err = ToRate(aggregates.Counters{URL: "a"})
	assert.True(t, errors.Is(err, ErrDivisionUndefined))
}

func TestServiceRecordBatch(t *testing.T) {
	store := &mockStore{}
	service := New(slog.Default(), store)
	ctx := context.Background()

	err := service.RecordBatch(ctx, nil)
	assert.NoError(t, err)
	store.AssertNotCalled(t, "RecordBatch", mock.Anything, mock.Anything)

	outcomes := []aggregates.Outcome{{URL: "a", Successful: true}}
	storeErr := errors.New("connection reset")
	store.On("RecordBatch", ctx, outcomes).Return(storeErr).Once()
	err = service.RecordBatch(ctx, outcomes)
	assert.ErrorIs(t, err, storeErr)
	store.AssertExpectations(t)
}

func TestServiceReadAll(t *testing.T) {
	store := &mockStore{}
	service := New(slog.Default(), store)
	ctx := context.Background()
	store.On("ListCounters", ctx).Return([]aggregates.Counters{
		{URL: "https://b.com", Successful: 1, Fast: 1, Total: 2},
		{URL: "https://a.com", Successful: 4, Fast: 0, Total: 4},
	}, nil)

	rates, err := service.ReadAll(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []aggregates.Rate{
		{URL: "https://a.com", SuccessRate: 1, FastRate: 0},
		{URL: "https://b.com", SuccessRate: 0.5, FastRate: 0.5},
	}, rates)

	rate, err := service.GetRate(ctx, "https://b.com")
	assert.NoError(t, err)
	assert.Equal(t, 0.5, rate.SuccessRate)

	_, err = service.GetRate(ctx, "https://c.com")
	var corbiErr *er.Error
	assert.True(t, errors.As(err, &corbiErr))
	assert.Equal(t, er.NotFound, corbiErr.Type)

	evaluations, err := service.Evaluations(ctx, []aggregates.Definition{
		{URL: "https://a.com", SuccessRateThreshold: 0.99, FastRateThreshold: 0.5},
	})
	assert.NoError(t, err)
	assert.Len(t, evaluations, 2)
	assert.True(t, evaluations[0].SuccessObjectiveMet)
	assert.False(t, evaluations[0].FastObjectiveMet)
	assert.False(t, evaluations[1].SuccessObjectiveMet)
	assert.False(t, evaluations[1].FastObjectiveMet)
}

func TestServiceReadAllZeroTotal(t *testing.T) {
	store := &mockStore{}
	service := New(slog.Default(), store)
	ctx := context.Background()
	store.On("ListCounters", ctx).Return([]aggregates.Counters{
		{URL: "https://a.com"},
	}, nil)
	_, err := service.ReadAll(ctx)
	assert.True(t, errors.Is(err, ErrDivisionUndefined))
}

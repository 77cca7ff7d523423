package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/appclacks/sloworker/pkg/slo/aggregates"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	address := os.Getenv("SLOWORKER_TEST_REDIS")
	if address == "" {
		t.Skip("SLOWORKER_TEST_REDIS is not set")
	}
	store, err := New(context.Background(), slog.Default(), Configuration{
		Address: address,
		Prefix:  fmt.Sprintf("sloworker-test-%s", uuid.NewString()),
	})
	assert.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		keys, err := store.client.Keys(ctx, store.prefix+":*").Result()
		if err == nil && len(keys) > 0 {
			store.client.Del(ctx, keys...)
		}
		store.Close()
	})
	return store
}

func TestEnsureRowIsIdempotent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	url := "https://example.com"

	assert.NoError(t, store.EnsureRow(ctx, url))
	assert.NoError(t, store.EnsureRow(ctx, url))
	assert.NoError(t, store.RecordOutcome(ctx, aggregates.Outcome{URL: url, Successful: true, Fast: true}))

	counters, err := store.ListCounters(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []aggregates.Counters{{URL: url, Successful: 1, Fast: 1, Total: 1}}, counters)
}

func TestRecordOutcomeWithoutRow(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	assert.NoError(t, store.RecordOutcome(ctx, aggregates.Outcome{URL: "https://unknown.example.com", Successful: true}))
	counters, err := store.ListCounters(ctx)
	assert.NoError(t, err)
	assert.Empty(t, counters)
}

func TestRecordBatch(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	err := store.RecordBatch(ctx, []aggregates.Outcome{
		{URL: "a", Successful: true, Fast: false},
		{URL: "a", Successful: false, Fast: true},
		{URL: "b", Successful: true, Fast: true},
	})
	assert.NoError(t, err)

	counters, err := store.ListCounters(ctx)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []aggregates.Counters{
		{URL: "a", Successful: 1, Fast: 1, Total: 2},
		{URL: "b", Successful: 1, Fast: 1, Total: 1},
	}, counters)
}

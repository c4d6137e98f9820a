package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// fakeExpiredStore simulates a backlog that drains batch by batch
type fakeExpiredStore struct {
	remaining int64
	calls     []int
}

func (f *fakeExpiredStore) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	f.calls = append(f.calls, limit)
	batch := int64(limit)
	if f.remaining < batch {
		batch = f.remaining
	}
	f.remaining -= batch
	return batch, nil
}

func TestCleanupDrainsInBatches(t *testing.T) {
	alerts := &fakeExpiredStore{remaining: 250}
	janitor := NewJanitor(alerts, &fakeExpiredStore{}, nil, Config{BatchSize: 100}, testLogger())

	result, err := janitor.CleanupExpiredAlerts(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, int64(250), result.Deleted)
	// 100 + 100 + 50: the short batch ends the loop
	assert.Equal(t, []int{100, 100, 100}, alerts.calls)
}

func TestCleanupExactMultipleOfBatch(t *testing.T) {
	history := &fakeExpiredStore{remaining: 200}
	janitor := NewJanitor(&fakeExpiredStore{}, history, nil, Config{BatchSize: 100}, testLogger())

	result, err := janitor.CleanupExpiredHistory(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, int64(200), result.Deleted)
	// A full final batch needs one more call to observe the empty store
	assert.Equal(t, []int{100, 100, 100}, history.calls)
}

func TestCleanupIdempotent(t *testing.T) {
	alerts := &fakeExpiredStore{remaining: 50}
	janitor := NewJanitor(alerts, &fakeExpiredStore{}, nil, Config{BatchSize: 100}, testLogger())

	first, err := janitor.CleanupExpiredAlerts(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(50), first.Deleted)

	second, err := janitor.CleanupExpiredAlerts(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Deleted)
}

func TestCleanupRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	alerts := &fakeExpiredStore{remaining: 1000}
	janitor := NewJanitor(alerts, &fakeExpiredStore{}, nil, Config{BatchSize: 100}, testLogger())

	_, err := janitor.CleanupExpiredAlerts(ctx, time.Now())
	assert.Error(t, err)
	assert.Empty(t, alerts.calls)
}

package pattern

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRetryConfig() queueerr.RetryConfig {
	return queueerr.RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          10 * time.Millisecond,
	}
}

// fakeStore simulates the transactional pattern table in memory, including
// injected write races.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	rows     map[string]*Record
	links    map[string]int64
	failures []error
	calls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:  make(map[string]*Record),
		links: make(map[string]int64),
	}
}

func (s *fakeStore) TrackOnce(ctx context.Context, ruleKey, exampleLine, linkID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return 0, err
	}

	rec, ok := s.rows[ruleKey]
	if !ok {
		s.nextID++
		rec = &Record{ID: s.nextID, RuleKey: ruleKey, FirstSeen: time.Now()}
		s.rows[ruleKey] = rec
	}
	rec.OccurrenceCount++
	if rec.ExampleLine == "" {
		rec.ExampleLine = exampleLine
	}
	rec.UpdatedAt = time.Now()

	if linkID != "" {
		s.links[linkID] = rec.ID
	}

	return rec.ID, nil
}

func (s *fakeStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.rows))
	for _, rec := range s.rows {
		out = append(out, *rec)
	}
	return out, nil
}

func (s *fakeStore) record(ruleKey string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rows[ruleKey]
}

func TestRuleKey(t *testing.T) {
	assert.Equal(t, "R-QTY,R-UNIT,R-TEXT", RuleKey([]string{"R-QTY", "R-UNIT", "R-TEXT"}))
	assert.Equal(t, "R-TEXT", RuleKey([]string{"R-TEXT"}))

	// Order is significant: a different sequence is a different pattern
	assert.NotEqual(t, RuleKey([]string{"R-QTY", "R-TEXT"}), RuleKey([]string{"R-TEXT", "R-QTY"}))
}

func TestTracker_Track(t *testing.T) {
	t.Run("first sighting inserts with count one", func(t *testing.T) {
		store := newFakeStore()
		tracker := NewTrackerWithStore(store, testRetryConfig(), testLogger(), noSleep)

		id, err := tracker.Track(context.Background(), []string{"R-QTY", "R-TEXT"}, "2 cups flour", "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		rec := store.record("R-QTY,R-TEXT")
		assert.Equal(t, int64(1), rec.OccurrenceCount)
		assert.Equal(t, "2 cups flour", rec.ExampleLine)
	})

	t.Run("repeat sightings increment the same row", func(t *testing.T) {
		store := newFakeStore()
		tracker := NewTrackerWithStore(store, testRetryConfig(), testLogger(), noSleep)

		ruleIDs := []string{"R-QTY", "R-UNIT", "R-TEXT"}
		for i := 0; i < 5; i++ {
			id, err := tracker.Track(context.Background(), ruleIDs, "1 tbsp sugar", "")
			require.NoError(t, err)
			assert.Equal(t, int64(1), id)
		}

		rec := store.record("R-QTY,R-UNIT,R-TEXT")
		assert.Equal(t, int64(5), rec.OccurrenceCount)
	})

	t.Run("empty rule sequence rejected without touching the store", func(t *testing.T) {
		store := newFakeStore()
		tracker := NewTrackerWithStore(store, testRetryConfig(), testLogger(), noSleep)

		_, err := tracker.Track(context.Background(), nil, "", "")

		var je *queueerr.JobError
		require.ErrorAs(t, err, &je)
		assert.Equal(t, queueerr.KindValidation, je.Kind)
		assert.Equal(t, "EMPTY_PATTERN", je.Code)
		assert.Zero(t, store.calls)
	})

	t.Run("link id is recorded", func(t *testing.T) {
		store := newFakeStore()
		tracker := NewTrackerWithStore(store, testRetryConfig(), testLogger(), noSleep)

		id, err := tracker.Track(context.Background(), []string{"R-TEXT"}, "mix well", "content-9")
		require.NoError(t, err)
		assert.Equal(t, id, store.links["content-9"])
	})

	t.Run("unique violation is retried and absorbed", func(t *testing.T) {
		store := newFakeStore()
		store.failures = []error{
			&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"},
		}
		tracker := NewTrackerWithStore(store, testRetryConfig(), testLogger(), noSleep)

		id, err := tracker.Track(context.Background(), []string{"R-QTY"}, "3 eggs", "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
		assert.Equal(t, 2, store.calls)
	})

	t.Run("deadlock and serialization aborts are retried", func(t *testing.T) {
		store := newFakeStore()
		store.failures = []error{
			&pq.Error{Code: "40P01", Message: "deadlock detected"},
			&pq.Error{Code: "40001", Message: "could not serialize access"},
		}
		tracker := NewTrackerWithStore(store, testRetryConfig(), testLogger(), noSleep)

		_, err := tracker.Track(context.Background(), []string{"R-LIST"}, "salt, pepper", "")
		require.NoError(t, err)
		assert.Equal(t, 3, store.calls)
	})

	t.Run("persistent conflict exhausts attempts", func(t *testing.T) {
		store := newFakeStore()
		for i := 0; i < 10; i++ {
			store.failures = append(store.failures, &pq.Error{Code: "23505"})
		}
		tracker := NewTrackerWithStore(store, testRetryConfig(), testLogger(), noSleep)

		_, err := tracker.Track(context.Background(), []string{"R-QTY"}, "", "")
		require.Error(t, err)
		assert.Equal(t, 3, store.calls)

		var je *queueerr.JobError
		require.ErrorAs(t, err, &je)
		assert.Equal(t, queueerr.KindDatabase, je.Kind)
	})

	t.Run("non-retryable store error fails on first occurrence", func(t *testing.T) {
		store := newFakeStore()
		store.failures = []error{errors.New("pq: permission denied for table parse_patterns")}
		tracker := NewTrackerWithStore(store, testRetryConfig(), testLogger(), noSleep)

		_, err := tracker.Track(context.Background(), []string{"R-QTY"}, "", "")
		require.Error(t, err)
		assert.Equal(t, 1, store.calls)
	})

	t.Run("concurrent trackers converge on one row", func(t *testing.T) {
		store := newFakeStore()
		tracker := NewTrackerWithStore(store, testRetryConfig(), testLogger(), noSleep)

		const writers = 16
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := tracker.Track(context.Background(), []string{"R-QTY", "R-TEXT"}, "2 cups flour", "")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		rec := store.record("R-QTY,R-TEXT")
		assert.Equal(t, int64(writers), rec.OccurrenceCount)
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pq.Error{Code: "23505"}, true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"other pq code", &pq.Error{Code: "42501"}, false},
		{"plain error", errors.New("boom"), false},
		{"wrapped pq error", queueerr.Wrap(queueerr.KindDatabase, "conflict", &pq.Error{Code: "23505"}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

package pattern

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecer struct {
	nextID   int64
	getErr   error
	execErrs map[string]error
	execs    []string
}

func (f *fakeExecer) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if f.getErr != nil {
		return f.getErr
	}
	*(dest.(*int64)) = f.nextID
	return nil
}

func (f *fakeExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	stmt := strings.TrimSpace(query)
	f.execs = append(f.execs, stmt)
	for prefix, err := range f.execErrs {
		if strings.HasPrefix(stmt, prefix) {
			return nil, err
		}
	}
	return driver.RowsAffected(1), nil
}

func TestTrackTx(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("link failure rolls back to the savepoint and keeps the upsert", func(t *testing.T) {
		q := &fakeExecer{
			nextID:   7,
			execErrs: map[string]error{"UPDATE ingest_sources": errors.New("relation missing")},
		}

		id, err := trackTx(context.Background(), q, logger, "R-QTY|R-NAME", "2 cups flour", "content-1")

		require.NoError(t, err)
		assert.Equal(t, int64(7), id)

		require.Len(t, q.execs, 3)
		assert.Equal(t, "SAVEPOINT pattern_link", q.execs[0])
		assert.True(t, strings.HasPrefix(q.execs[1], "UPDATE ingest_sources"))
		assert.Equal(t, "ROLLBACK TO SAVEPOINT pattern_link", q.execs[2])
	})

	t.Run("successful link releases the savepoint", func(t *testing.T) {
		q := &fakeExecer{nextID: 3}

		id, err := trackTx(context.Background(), q, logger, "R-TEXT", "mix well", "content-2")

		require.NoError(t, err)
		assert.Equal(t, int64(3), id)

		require.Len(t, q.execs, 3)
		assert.Equal(t, "SAVEPOINT pattern_link", q.execs[0])
		assert.True(t, strings.HasPrefix(q.execs[1], "UPDATE ingest_sources"))
		assert.Equal(t, "RELEASE SAVEPOINT pattern_link", q.execs[2])
	})

	t.Run("no link target skips the savepoint machinery", func(t *testing.T) {
		q := &fakeExecer{nextID: 9}

		id, err := trackTx(context.Background(), q, logger, "R-LIST", "salt, pepper", "")

		require.NoError(t, err)
		assert.Equal(t, int64(9), id)
		assert.Empty(t, q.execs)
	})

	t.Run("upsert failure propagates", func(t *testing.T) {
		q := &fakeExecer{getErr: errors.New("connection reset")}

		_, err := trackTx(context.Background(), q, logger, "R-QTY", "3 eggs", "")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upsert pattern")
	})

	t.Run("unusable transaction after failed savepoint rollback propagates", func(t *testing.T) {
		q := &fakeExecer{
			nextID: 4,
			execErrs: map[string]error{
				"UPDATE ingest_sources": errors.New("relation missing"),
				"ROLLBACK TO SAVEPOINT": errors.New("connection reset"),
			},
		}

		_, err := trackTx(context.Background(), q, logger, "R-UNIT", "pinch of salt", "content-3")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to roll back link savepoint")
	})
}

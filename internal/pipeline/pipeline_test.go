package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipeworks/ingest-pipeline/internal/jobs"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

// stubAction records invocations; its body decides the outcome.
type stubAction struct {
	name jobs.ActionName
	fn   func(ctx context.Context, data Data, run Context) (Data, error)
}

func (a *stubAction) Name() jobs.ActionName { return a.name }

func (a *stubAction) Execute(ctx context.Context, data Data, run Context) (Data, error) {
	return a.fn(ctx, data, run)
}

func stubFactory(name jobs.ActionName, fn func(ctx context.Context, data Data, run Context) (Data, error)) Factory {
	return func(deps *Dependencies) Action {
		return &stubAction{name: name, fn: fn}
	}
}

func passThrough(name jobs.ActionName) Factory {
	return stubFactory(name, func(ctx context.Context, data Data, run Context) (Data, error) {
		return data, nil
	})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_Register(t *testing.T) {
	t.Run("register and build in order", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(jobs.QueueParse, jobs.ActionFetchSource, passThrough(jobs.ActionFetchSource)))
		require.NoError(t, r.Register(jobs.QueueParse, jobs.ActionParseContent, passThrough(jobs.ActionParseContent)))

		assert.Equal(t, []jobs.ActionName{jobs.ActionFetchSource, jobs.ActionParseContent}, r.Actions(jobs.QueueParse))
	})

	t.Run("duplicate registration rejected", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(jobs.QueueParse, jobs.ActionFetchSource, passThrough(jobs.ActionFetchSource)))

		err := r.Register(jobs.QueueParse, jobs.ActionFetchSource, passThrough(jobs.ActionFetchSource))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateAction)
	})

	t.Run("unknown queue rejected", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(jobs.QueueName("ingest.bogus"), jobs.ActionFetchSource, passThrough(jobs.ActionFetchSource))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownQueue)
	})

	t.Run("nil factory rejected", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(jobs.QueueParse, jobs.ActionFetchSource, nil)
		require.Error(t, err)
	})

	t.Run("create unknown action fails", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(jobs.QueueParse, jobs.ActionFetchSource, passThrough(jobs.ActionFetchSource)))

		_, err := r.Create(jobs.QueueParse, jobs.ActionCategorize, &Dependencies{})
		assert.ErrorIs(t, err, ErrUnknownAction)
	})

	t.Run("build unknown queue fails", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Build(jobs.QueueSave, &Dependencies{}, testLogger())
		assert.ErrorIs(t, err, ErrUnknownQueue)
	})
}

func TestPipeline_Run(t *testing.T) {
	t.Run("stages run sequentially and accumulate fields", func(t *testing.T) {
		r := NewRegistry()
		var order []string

		require.NoError(t, r.Register(jobs.QueueParse, jobs.ActionFetchSource,
			stubFactory(jobs.ActionFetchSource, func(ctx context.Context, data Data, run Context) (Data, error) {
				order = append(order, "fetch")
				return data.Set("raw_body", "line1\nline2"), nil
			})))
		require.NoError(t, r.Register(jobs.QueueParse, jobs.ActionParseContent,
			stubFactory(jobs.ActionParseContent, func(ctx context.Context, data Data, run Context) (Data, error) {
				order = append(order, "parse")
				// Upstream output must already be visible
				raw, err := data.String("raw_body")
				if err != nil {
					return nil, err
				}
				return data.Set("title", raw[:5]), nil
			})))

		p, err := r.Build(jobs.QueueParse, &Dependencies{}, testLogger())
		require.NoError(t, err)

		out, err := p.Run(context.Background(), Data{"content_id": "c-1"}, Context{JobID: "j-1", QueueName: jobs.QueueParse})
		require.NoError(t, err)

		assert.Equal(t, []string{"fetch", "parse"}, order)
		assert.Equal(t, "c-1", out["content_id"])
		assert.Equal(t, "line1\nline2", out["raw_body"])
		assert.Equal(t, "line1", out["title"])
	})

	t.Run("failure stops the run and carries context", func(t *testing.T) {
		r := NewRegistry()
		downstream := 0

		require.NoError(t, r.Register(jobs.QueueSave, jobs.ActionValidatePayload,
			stubFactory(jobs.ActionValidatePayload, func(ctx context.Context, data Data, run Context) (Data, error) {
				return nil, queueerr.NewDatabase("write failed")
			})))
		require.NoError(t, r.Register(jobs.QueueSave, jobs.ActionPersistContent,
			stubFactory(jobs.ActionPersistContent, func(ctx context.Context, data Data, run Context) (Data, error) {
				downstream++
				return data, nil
			})))

		p, err := r.Build(jobs.QueueSave, &Dependencies{}, testLogger())
		require.NoError(t, err)

		_, err = p.Run(context.Background(), Data{}, Context{JobID: "j-2", QueueName: jobs.QueueSave, Attempt: 1})
		require.Error(t, err)
		assert.Zero(t, downstream)

		var je *queueerr.JobError
		require.ErrorAs(t, err, &je)
		assert.Equal(t, queueerr.KindDatabase, je.Kind)
		assert.Equal(t, "j-2", je.JobID)
		assert.Equal(t, "ingest.save", je.QueueName)
		assert.Equal(t, 1, je.Attempt)
		assert.Equal(t, "validate_payload", je.Context["action"])
	})

	t.Run("run context is passed through", func(t *testing.T) {
		r := NewRegistry()
		var seen Context

		require.NoError(t, r.Register(jobs.QueueImage, jobs.ActionLoadContent,
			stubFactory(jobs.ActionLoadContent, func(ctx context.Context, data Data, run Context) (Data, error) {
				seen = run
				return data, nil
			})))

		p, err := r.Build(jobs.QueueImage, &Dependencies{}, testLogger())
		require.NoError(t, err)

		want := Context{JobID: "j-3", QueueName: jobs.QueueImage, Attempt: 2}
		_, err = p.Run(context.Background(), Data{}, want)
		require.NoError(t, err)
		assert.Equal(t, want, seen)
	})
}

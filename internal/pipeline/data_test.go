package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

func TestData_Set(t *testing.T) {
	t.Run("set leaves the receiver untouched", func(t *testing.T) {
		base := Data{"content_id": "c-1"}
		next := base.Set("title", "Pancakes")

		assert.Equal(t, "Pancakes", next["title"])
		_, ok := base["title"]
		assert.False(t, ok)
	})

	t.Run("set keeps upstream fields", func(t *testing.T) {
		d := Data{"a": 1}
		d = d.Set("b", 2)
		d = d.Set("c", 3)

		assert.Equal(t, 1, d["a"])
		assert.Equal(t, 2, d["b"])
		assert.Equal(t, 3, d["c"])
	})

	t.Run("set overwrites an existing key in the copy only", func(t *testing.T) {
		base := Data{"title": "Old"}
		next := base.Set("title", "New")

		assert.Equal(t, "New", next["title"])
		assert.Equal(t, "Old", base["title"])
	})
}

func TestData_String(t *testing.T) {
	d := Data{
		"content_id": "c-1",
		"count":      7,
	}

	t.Run("present string", func(t *testing.T) {
		v, err := d.String("content_id")
		require.NoError(t, err)
		assert.Equal(t, "c-1", v)
	})

	t.Run("missing field is a validation error", func(t *testing.T) {
		_, err := d.String("source_url")

		var je *queueerr.JobError
		require.ErrorAs(t, err, &je)
		assert.Equal(t, queueerr.KindValidation, je.Kind)
		assert.Equal(t, "MISSING_FIELD", je.Code)
		assert.Equal(t, "source_url", je.Context["field"])
	})

	t.Run("wrong type is a validation error", func(t *testing.T) {
		_, err := d.String("count")

		var je *queueerr.JobError
		require.ErrorAs(t, err, &je)
		assert.Equal(t, queueerr.KindValidation, je.Kind)
		assert.Equal(t, "INVALID_FIELD", je.Code)
	})
}

func TestData_Strings(t *testing.T) {
	t.Run("native string slice", func(t *testing.T) {
		d := Data{"lines": []string{"a", "b"}}
		v, err := d.Strings("lines")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, v)
	})

	t.Run("json-decoded any slice", func(t *testing.T) {
		d := Data{"lines": []any{"a", "b"}}
		v, err := d.Strings("lines")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, v)
	})

	t.Run("mixed any slice rejected", func(t *testing.T) {
		d := Data{"lines": []any{"a", 2}}
		_, err := d.Strings("lines")

		var je *queueerr.JobError
		require.ErrorAs(t, err, &je)
		assert.Equal(t, "INVALID_FIELD", je.Code)
	})

	t.Run("missing field rejected", func(t *testing.T) {
		_, err := Data{}.Strings("lines")

		var je *queueerr.JobError
		require.ErrorAs(t, err, &je)
		assert.Equal(t, "MISSING_FIELD", je.Code)
	})
}

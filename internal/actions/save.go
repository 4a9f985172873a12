package actions

import (
	"context"

	"github.com/recipeworks/ingest-pipeline/internal/content"
	"github.com/recipeworks/ingest-pipeline/internal/jobs"
	"github.com/recipeworks/ingest-pipeline/internal/pipeline"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

// validatePayload checks that the save queue received everything the rest
// of its pipeline needs. Missing fields fail non-retryably before any
// side effect happens.
// Reads: content_id, parsed_lines.
type validatePayload struct {
	deps *pipeline.Dependencies
}

// NewValidatePayload constructs the validate_payload action.
func NewValidatePayload(deps *pipeline.Dependencies) pipeline.Action {
	return &validatePayload{deps: deps}
}

func (a *validatePayload) Name() jobs.ActionName {
	return jobs.ActionValidatePayload
}

func (a *validatePayload) Execute(ctx context.Context, data pipeline.Data, run pipeline.Context) (pipeline.Data, error) {
	if _, err := data.String(KeyContentID); err != nil {
		return nil, err
	}

	lines, err := parsedLines(data)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, queueerr.NewValidation("parsed line list is empty").
			WithCode("EMPTY_PAYLOAD")
	}

	return data, nil
}

// persistContent writes the content record and its lines.
// Reads: content_id, parsed_lines, title?, image_url?.
type persistContent struct {
	deps *pipeline.Dependencies
}

// NewPersistContent constructs the persist_content action.
func NewPersistContent(deps *pipeline.Dependencies) pipeline.Action {
	return &persistContent{deps: deps}
}

func (a *persistContent) Name() jobs.ActionName {
	return jobs.ActionPersistContent
}

func (a *persistContent) Execute(ctx context.Context, data pipeline.Data, run pipeline.Context) (pipeline.Data, error) {
	contentID, err := data.String(KeyContentID)
	if err != nil {
		return nil, err
	}

	lines, err := parsedLines(data)
	if err != nil {
		return nil, err
	}

	// Optional upstream fields
	title, _ := data.String(KeyTitle)
	imageURL, _ := data.String(KeyImageURL)

	c := &content.Content{
		ContentID: contentID,
		Title:     title,
		ImageURL:  imageURL,
		Lines:     make([]content.Line, len(lines)),
	}
	for i, line := range lines {
		c.Lines[i] = content.Line{
			ContentID: contentID,
			LineNo:    i + 1,
			Text:      line.Text,
		}
	}

	if err := a.deps.Content.SaveContent(ctx, c); err != nil {
		return nil, queueerr.Wrap(queueerr.KindDatabase, "failed to persist content", err)
	}

	return data, nil
}

package actions

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/recipeworks/ingest-pipeline/internal/content"
	"github.com/recipeworks/ingest-pipeline/internal/jobs"
	"github.com/recipeworks/ingest-pipeline/internal/pipeline"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

// loadContent fetches a persisted content record. Shared by the categorize
// and image queues.
// Reads: content_id. Produces: title, image_url, lines.
type loadContent struct {
	deps *pipeline.Dependencies
}

// NewLoadContent constructs the load_content action.
func NewLoadContent(deps *pipeline.Dependencies) pipeline.Action {
	return &loadContent{deps: deps}
}

func (a *loadContent) Name() jobs.ActionName {
	return jobs.ActionLoadContent
}

const keyLines = "lines"

func (a *loadContent) Execute(ctx context.Context, data pipeline.Data, run pipeline.Context) (pipeline.Data, error) {
	contentID, err := data.String(KeyContentID)
	if err != nil {
		return nil, err
	}

	c, err := a.deps.Content.GetContent(ctx, contentID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, queueerr.NewValidation("content not found").
				WithCode("CONTENT_NOT_FOUND").
				WithContext("content_id", contentID)
		}
		return nil, queueerr.Wrap(queueerr.KindDatabase, "failed to load content", err)
	}

	lines := make([]string, len(c.Lines))
	for i, line := range c.Lines {
		lines[i] = line.Text
	}

	data = data.Set(KeyTitle, c.Title)
	data = data.Set(KeyImageURL, c.ImageURL)
	data = data.Set(keyLines, lines)
	return data, nil
}

// categorize derives category tags from the content lines.
// Reads: lines. Produces: categories.
type categorize struct {
	deps *pipeline.Dependencies
}

// NewCategorize constructs the categorize action.
func NewCategorize(deps *pipeline.Dependencies) pipeline.Action {
	return &categorize{deps: deps}
}

func (a *categorize) Name() jobs.ActionName {
	return jobs.ActionCategorize
}

var categoryKeywords = map[string][]string{
	"meat":      {"chicken", "beef", "pork", "lamb", "bacon"},
	"seafood":   {"fish", "salmon", "shrimp", "tuna"},
	"baking":    {"flour", "sugar", "yeast", "dough"},
	"dairy":     {"milk", "butter", "cheese", "cream"},
	"vegetable": {"onion", "garlic", "carrot", "tomato", "pepper"},
}

func (a *categorize) Execute(ctx context.Context, data pipeline.Data, run pipeline.Context) (pipeline.Data, error) {
	lines, err := data.Strings(keyLines)
	if err != nil {
		return nil, err
	}

	found := make(map[string]bool)
	for _, line := range lines {
		lower := strings.ToLower(line)
		for category, keywords := range categoryKeywords {
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					found[category] = true
					break
				}
			}
		}
	}

	categories := make([]string, 0, len(found))
	for category := range found {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	if len(categories) == 0 {
		categories = []string{"uncategorized"}
	}

	return data.Set(KeyCategories, categories), nil
}

// persistCategories writes the derived category assignments.
// Reads: content_id, categories.
type persistCategories struct {
	deps *pipeline.Dependencies
}

// NewPersistCategories constructs the persist_categories action.
func NewPersistCategories(deps *pipeline.Dependencies) pipeline.Action {
	return &persistCategories{deps: deps}
}

func (a *persistCategories) Name() jobs.ActionName {
	return jobs.ActionPersistCategories
}

func (a *persistCategories) Execute(ctx context.Context, data pipeline.Data, run pipeline.Context) (pipeline.Data, error) {
	contentID, err := data.String(KeyContentID)
	if err != nil {
		return nil, err
	}

	categories, err := data.Strings(KeyCategories)
	if err != nil {
		return nil, err
	}

	if err := a.deps.Content.SaveCategories(ctx, contentID, categories); err != nil {
		return nil, queueerr.Wrap(queueerr.KindDatabase, "failed to persist categories", err)
	}

	return data, nil
}

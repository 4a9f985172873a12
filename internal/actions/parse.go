package actions

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/recipeworks/ingest-pipeline/internal/content"
	"github.com/recipeworks/ingest-pipeline/internal/jobs"
	"github.com/recipeworks/ingest-pipeline/internal/pipeline"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

// fetchSource loads the staged raw upload for a content id.
// Reads: content_id. Produces: raw_body, source_url.
type fetchSource struct {
	deps *pipeline.Dependencies
}

// NewFetchSource constructs the fetch_source action.
func NewFetchSource(deps *pipeline.Dependencies) pipeline.Action {
	return &fetchSource{deps: deps}
}

func (a *fetchSource) Name() jobs.ActionName {
	return jobs.ActionFetchSource
}

func (a *fetchSource) Execute(ctx context.Context, data pipeline.Data, run pipeline.Context) (pipeline.Data, error) {
	contentID, err := data.String(KeyContentID)
	if err != nil {
		return nil, err
	}

	src, err := a.deps.Content.GetSource(ctx, contentID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, queueerr.NewValidation("source not found for content id").
				WithCode("SOURCE_NOT_FOUND").
				WithContext("content_id", contentID)
		}
		return nil, queueerr.Wrap(queueerr.KindDatabase, "failed to fetch source", err)
	}

	data = data.Set(KeyRawBody, src.RawBody)
	data = data.Set(KeySourceURL, src.SourceURL)
	return data, nil
}

// parseContent normalizes the raw body into parsed lines tagged with the
// rule ids that matched them.
// Reads: raw_body. Produces: parsed_lines, title.
type parseContent struct {
	deps *pipeline.Dependencies
}

// NewParseContent constructs the parse_content action.
func NewParseContent(deps *pipeline.Dependencies) pipeline.Action {
	return &parseContent{deps: deps}
}

func (a *parseContent) Name() jobs.ActionName {
	return jobs.ActionParseContent
}

func (a *parseContent) Execute(ctx context.Context, data pipeline.Data, run pipeline.Context) (pipeline.Data, error) {
	raw, err := data.String(KeyRawBody)
	if err != nil {
		return nil, err
	}

	var parsed []ParsedLine
	title := ""
	for _, line := range strings.Split(raw, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if title == "" {
			title = text
		}
		parsed = append(parsed, ParsedLine{
			Text:    text,
			RuleIDs: ruleIDsFor(text),
		})
	}

	if len(parsed) == 0 {
		return nil, queueerr.NewParsing("no parseable lines in source body").
			WithCode("EMPTY_SOURCE")
	}

	data = data.Set(KeyParsedLines, parsed)
	data = data.Set(KeyTitle, title)
	return data, nil
}

// ruleIDsFor classifies one normalized line into the ordered rule-id
// sequence that describes how it parses. Deterministic for a given text.
func ruleIDsFor(text string) []string {
	var rules []string

	fields := strings.Fields(strings.ToLower(text))
	if len(fields) > 0 && startsWithDigit(fields[0]) {
		rules = append(rules, "R-QTY")
	}
	for _, f := range fields {
		if isUnit(f) {
			rules = append(rules, "R-UNIT")
			break
		}
	}
	if strings.Contains(text, ",") {
		rules = append(rules, "R-LIST")
	}
	if len(rules) == 0 {
		rules = append(rules, "R-TEXT")
	} else {
		rules = append(rules, "R-NAME")
	}

	return rules
}

func startsWithDigit(s string) bool {
	for _, r := range s {
		return unicode.IsDigit(r)
	}
	return false
}

var units = map[string]bool{
	"g": true, "kg": true, "mg": true,
	"ml": true, "l": true,
	"tsp": true, "tbsp": true, "cup": true, "cups": true,
	"oz": true, "lb": true, "pinch": true,
}

func isUnit(s string) bool {
	return units[strings.Trim(s, ".,")]
}

// trackPatterns records each parsed line's rule-id signature, linking the
// pattern back to the originating source record.
// Reads: parsed_lines, content_id. Produces: pattern_ids.
type trackPatterns struct {
	deps *pipeline.Dependencies
}

// NewTrackPatterns constructs the track_patterns action.
func NewTrackPatterns(deps *pipeline.Dependencies) pipeline.Action {
	return &trackPatterns{deps: deps}
}

func (a *trackPatterns) Name() jobs.ActionName {
	return jobs.ActionTrackPatterns
}

func (a *trackPatterns) Execute(ctx context.Context, data pipeline.Data, run pipeline.Context) (pipeline.Data, error) {
	contentID, err := data.String(KeyContentID)
	if err != nil {
		return nil, err
	}

	lines, err := parsedLines(data)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		id, err := a.deps.Patterns.Track(ctx, line.RuleIDs, line.Text, contentID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return data.Set(KeyPatternIDs, ids), nil
}

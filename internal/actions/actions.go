// Package actions holds the concrete ingestion pipeline steps for every
// queue. Each action is registered at startup; the registration order below
// fixes each queue's pipeline order.
package actions

import (
	"encoding/json"
	"fmt"

	"github.com/recipeworks/ingest-pipeline/internal/jobs"
	"github.com/recipeworks/ingest-pipeline/internal/pipeline"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

// Envelope field keys. Each stage documents which keys it reads and which
// it produces; a stage never deletes an upstream key.
const (
	KeyContentID    = "content_id"
	KeySourceURL    = "source_url"
	KeyRawBody      = "raw_body"
	KeyTitle        = "title"
	KeyImageURL     = "image_url"
	KeyParsedLines  = "parsed_lines"
	KeyPatternIDs   = "pattern_ids"
	KeyCategories   = "categories"
	KeyThumbnailKey = "thumbnail_key"
	KeyImageWidth   = "image_width"
	KeyImageHeight  = "image_height"
)

// ParsedLine is one normalized content line with the ordered rule-id
// sequence that parsed it.
type ParsedLine struct {
	Text    string   `json:"text"`
	RuleIDs []string `json:"rule_ids"`
}

// RegisterAll binds every queue's pipeline into the registry.
func RegisterAll(reg *pipeline.Registry) error {
	type binding struct {
		queue   jobs.QueueName
		name    jobs.ActionName
		factory pipeline.Factory
	}

	bindings := []binding{
		{jobs.QueueParse, jobs.ActionFetchSource, NewFetchSource},
		{jobs.QueueParse, jobs.ActionParseContent, NewParseContent},
		{jobs.QueueParse, jobs.ActionTrackPatterns, NewTrackPatterns},
		{jobs.QueueParse, jobs.ActionPublishNext, NewPublishNext(jobs.QueueSave)},

		{jobs.QueueSave, jobs.ActionValidatePayload, NewValidatePayload},
		{jobs.QueueSave, jobs.ActionPersistContent, NewPersistContent},
		{jobs.QueueSave, jobs.ActionBroadcastStatus, NewBroadcastStatus("saved")},
		{jobs.QueueSave, jobs.ActionPublishNext, NewPublishNext(jobs.QueueCategorize, jobs.QueueImage)},

		{jobs.QueueCategorize, jobs.ActionLoadContent, NewLoadContent},
		{jobs.QueueCategorize, jobs.ActionCategorize, NewCategorize},
		{jobs.QueueCategorize, jobs.ActionPersistCategories, NewPersistCategories},
		{jobs.QueueCategorize, jobs.ActionBroadcastStatus, NewBroadcastStatus("categorized")},

		{jobs.QueueImage, jobs.ActionLoadContent, NewLoadContent},
		{jobs.QueueImage, jobs.ActionProcessImage, NewProcessImage},
		{jobs.QueueImage, jobs.ActionPersistImage, NewPersistImage},
		{jobs.QueueImage, jobs.ActionBroadcastStatus, NewBroadcastStatus("image_processed")},
	}

	for _, b := range bindings {
		if err := reg.Register(b.queue, b.name, b.factory); err != nil {
			return fmt.Errorf("failed to register %s on %s: %w", b.name, b.queue, err)
		}
	}

	return nil
}

// parsedLines extracts the parsed-line slice from the envelope. Values that
// crossed a queue boundary arrive JSON-decoded as []any and are converted
// through a round trip.
func parsedLines(data pipeline.Data) ([]ParsedLine, error) {
	v, ok := data.Value(KeyParsedLines)
	if !ok {
		return nil, queueerr.NewValidation("required field missing: "+KeyParsedLines).
			WithCode("MISSING_FIELD").
			WithContext("field", KeyParsedLines)
	}

	if lines, ok := v.([]ParsedLine); ok {
		return lines, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, queueerr.Wrap(queueerr.KindValidation, "field has wrong type: "+KeyParsedLines, err).
			WithCode("INVALID_FIELD")
	}
	var lines []ParsedLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, queueerr.Wrap(queueerr.KindValidation, "field has wrong type: "+KeyParsedLines, err).
			WithCode("INVALID_FIELD")
	}
	return lines, nil
}

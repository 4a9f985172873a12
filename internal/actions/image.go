package actions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/recipeworks/ingest-pipeline/internal/content"
	"github.com/recipeworks/ingest-pipeline/internal/jobs"
	"github.com/recipeworks/ingest-pipeline/internal/pipeline"
	"github.com/recipeworks/ingest-pipeline/internal/queueerr"
)

// Thumbnail dimensions applied by the external image resizer.
const (
	thumbnailWidth  = 512
	thumbnailHeight = 512
)

// processImage derives the stored thumbnail location for the content image.
// The actual byte transform lives in the external image service; this stage
// computes the deterministic storage key so retries land on the same object.
// Reads: image_url. Produces: thumbnail_key, image_width, image_height.
type processImage struct {
	deps *pipeline.Dependencies
}

// NewProcessImage constructs the process_image action.
func NewProcessImage(deps *pipeline.Dependencies) pipeline.Action {
	return &processImage{deps: deps}
}

func (a *processImage) Name() jobs.ActionName {
	return jobs.ActionProcessImage
}

func (a *processImage) Execute(ctx context.Context, data pipeline.Data, run pipeline.Context) (pipeline.Data, error) {
	imageURL, err := data.String(KeyImageURL)
	if err != nil {
		return nil, err
	}
	if imageURL == "" {
		return nil, queueerr.NewValidation("content has no image to process").
			WithCode("NO_IMAGE")
	}

	sum := sha256.Sum256([]byte(imageURL))
	key := fmt.Sprintf("thumbs/%s.jpg", hex.EncodeToString(sum[:8]))

	data = data.Set(KeyThumbnailKey, key)
	data = data.Set(KeyImageWidth, thumbnailWidth)
	data = data.Set(KeyImageHeight, thumbnailHeight)
	return data, nil
}

// persistImage writes the processed image metadata.
// Reads: content_id, image_url, thumbnail_key, image_width, image_height.
type persistImage struct {
	deps *pipeline.Dependencies
}

// NewPersistImage constructs the persist_image action.
func NewPersistImage(deps *pipeline.Dependencies) pipeline.Action {
	return &persistImage{deps: deps}
}

func (a *persistImage) Name() jobs.ActionName {
	return jobs.ActionPersistImage
}

func (a *persistImage) Execute(ctx context.Context, data pipeline.Data, run pipeline.Context) (pipeline.Data, error) {
	contentID, err := data.String(KeyContentID)
	if err != nil {
		return nil, err
	}
	imageURL, err := data.String(KeyImageURL)
	if err != nil {
		return nil, err
	}
	thumbnailKey, err := data.String(KeyThumbnailKey)
	if err != nil {
		return nil, err
	}

	img := &content.Image{
		ContentID:    contentID,
		SourceURL:    imageURL,
		ThumbnailKey: thumbnailKey,
		Width:        intField(data, KeyImageWidth, thumbnailWidth),
		Height:       intField(data, KeyImageHeight, thumbnailHeight),
	}

	if err := a.deps.Content.SaveImage(ctx, img); err != nil {
		return nil, queueerr.Wrap(queueerr.KindDatabase, "failed to persist image", err)
	}

	return data, nil
}

// intField reads an optional numeric field, tolerating the float64 shape
// JSON decoding produces.
func intField(data pipeline.Data, key string, fallback int) int {
	v, ok := data.Value(key)
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return fallback
	}
}

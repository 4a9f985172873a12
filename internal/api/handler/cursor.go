package handler

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/recipeworks/ingest-pipeline/internal/pattern"
)

func DecodePatternCursor(cursorStr string) (*pattern.Cursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.Split(string(decoded), "|")
	if len(decodedParts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var occurrenceCount, id int64
	if _, err := fmt.Sscanf(decodedParts[0], "%d", &occurrenceCount); err != nil {
		return nil, fmt.Errorf("invalid occurrence count in cursor: %w", err)
	}
	if _, err := fmt.Sscanf(decodedParts[1], "%d", &id); err != nil {
		return nil, fmt.Errorf("invalid id in cursor: %w", err)
	}

	return &pattern.Cursor{
		OccurrenceCount: occurrenceCount,
		ID:              id,
	}, nil
}

func EncodePatternCursor(cursor *pattern.Cursor) string {
	cs := fmt.Sprintf("%d|%d", cursor.OccurrenceCount, cursor.ID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}

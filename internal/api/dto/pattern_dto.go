package dto

// ListPatternsRequest holds query parameters for GET /api/v1/patterns
type ListPatternsRequest struct {
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

// PatternDTO is the API representation of a tracked parse pattern
type PatternDTO struct {
	ID              int64  `json:"id"`
	RuleKey         string `json:"rule_key"`
	ExampleLine     string `json:"example_line,omitempty"`
	OccurrenceCount int64  `json:"occurrence_count"`
	FirstSeen       string `json:"first_seen"`
	UpdatedAt       string `json:"updated_at"`
}

// ListPatternsResponse is the payload of GET /api/v1/patterns
type ListPatternsResponse struct {
	Patterns   []PatternDTO `json:"patterns"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

package pattern

import (
	"strings"
	"time"
)

// Record is one deduplicated parse pattern, keyed by the exact ordered
// rule-id sequence. Created on first sighting, counted up on every
// subsequent one; never deleted by this subsystem.
type Record struct {
	ID              int64     `db:"id"`
	RuleKey         string    `db:"rule_key"`
	ExampleLine     string    `db:"example_line"`
	OccurrenceCount int64     `db:"occurrence_count"`
	FirstSeen       time.Time `db:"first_seen"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// RuleIDs returns the ordered rule-id sequence behind the natural key.
func (r *Record) RuleIDs() []string {
	if r.RuleKey == "" {
		return nil
	}
	return strings.Split(r.RuleKey, ",")
}

// RuleKey builds the natural key for an ordered rule-id sequence.
func RuleKey(ruleIDs []string) string {
	return strings.Join(ruleIDs, ",")
}

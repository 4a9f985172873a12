package jobs

import (
	"encoding/json"
	"time"
)

// QueueName identifies one ingestion queue. The set is closed: every queue
// has a fixed pipeline registered at startup.
type QueueName string

const (
	QueueParse      QueueName = "ingest.parse"
	QueueSave       QueueName = "ingest.save"
	QueueCategorize QueueName = "ingest.categorize"
	QueueImage      QueueName = "ingest.image"
)

// AllQueues returns every known queue in registration order.
func AllQueues() []QueueName {
	return []QueueName{QueueParse, QueueSave, QueueCategorize, QueueImage}
}

// Valid reports whether q is one of the known queues.
func (q QueueName) Valid() bool {
	switch q {
	case QueueParse, QueueSave, QueueCategorize, QueueImage:
		return true
	}
	return false
}

func (q QueueName) String() string {
	return string(q)
}

// ActionName identifies one composable pipeline step. Closed enumeration;
// the registry rejects names outside this set at startup.
type ActionName string

const (
	ActionFetchSource       ActionName = "fetch_source"
	ActionParseContent      ActionName = "parse_content"
	ActionTrackPatterns     ActionName = "track_patterns"
	ActionValidatePayload   ActionName = "validate_payload"
	ActionPersistContent    ActionName = "persist_content"
	ActionLoadContent       ActionName = "load_content"
	ActionCategorize        ActionName = "categorize"
	ActionPersistCategories ActionName = "persist_categories"
	ActionProcessImage      ActionName = "process_image"
	ActionPersistImage      ActionName = "persist_image"
	ActionBroadcastStatus   ActionName = "broadcast_status"
	ActionPublishNext       ActionName = "publish_next"
)

func (a ActionName) String() string {
	return string(a)
}

// EntryAction names the first action of a queue's pipeline. Jobs carry it
// for correlation; the pipeline order itself lives in the registry.
func EntryAction(q QueueName) ActionName {
	switch q {
	case QueueParse:
		return ActionFetchSource
	case QueueSave:
		return ActionValidatePayload
	case QueueCategorize, QueueImage:
		return ActionLoadContent
	default:
		return ""
	}
}

// Job is one unit of queued work. The queue transport owns persistence of
// pending and failed jobs; this struct is the wire and in-memory shape only.
type Job struct {
	JobID      string          `json:"job_id"`
	QueueName  QueueName       `json:"queue_name"`
	ActionName ActionName      `json:"action_name"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Message is a job as delivered by the broker, paired with the delivery tag
// needed for manual ack/nack.
type Message struct {
	Job
	DeliveryTag uint64 `json:"-"`
}

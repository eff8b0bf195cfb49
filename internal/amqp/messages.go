package amqp

import (
	"encoding/json"
	"time"
)

// Operations carried by DatasetChangedMessage.
const (
	OpCreate  = "create"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpRestore = "restore"
)

// DatasetChangedMessage tells consumers that the persisted collection was
// rewritten. It carries no records: consumers read the current blob from
// storage themselves.
type DatasetChangedMessage struct {
	Operation   string    `json:"operation"`
	RecordID    string    `json:"record_id,omitempty"`
	RecordCount int       `json:"record_count"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewDatasetChangedMessage(operation, recordID string, recordCount int) *DatasetChangedMessage {
	return &DatasetChangedMessage{
		Operation:   operation,
		RecordID:    recordID,
		RecordCount: recordCount,
		Timestamp:   time.Now(),
	}
}

func (m *DatasetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DatasetChangedMessageFromJSON(data []byte) (*DatasetChangedMessage, error) {
	var msg DatasetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

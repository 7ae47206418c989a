package amqp

import (
	"encoding/json"
	"time"
)

// Budget record kinds carried in sync messages.
const (
	KindOperating    = "operating"
	KindSupplier     = "supplier"
	KindConstruction = "construction"
)

// RecordSyncMessage is a lightweight notification that a budget record
// changed. It carries only the kind and ID; the worker fetches the full
// record from the database.
type RecordSyncMessage struct {
	Kind      string    `json:"kind"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordSyncMessage(kind string, id int64) *RecordSyncMessage {
	return &RecordSyncMessage{
		Kind:      kind,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

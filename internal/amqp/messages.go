package amqp

import (
	"encoding/json"
	"time"
)

// JournalSyncMessage asks the worker to mirror one journal entry. The worker
// loads the entry itself; the message only carries its id.
type JournalSyncMessage struct {
	ID        int64     `json:"id"`
	Op        string    `json:"op,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewJournalSyncMessage(id int64, op string) *JournalSyncMessage {
	return &JournalSyncMessage{
		ID:        id,
		Op:        op,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *JournalSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// JournalSyncMessageFromJSON decodes a message body.
func JournalSyncMessageFromJSON(data []byte) (*JournalSyncMessage, error) {
	var msg JournalSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

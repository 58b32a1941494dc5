package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message kinds.
const (
	KindPeriod   = "period"
	KindAccounts = "accounts"
)

// SyncMessage asks the worker to mirror one container to the spreadsheet.
// It carries no rows; the worker reads the current content from the database
// and skips messages older than the stored version.
type SyncMessage struct {
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Version   int64     `json:"version"`
	UploadID  string    `json:"upload_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncMessage(kind, name string, version int64, uploadID string) *SyncMessage {
	return &SyncMessage{
		Kind:      kind,
		Name:      name,
		Version:   version,
		UploadID:  uploadID,
		Timestamp: time.Now(),
	}
}

func (m *SyncMessage) Validate() error {
	if m.Kind != KindPeriod && m.Kind != KindAccounts {
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
	if m.Name == "" {
		return fmt.Errorf("message without container name")
	}
	return nil
}

func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// SyncRequestedMessage nudges the worker to drain the sync queue early. It only
// identifies the changed entity; the worker reads the row from the database.
type SyncRequestedMessage struct {
	UserID    string    `json:"user_id"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSyncRequestedMessage creates a message stamped with the current time.
func NewSyncRequestedMessage(userID, entity, entityID string) *SyncRequestedMessage {
	return &SyncRequestedMessage{
		UserID:    userID,
		Entity:    entity,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SyncRequestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestedMessageFromJSON decodes a message, rejecting ones without an entity.
func SyncRequestedMessageFromJSON(data []byte) (*SyncRequestedMessage, error) {
	var msg SyncRequestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Entity == "" || msg.EntityID == "" {
		return nil, errors.New("sync message missing entity")
	}
	return &msg, nil
}

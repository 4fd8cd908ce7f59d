package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"fintrack/internal/core"
)

// InstanceCreatedMessage announces a newly materialized instance. It carries
// identifiers only; consumers load the instance itself from storage.
type InstanceCreatedMessage struct {
	InstanceID     string    `json:"instanceId"`
	TemplateID     string    `json:"templateId"`
	UserID         string    `json:"userId"`
	Kind           string    `json:"kind"`
	OccurrenceDate string    `json:"occurrenceDate"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewInstanceCreatedMessage(inst core.Instance) *InstanceCreatedMessage {
	return &InstanceCreatedMessage{
		InstanceID:     inst.ID,
		TemplateID:     inst.TemplateID,
		UserID:         inst.UserID,
		Kind:           string(inst.Kind),
		OccurrenceDate: inst.OccurrenceDate.String(),
		Timestamp:      time.Now().UTC(),
	}
}

func (m *InstanceCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InstanceCreatedMessageFromJSON decodes a message and rejects ones without
// an instance id.
func InstanceCreatedMessageFromJSON(data []byte) (*InstanceCreatedMessage, error) {
	var msg InstanceCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.InstanceID == "" {
		return nil, errors.New("instance created message without instance id")
	}
	return &msg, nil
}

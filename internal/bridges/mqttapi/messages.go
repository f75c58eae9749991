package mqttapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-scheduler/internal/command"
)

// CommandMessage is received on graylogic/scheduler/command/{device_id}.
// The device ID comes from the topic. A non-empty ScheduleTime defers the
// command; otherwise it runs immediately.
type CommandMessage struct {
	// ID correlates the result. Generated when absent.
	ID string `json:"id,omitempty"`

	Action string `json:"action"`

	// Value accepts a JSON string or number, e.g. "25" or 25.
	Value json.RawMessage `json:"value,omitempty"`

	// ScheduleTime is a naive local ISO-8601 time, e.g. "2026-06-01T07:30".
	ScheduleTime string `json:"schedule_time,omitempty"`
}

// ValueString normalises Value with command.DecodeValue.
func (m CommandMessage) ValueString() (*string, error) {
	return command.DecodeValue(m.Value)
}

// Result status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error codes carried in ResultMessage.Code.
const (
	CodeInvalidPayload    = "INVALID_PAYLOAD"
	CodeDeviceNotFound    = "DEVICE_NOT_FOUND"
	CodeUnknownAction     = "UNKNOWN_ACTION"
	CodeUnsupportedAction = "UNSUPPORTED_ACTION"
	CodeInvalidValue      = "INVALID_VALUE"
	CodeRejectedPastDue   = "REJECTED_PAST_DUE"
	CodeInvalidDueTime    = "INVALID_DUE_TIME"
	CodePersistence       = "PERSISTENCE_ERROR"
)

// ResultMessage is published on graylogic/scheduler/result/{device_id}.
type ResultMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`

	// ScheduleID is set when the command was deferred.
	ScheduleID int64 `json:"schedule_id,omitempty"`

	// DeviceState is set when an immediate command succeeded.
	DeviceState *StateMessage `json:"device_state,omitempty"`
}

// StateMessage is published retained on graylogic/scheduler/device/{device_id}/state.
type StateMessage struct {
	DeviceID    string    `json:"device_id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Temperature *int      `json:"temperature,omitempty"`
	Source      string    `json:"source,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func parseCommand(payload []byte) (CommandMessage, error) {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return CommandMessage{}, fmt.Errorf("parsing command: %w", err)
	}
	if strings.TrimSpace(msg.Action) == "" {
		return CommandMessage{}, errors.New("parsing command: action is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return msg, nil
}

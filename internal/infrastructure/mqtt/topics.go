package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every scheduler topic.
const TopicPrefix = "graylogic/scheduler"

// Topics builds scheduler topic names.
//
//	graylogic/scheduler/command/{device_id}       inbound commands
//	graylogic/scheduler/result/{device_id}        command results
//	graylogic/scheduler/device/{device_id}/state  retained device state
//	graylogic/scheduler/event/{name}              schedule events
//	graylogic/scheduler/status                    retained online/offline
type Topics struct{}

// Command returns the inbound command topic for a device.
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// AllCommands matches every device's command topic.
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// Result returns the topic command results for a device are published to.
func (Topics) Result(deviceID string) string {
	return fmt.Sprintf("%s/result/%s", TopicPrefix, deviceID)
}

// DeviceState returns the retained state topic for a device.
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, deviceID)
}

// Event returns the topic for a schedule event, e.g. "executed".
func (Topics) Event(name string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, name)
}

// Status returns the retained scheduler status topic.
func (Topics) Status() string {
	return TopicPrefix + "/status"
}

// ParseCommandTopic extracts the device ID from a command topic.
func ParseCommandTopic(topic string) (deviceID string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefix+"/command/")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

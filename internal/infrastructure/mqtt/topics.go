package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes. Bridges own graylogic/state and graylogic/command;
// this service owns graylogic/core/lightingsm.
const (
	TopicPrefix       = "graylogic"
	TopicPrefixCore   = "graylogic/core"
	TopicPrefixSystem = "graylogic/system"

	// StatusDomain is the pseudo-domain used for controller status entities,
	// e.g. "lightingsm.hallway".
	StatusDomain = "lightingsm"
)

// Topics provides builders for Gray Logic MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.EntityState("light", "hallway")
//	// Returns: "graylogic/state/light/hallway"
type Topics struct{}

// EntityState returns the topic a bridge publishes an entity's state on.
func (Topics) EntityState(domain, object string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, domain, object)
}

// EntityCommand returns the topic commands for an entity are sent on.
func (Topics) EntityCommand(domain, object string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, domain, object)
}

// ControllerStatus returns the retained status topic of a lighting controller.
//
// Example: graylogic/core/lightingsm/hallway/status
func (Topics) ControllerStatus(name string) string {
	return fmt.Sprintf("%s/%s/%s/status", TopicPrefixCore, StatusDomain, name)
}

// CoreEvent returns the topic for a named event.
//
// Example: graylogic/core/event/lightingsm-reset
func (Topics) CoreEvent(event string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, event)
}

// SystemStatus returns the topic for this service's online/offline status.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/motion/status"
}

// AllEntityStates matches every entity state topic.
func (Topics) AllEntityStates() string {
	return TopicPrefix + "/state/+/+"
}

// AllCoreEvents matches every event topic.
func (Topics) AllCoreEvents() string {
	return TopicPrefixCore + "/event/+"
}

// SplitEntityID splits "light.hallway" into ("light", "hallway").
// It reports false when either part is empty or the separator is missing.
func SplitEntityID(entityID string) (domain, object string, ok bool) {
	domain, object, ok = strings.Cut(entityID, ".")
	if !ok || domain == "" || object == "" {
		return "", "", false
	}
	return domain, object, true
}

// EntityStateTopic returns the state topic for a "domain.object" entity ID.
func EntityStateTopic(entityID string) (string, error) {
	domain, object, ok := SplitEntityID(entityID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntityID, entityID)
	}
	return Topics{}.EntityState(domain, object), nil
}

// EntityCommandTopic returns the command topic for a "domain.object" entity ID.
func EntityCommandTopic(entityID string) (string, error) {
	domain, object, ok := SplitEntityID(entityID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntityID, entityID)
	}
	return Topics{}.EntityCommand(domain, object), nil
}

// EntityIDFromStateTopic reverses EntityState.
func EntityIDFromStateTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "state" {
		return "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", false
	}
	return parts[2] + "." + parts[3], true
}

// EventFromTopic returns the event name of a CoreEvent topic.
func EventFromTopic(topic string) (string, bool) {
	prefix := TopicPrefixCore + "/event/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	event := strings.TrimPrefix(topic, prefix)
	if event == "" || strings.Contains(event, "/") {
		return "", false
	}
	return event, true
}

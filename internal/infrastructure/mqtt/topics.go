package mqtt

import "strings"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "scenerotator"

// Topics builds topic names under a common prefix.
//
//	topics := mqtt.NewTopics("studio")
//	topics.Event("scene.switched") // "studio/event/scene.switched"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix. Surrounding slashes are trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic prefix.
func (t Topics) Prefix() string { return t.prefix }

// Presence is the retained online/offline topic, also used for the LWT.
func (t Topics) Presence() string { return t.prefix + "/presence" }

// Status is the retained scheduler status topic.
func (t Topics) Status() string { return t.prefix + "/status" }

// Event returns the topic for an event channel.
func (t Topics) Event(channel string) string { return t.prefix + "/event/" + channel }

// Command returns the topic for a named command.
func (t Topics) Command(name string) string { return t.prefix + "/command/" + name }

// AllCommands is the wildcard subscription for every command.
func (t Topics) AllCommands() string { return t.prefix + "/command/+" }

// CommandName extracts the command name from a command topic.
// It returns "" for topics outside {prefix}/command/.
func (t Topics) CommandName(topic string) string {
	name, ok := strings.CutPrefix(topic, t.prefix+"/command/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return ""
	}
	return name
}

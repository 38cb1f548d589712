package abyss

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to
// enable multiple abyss instances to safely coexist on a single Redis server.
//
// Key pattern: abyss:{instance_name}:{entity}
// Channel pattern: abyss:{instance_name}:{event_type}_events

// StoreEventsChannel returns the Pub/Sub channel name for store mutation events.
// Pattern: abyss:{instance_name}:store_events
func StoreEventsChannel(instanceName string) string {
	return fmt.Sprintf("abyss:%s:store_events", instanceName)
}

// NoticeEventsChannel returns the Pub/Sub channel name for notice events.
// Notices are rendered texts broadcast to all viewers or sent to one viewer.
// Pattern: abyss:{instance_name}:notice_events
func NoticeEventsChannel(instanceName string) string {
	return fmt.Sprintf("abyss:%s:notice_events", instanceName)
}

// FrameEventsChannel returns the Pub/Sub channel name for rendered frame events.
// The broker publishes one event per re-rendered viewer frame.
// Pattern: abyss:{instance_name}:frame_events
func FrameEventsChannel(instanceName string) string {
	return fmt.Sprintf("abyss:%s:frame_events", instanceName)
}

// ViewerCommandsChannel returns the Pub/Sub channel name for viewer commands.
// External command surfaces publish open/close/click/deposit requests here.
// Pattern: abyss:{instance_name}:viewer_commands
func ViewerCommandsChannel(instanceName string) string {
	return fmt.Sprintf("abyss:%s:viewer_commands", instanceName)
}

// WindowStateKey returns the Redis key for the access window state hash.
// The daemon keeps this hash current so external surfaces can gate commands
// without a direct connection to the broker process.
// Pattern: abyss:{instance_name}:window
func WindowStateKey(instanceName string) string {
	return fmt.Sprintf("abyss:%s:window", instanceName)
}

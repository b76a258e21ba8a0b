// Package hooks implements the hook-based action guard: the definition
// store, the dispatcher, and the script execution protocol.
package hooks

import (
	"encoding/json"
	"errors"
	"fmt"
)

// LifecycleEvent identifies when a hook may fire. The set is defined by
// the host, not by users.
type LifecycleEvent string

// All lifecycle events.
const (
	EventUserPromptSubmit  LifecycleEvent = "user_prompt_submit"
	EventPreToolUse        LifecycleEvent = "pre_tool_use"
	EventPostToolUse       LifecycleEvent = "post_tool_use"
	EventAssistantResponse LifecycleEvent = "assistant_response"
	EventSessionStart      LifecycleEvent = "session_start"
	EventSessionEnd        LifecycleEvent = "session_end"
	EventContextWarning    LifecycleEvent = "context_warning"
	EventCompactionTrigger LifecycleEvent = "compaction_trigger"
	EventError             LifecycleEvent = "error"
)

// ErrUnknownEvent is returned when an event name is not a defined
// lifecycle event.
var ErrUnknownEvent = errors.New("unknown lifecycle event")

// EventInfo describes a lifecycle event for the management surface.
type EventInfo struct {
	Event       LifecycleEvent
	Description string
}

// Events returns all lifecycle events in their defined order.
func Events() []EventInfo {
	return []EventInfo{
		{EventUserPromptSubmit, "Runs when the user submits a prompt, before the agent processes it"},
		{EventPreToolUse, "Runs before a tool or command executes; may block it"},
		{EventPostToolUse, "Runs after a tool or command completes"},
		{EventAssistantResponse, "Runs when the assistant produces a response"},
		{EventSessionStart, "Runs when a session starts"},
		{EventSessionEnd, "Runs when a session ends"},
		{EventContextWarning, "Runs when context usage crosses a warning threshold"},
		{EventCompactionTrigger, "Runs when context compaction is about to trigger"},
		{EventError, "Runs when the agent hits an error"},
	}
}

// ParseEvent validates an event name.
func ParseEvent(name string) (LifecycleEvent, error) {
	for _, info := range Events() {
		if string(info.Event) == name {
			return info.Event, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

// SampleData returns representative event data for testing a hook
// outside normal dispatch.
func SampleData(event LifecycleEvent) json.RawMessage {
	switch event {
	case EventPreToolUse:
		return json.RawMessage(`{"tool":"Edit","input":{"file_path":"/example/file.ts","old_string":"const foo = 1","new_string":"const foo = 2"}}`)
	case EventPostToolUse:
		return json.RawMessage(`{"tool":"Edit","result":"File edited successfully"}`)
	case EventUserPromptSubmit:
		return json.RawMessage(`{"prompt":"Please help me fix this bug"}`)
	case EventAssistantResponse:
		return json.RawMessage(`{"message":"I'll help you fix that bug","tool_uses":[]}`)
	case EventContextWarning:
		return json.RawMessage(`{"usage_percentage":75,"tokens_used":75000,"tokens_max":100000}`)
	case EventCompactionTrigger:
		return json.RawMessage(`{"usage_percentage":96,"action_type":"AutoTrigger"}`)
	default:
		return json.RawMessage(fmt.Sprintf(`{"event":%q}`, event))
	}
}

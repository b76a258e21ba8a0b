package hooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ToolKind tags the tool a pending action belongs to.
type ToolKind string

// Known tool kinds.
const (
	ToolBash         ToolKind = "Bash"
	ToolWrite        ToolKind = "Write"
	ToolEdit         ToolKind = "Edit"
	ToolMultiEdit    ToolKind = "MultiEdit"
	ToolNotebookEdit ToolKind = "NotebookEdit"
	ToolRead         ToolKind = "Read"
)

// ErrUnknownTool is returned when a payload names a tool kind outside
// the closed set. Unknown kinds are rejected at the dispatch boundary
// rather than silently ignored.
var ErrUnknownTool = errors.New("unknown tool kind")

// knownTools is the closed set of tool kinds the guard understands.
var knownTools = map[ToolKind]bool{
	ToolBash:         true,
	ToolWrite:        true,
	ToolEdit:         true,
	ToolMultiEdit:    true,
	ToolNotebookEdit: true,
	ToolRead:         true,
}

// ToolInvocationPayload describes the pending action passed to hooks.
// It is constructed fresh per event by the caller and read-only to
// hooks.
type ToolInvocationPayload struct {
	Tool  ToolKind        `json:"tool"`
	Input json.RawMessage `json:"input"`

	parsed map[string]any
}

// BashInput is the input record for command execution.
type BashInput struct {
	Command string `json:"command"`
}

// FileInput is the input record for file operations.
type FileInput struct {
	FilePath string `json:"file_path"`
}

// NewBashPayload builds a payload for a pending shell command.
func NewBashPayload(commandLine string) *ToolInvocationPayload {
	return mustPayload(ToolBash, BashInput{Command: commandLine})
}

// NewFilePayload builds a payload for a pending file operation.
func NewFilePayload(tool ToolKind, filePath string) *ToolInvocationPayload {
	return mustPayload(tool, FileInput{FilePath: filePath})
}

func mustPayload(tool ToolKind, input any) *ToolInvocationPayload {
	raw, err := json.Marshal(input)
	if err != nil {
		panic(fmt.Sprintf("tool input for %s is not marshalable: %v", tool, err))
	}
	p := &ToolInvocationPayload{Tool: tool, Input: raw}
	_ = json.Unmarshal(raw, &p.parsed)
	return p
}

// ParsePayload decodes and validates a payload from JSON.
func ParsePayload(data []byte) (*ToolInvocationPayload, error) {
	var payload ToolInvocationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	if len(payload.Input) > 0 {
		if err := json.Unmarshal(payload.Input, &payload.parsed); err != nil {
			return nil, fmt.Errorf("failed to parse tool input: %w", err)
		}
	}
	return &payload, nil
}

// Validate checks that the payload names a known tool kind.
func (p *ToolInvocationPayload) Validate() error {
	if p.Tool == "" {
		return fmt.Errorf("%w: empty tool name", ErrUnknownTool)
	}
	if !knownTools[p.Tool] {
		return fmt.Errorf("%w: %q", ErrUnknownTool, p.Tool)
	}
	return nil
}

// GetStringArg retrieves a string field from the tool input.
// Returns the value and true if found, empty string and false if not.
func (p *ToolInvocationPayload) GetStringArg(name string) (string, bool) {
	if p.parsed == nil {
		return "", false
	}
	value, ok := p.parsed[name]
	if !ok {
		return "", false
	}
	strValue, ok := value.(string)
	if !ok {
		return "", false
	}
	return strValue, true
}

// Command returns the shell command for Bash payloads.
func (p *ToolInvocationPayload) Command() (string, bool) {
	if p.Tool != ToolBash {
		return "", false
	}
	return p.GetStringArg("command")
}

// FilePath returns the target path for file-operation payloads.
func (p *ToolInvocationPayload) FilePath() (string, bool) {
	switch p.Tool {
	case ToolWrite, ToolEdit, ToolMultiEdit, ToolRead:
		return p.GetStringArg("file_path")
	case ToolNotebookEdit:
		return p.GetStringArg("notebook_path")
	default:
		return "", false
	}
}

// Envelope is the JSON document written to a hook script's stdin.
type Envelope struct {
	Event     LifecycleEvent  `json:"event"`
	Timestamp int64           `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// NewToolEnvelope wraps a tool payload for the wire.
func NewToolEnvelope(event LifecycleEvent, sessionID string, payload *ToolInvocationPayload) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return &Envelope{
		Event:     event,
		Timestamp: time.Now().Unix(),
		SessionID: sessionID,
		Data:      data,
	}, nil
}

// NewEventEnvelope wraps event-specific data (usage percentages and the
// like) for non-tool events.
func NewEventEnvelope(event LifecycleEvent, sessionID string, data json.RawMessage) *Envelope {
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	return &Envelope{
		Event:     event,
		Timestamp: time.Now().Unix(),
		SessionID: sessionID,
		Data:      data,
	}
}

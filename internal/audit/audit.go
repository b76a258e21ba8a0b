// Package audit records hook dispatch decisions as JSON lines.
//
// The audit log lets operators distinguish "blocked by policy" from
// "blocked because a hook broke" after the fact. Entries are appended to
// a rotating file; writes are best-effort and never affect the decision
// being recorded.
package audit

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/yurucode/hookguard/internal/logger"
)

// Version of the audit entry format.
const Version = 1

// TimestampFormat is the format used for audit log timestamps.
const TimestampFormat = "2006-01-02T15:04:05.0Z07:00"

// Entry is a single audit record for one dispatch decision.
type Entry struct {
	Version          int    `json:"version"`
	Timestamp        string `json:"timestamp"`
	SessionID        string `json:"session_id,omitempty"`
	Event            string `json:"event"`
	Tool             string `json:"tool,omitempty"`
	HookID           string `json:"hook_id,omitempty"`
	Action           string `json:"action"`
	Message          string `json:"message,omitempty"`
	ExecutionFailure bool   `json:"execution_failure,omitempty"`
	DurationMs       int64  `json:"duration_ms"`
}

var (
	mu      sync.Mutex
	sink    io.WriteCloser
	enabled bool
)

// DefaultLogPath returns the default audit log path
// (~/.local/share/hookguard/audit.log).
func DefaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "hookguard", "audit.log"), nil
}

// Init initializes the audit log at path. If path is empty the default
// path is used. Pass disable=true to turn audit logging off entirely.
func Init(path string, disable bool) error {
	mu.Lock()
	defer mu.Unlock()

	if disable {
		enabled = false
		return nil
	}

	if path == "" {
		var err error
		path, err = DefaultLogPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	sink = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	enabled = true
	logger.Debug("audit logging initialized", "path", path)
	return nil
}

// InitWriter points the audit log at an arbitrary writer. Used in tests.
func InitWriter(w io.WriteCloser) {
	mu.Lock()
	defer mu.Unlock()
	sink = w
	enabled = true
}

// Close closes the audit log.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if sink != nil {
		err := sink.Close()
		sink = nil
		enabled = false
		return err
	}
	return nil
}

// Log writes an entry to the audit log. If audit logging is not
// initialized or disabled, this is a no-op.
func Log(entry Entry) error {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || sink == nil {
		return nil
	}

	entry.Version = Version
	entry.Timestamp = time.Now().UTC().Format(TimestampFormat)

	data, err := json.Marshal(entry)
	if err != nil {
		logger.Warn("failed to marshal audit entry", "error", err)
		return err
	}

	if _, err := sink.Write(append(data, '\n')); err != nil {
		logger.Warn("failed to write audit entry", "error", err)
		return err
	}

	return nil
}

// IsEnabled returns whether audit logging is enabled.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Reset resets the audit state. Used for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	if sink != nil {
		sink.Close()
	}
	sink = nil
	enabled = false
}

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DownloadRecord is one line of the download analytics log. Replays of an
// already-downloaded item are logged too, flagged with Replay.
type DownloadRecord struct {
	OrderID      string    `json:"orderId"`
	ImageID      string    `json:"imageId"`
	DownloadedAt time.Time `json:"downloadedAt"`
	Replay       bool      `json:"replay,omitempty"`
	NowUsed      bool      `json:"nowUsed,omitempty"`
}

// EventLog receives every redemption attempt for analytics.
type EventLog interface {
	Append(ctx context.Context, rec DownloadRecord) error
}

// fileEventLog appends JSON lines to a local file.
type fileEventLog struct {
	path string
	mu   sync.Mutex
}

// NewFileEventLog creates an append-only JSON lines log at path.
func NewFileEventLog(path string) EventLog {
	return &fileEventLog{path: path}
}

func (l *fileEventLog) Append(ctx context.Context, rec DownloadRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fail(OpSave, "event-log", err, "marshal download record")
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fail(OpSave, "event-log", err, "create log directory")
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fail(OpSave, "event-log", err, "open download log")
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fail(OpSave, "event-log", err, "append download record")
	}
	if err := f.Close(); err != nil {
		return fail(OpSave, "event-log", err, "close download log")
	}
	return nil
}

type nopEventLog struct{}

// NopEventLog discards every record.
func NopEventLog() EventLog {
	return nopEventLog{}
}

func (nopEventLog) Append(context.Context, DownloadRecord) error {
	return nil
}

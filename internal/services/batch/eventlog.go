package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// eventTimeLayout prefixes every event line
const eventTimeLayout = "2006-01-02 15:04:05"

// EventLog is the human-readable, append-only batch log.
// Every line is mirrored to the structured logger.
type EventLog struct {
	mu     sync.Mutex
	file   *os.File
	logger arbor.ILogger
	now    func() time.Time
}

// NewEventLog opens path for appending. An empty path logs to the structured logger only.
func NewEventLog(path string, logger arbor.ILogger) (*EventLog, error) {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	l := &EventLog{logger: logger, now: time.Now}
	if path == "" {
		return l, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	l.file = f
	return l, nil
}

// Log appends one line
func (l *EventLog) Log(msg string) {
	l.logger.Info().Msg(msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	if _, err := fmt.Fprintf(l.file, "[%s] %s\n", l.now().Format(eventTimeLayout), msg); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to write event log")
	}
}

// Logf formats and appends one line
func (l *EventLog) Logf(format string, args ...interface{}) {
	l.Log(fmt.Sprintf(format, args...))
}

// Close closes the underlying file
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

package interaction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/config"
)

// Entry is one prompt/response record. Write-only; nothing in the service
// reads the log back.
type Entry struct {
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger appends newline-delimited JSON records to a single log file. The
// mutex plus O_APPEND keeps concurrent appends from interleaving a record.
type Logger struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
	now  func() time.Time
}

// New constructs a Logger. The containing directory is created on first
// append, not here.
func New(cfg *config.Config, log zerolog.Logger) *Logger {
	return &Logger{
		path: cfg.InteractionLogPath,
		log:  log.With().Str("component", "interaction-log").Logger(),
		now:  time.Now,
	}
}

// Append writes one record. Never truncates or rotates.
func (l *Logger) Append(prompt, response string) error {
	line, err := json.Marshal(Entry{
		Prompt:    prompt,
		Response:  response,
		Timestamp: l.now(),
	})
	if err != nil {
		return fmt.Errorf("encode interaction: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open interaction log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

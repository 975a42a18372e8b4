package interaction

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"chatrelay/internal/config"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "interactions.jsonl")
	cfg := &config.Config{InteractionLogPath: path}
	return New(cfg, zerolog.Nop()), path
}

func TestAppendCreatesDirectoryAndWritesRecord(t *testing.T) {
	logger, path := newTestLogger(t)

	if err := logger.Append("hello", "world"); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry Entry
	if err := json.Unmarshal(data[:len(data)-1], &entry); err != nil {
		t.Fatalf("parse record: %v", err)
	}
	if entry.Prompt != "hello" || entry.Response != "world" {
		t.Fatalf("unexpected record %+v", entry)
	}
	if entry.Timestamp.IsZero() {
		t.Fatalf("record missing timestamp")
	}
}

func TestAppendNeverTruncates(t *testing.T) {
	logger, path := newTestLogger(t)

	for i := 0; i < 3; i++ {
		if err := logger.Append(fmt.Sprintf("p%d", i), "r"); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 records, got %d", count)
	}
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	logger, path := newTestLogger(t)

	const workers = 20
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := logger.Append(fmt.Sprintf("worker-%d-%d", w, i), "response"); err != nil {
					t.Errorf("append: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line %d does not parse: %v", count+1, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan log: %v", err)
	}
	if count != workers*perWorker {
		t.Fatalf("expected %d records, got %d", workers*perWorker, count)
	}
}

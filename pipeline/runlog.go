package pipeline

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// RunLog is the append-only textual record of stage outcomes, one timestamped
// line per event. It is a diagnosis sink, not a structured API.
type RunLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenRunLog opens (or creates) the log file for appending.
func OpenRunLog(path string) (*RunLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	return &RunLog{file: f}, nil
}

// Printf appends a timestamped line and echoes it to the process log.
func (rl *RunLog) Printf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[pipeline] %s", msg)

	if rl == nil || rl.file == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	fmt.Fprintf(rl.file, "[%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), msg)
}

// Close flushes and closes the underlying file.
func (rl *RunLog) Close() error {
	if rl == nil || rl.file == nil {
		return nil
	}
	return rl.file.Close()
}

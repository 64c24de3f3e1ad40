// Package audit provides the build journal: structured events for box
// builds, stored as JSON Lines (JSONL) files, one per target box.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// EventType classifies a build event.
type EventType string

const (
	EventStart   EventType = "start"
	EventSuccess EventType = "success"
	EventFailure EventType = "failure"
)

// Event represents a single journal entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Box       string    `json:"box"`
	Base      string    `json:"base,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	Details   string    `json:"details,omitempty"`
}

const journalSuffix = ".events.jsonl"

// Logger writes and reads build events.
// Events are stored in {stateDir}/builds/{box}.events.jsonl.
type Logger struct {
	stateDir string
}

// NewLogger creates a new audit logger rooted at stateDir.
func NewLogger(stateDir string) *Logger {
	return &Logger{stateDir: stateDir}
}

func (l *Logger) dir() string {
	return filepath.Join(l.stateDir, "builds")
}

// eventPath returns the journal path for a box. Names such as
// "hashicorp/bionic64" are escaped into a single file name.
func (l *Logger) eventPath(box string) string {
	return filepath.Join(l.dir(), url.PathEscape(box)+journalSuffix)
}

// Log appends an event to the box's journal.
func (l *Logger) Log(event Event) error {
	if event.Box == "" {
		return fmt.Errorf("audit event without box name")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	path := l.eventPath(event.Box)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogEvent is a convenience method that creates and logs an event.
func (l *Logger) LogEvent(eventType EventType, box, details string) error {
	return l.Log(Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Box:       box,
		Details:   details,
	})
}

// Events reads all events for a box in chronological order.
func (l *Logger) Events(box string) ([]Event, error) {
	path := l.eventPath(box)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading audit log: %w", err)
	}

	return events, nil
}

// Boxes lists the boxes that have a journal, sorted by name.
func (l *Logger) Boxes() ([]string, error) {
	entries, err := os.ReadDir(l.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var boxes []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), journalSuffix)
		if !ok || e.IsDir() {
			continue
		}
		if box, err := url.PathUnescape(name); err == nil {
			boxes = append(boxes, box)
		}
	}
	sort.Strings(boxes)
	return boxes, nil
}

// Remove deletes the journal for a box.
func (l *Logger) Remove(box string) error {
	path := l.eventPath(box)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Entry is one structured log line.
type Entry struct {
	Time      time.Time
	Level     string
	Component string
	Message   string
	Error     string
	// Fields holds the remaining keys rendered as text, sorted by key in Keys.
	Fields map[string]string
	Keys   []string
	Raw    string
}

// Parse decodes a zerolog JSON line. Lines that are not JSON objects are
// kept verbatim as the message.
func Parse(line string) Entry {
	entry := Entry{Raw: line}
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		entry.Message = trimmed
		return entry
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		entry.Message = trimmed
		return entry
	}
	for key, value := range raw {
		text := render(value)
		switch key {
		case "time":
			if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
				entry.Time = ts
			}
		case "level":
			entry.Level = strings.ToLower(text)
		case "message":
			entry.Message = text
		case "component":
			entry.Component = text
		case "error":
			entry.Error = text
		default:
			if entry.Fields == nil {
				entry.Fields = make(map[string]string)
			}
			entry.Fields[key] = text
			entry.Keys = append(entry.Keys, key)
		}
	}
	sort.Strings(entry.Keys)
	return entry
}

func render(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "null"
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(encoded)
	}
}

// Tail reads and parses the last maxLines of path, skipping blank lines.
func Tail(path string, maxLines int) ([]Entry, error) {
	lines, err := Read(path, maxLines)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, Parse(line))
	}
	return entries, nil
}

// LevelTag is the three letter level used in the activity view.
func (e Entry) LevelTag() string {
	switch e.Level {
	case "trace":
		return "TRC"
	case "debug":
		return "DBG"
	case "info":
		return "INF"
	case "warn":
		return "WRN"
	case "error":
		return "ERR"
	case "fatal":
		return "FTL"
	case "panic":
		return "PNC"
	}
	return "---"
}

// String renders the entry as a single plain line.
func (e Entry) String() string {
	if e.Level == "" && e.Time.IsZero() {
		return e.Message
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("15:04:05"))
		b.WriteByte(' ')
	}
	b.WriteString(e.LevelTag())
	if e.Component != "" {
		b.WriteString(" [" + e.Component + "]")
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)
	for _, key := range e.Keys {
		b.WriteString(" " + key + "=" + e.Fields[key])
	}
	if e.Error != "" {
		b.WriteString(" error=" + e.Error)
	}
	return b.String()
}

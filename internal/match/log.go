package match

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeLog serializes entries into the newline-delimited JSON log format the
// backend stores. The result always ends with a newline when non-empty.
func EncodeLog(entries []LogEntry) (string, error) {
	var b strings.Builder
	for i, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return "", fmt.Errorf("encode log entry %d: %w", i, err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// DecodeLog parses newline-delimited JSON log content. Blank lines are skipped.
func DecodeLog(content string) ([]LogEntry, error) {
	var entries []LogEntry
	for n, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("parse log line %d: %w", n+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// FileSink archives every valid record as a JSON file, regardless of
// relevance. It backs offline inspection and replay.
type FileSink struct {
	dir   string
	clock rfp.Clock
}

// NewFileSink creates the archive directory if needed.
func NewFileSink(dir string, clock rfp.Clock) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("record directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create record directory: %w", err)
	}
	return &FileSink{dir: dir, clock: clock}, nil
}

type archivedRecord struct {
	rfp.NormalizedRecord
	SavedAt string `json:"_saved_at"`
}

// SaveRecord writes the record as pretty-printed JSON named by record id and
// returns the file path.
func (s *FileSink) SaveRecord(_ context.Context, record rfp.NormalizedRecord) (string, error) {
	if record.ID == "" {
		return "", fmt.Errorf("record id is required")
	}
	name := unsafeFilenameChars.ReplaceAllString(record.ID, "_") + ".json"
	path := filepath.Join(s.dir, name)

	data, err := json.MarshalIndent(archivedRecord{
		NormalizedRecord: record,
		SavedAt:          s.clock.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write record file: %w", err)
	}
	return path, nil
}

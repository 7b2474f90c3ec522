package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// maxRecordSize caps a single results-log line during the resume scan.
const maxRecordSize = 16 * 1024 * 1024

// ScanCompleted reads an existing results log and collects the ids of items
// already recorded, so a resumed run never re-submits them. A missing file
// yields an empty set. Malformed or partially written lines, such as the
// tail left by a crash mid-write, are skipped silently.
func ScanCompleted(path string, logger *slog.Logger) (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ids, nil
		}
		return nil, fmt.Errorf("failed to open results log: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Warn("Failed to close results log", "error", err)
		}
	}()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record struct {
			Item struct {
				ID *int64 `json:"id"`
			} `json:"item"`
		}
		if err := json.Unmarshal(line, &record); err != nil {
			logger.Debug("Skipping malformed results line", "line", lineNo, "error", err)
			continue
		}
		if record.Item.ID == nil {
			logger.Debug("Skipping results line without item id", "line", lineNo)
			continue
		}
		ids[*record.Item.ID] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		// A truncated or oversized trailing record is not an error; the ids
		// from every well-formed line before it still count.
		logger.Debug("Stopped scanning results log early", "line", lineNo, "error", err)
	}

	return ids, nil
}

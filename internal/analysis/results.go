package analysis

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"biaseval/internal/dataset"
	"biaseval/pkg/models"
)

// Largest accepted log record. Matches the limit the resume scanner uses.
const maxRecordSize = 16 * 1024 * 1024

// rawResult mirrors models.Result but defers parameter decoding until the
// item's dataset is known.
type rawResult struct {
	Item struct {
		Dataset       string          `json:"dataset"`
		Category      string          `json:"category"`
		ID            int64           `json:"id"`
		Parameters    json.RawMessage `json:"parameters"`
		Answers       []string        `json:"answers"`
		CorrectAnswer int             `json:"correct_answer"`
	} `json:"item"`
	Prompt []models.Message `json:"prompt_turns"`
	Reply  models.Reply     `json:"reply"`
}

func decodeParameters(datasetName string, raw json.RawMessage) (any, error) {
	switch datasetName {
	case dataset.NameBBQ:
		var params dataset.BBQParameters
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, err
		}
		return params, nil
	case dataset.NameLaw:
		var params dataset.LawParameters
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, err
		}
		return params, nil
	case dataset.NameWinogender:
		var params dataset.WinogenderParameters
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, err
		}
		return params, nil
	}
	return nil, fmt.Errorf("unknown dataset %q", datasetName)
}

// ReadResults loads every decodable record from a result log. Records that
// fail to decode are skipped with a debug log, mirroring how the resume
// scanner treats damaged lines; analysis works with whatever survived.
func ReadResults(path string, logger *slog.Logger) ([]models.Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result log: %w", err)
	}
	defer file.Close()

	var results []models.Result
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxRecordSize)
	line := 0
	for scanner.Scan() {
		line++
		var raw rawResult
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			logger.Debug("Skipping undecodable result record",
				"path", path, "line", line, "error", err)
			continue
		}
		params, err := decodeParameters(raw.Item.Dataset, raw.Item.Parameters)
		if err != nil {
			logger.Debug("Skipping result with undecodable parameters",
				"path", path, "line", line, "error", err)
			continue
		}
		results = append(results, models.Result{
			Item: models.Item{
				Dataset:       raw.Item.Dataset,
				Category:      raw.Item.Category,
				ID:            raw.Item.ID,
				Parameters:    params,
				Answers:       raw.Item.Answers,
				CorrectAnswer: raw.Item.CorrectAnswer,
			},
			Prompt: raw.Prompt,
			Reply:  raw.Reply,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result log: %w", err)
	}
	return results, nil
}

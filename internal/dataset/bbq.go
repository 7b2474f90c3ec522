package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"biaseval/pkg/models"
)

// BBQPolarity is the stereotype polarity of a BBQ question
type BBQPolarity string

const (
	BBQPolarityPositive BBQPolarity = "pos"
	BBQPolarityNegative BBQPolarity = "neg"
)

func (p BBQPolarity) MarshalJSON() ([]byte, error) {
	switch p {
	case BBQPolarityPositive, BBQPolarityNegative:
		return []byte(`"` + string(p) + `"`), nil
	}
	return nil, fmt.Errorf("BBQ polarity %q is not serializable", string(p))
}

// BBQContextCondition says how much disambiguating detail the context gives
type BBQContextCondition string

const (
	BBQContextAmbiguous    BBQContextCondition = "ambig"
	BBQContextDisambiguous BBQContextCondition = "disambig"
)

func (c BBQContextCondition) MarshalJSON() ([]byte, error) {
	switch c {
	case BBQContextAmbiguous, BBQContextDisambiguous:
		return []byte(`"` + string(c) + `"`), nil
	}
	return nil, fmt.Errorf("BBQ context condition %q is not serializable", string(c))
}

// BBQParameters are the per-item parameters carried through to the results
// log for a BBQ question. BiasTargetIndex is populated from the dataset
// metadata when available; the bias report needs it, the evaluation does not.
type BBQParameters struct {
	Context          string              `json:"context"`
	Question         string              `json:"question"`
	ContextCondition BBQContextCondition `json:"context_condition"`
	Polarity         BBQPolarity         `json:"polarity"`
	BiasTargetIndex  *int                `json:"bias_target_index,omitempty"`
}

// BBQLoader streams the Bias Benchmark for QA dataset, stored as one JSONL
// file per category.
type BBQLoader struct {
	paths   []string
	targets map[string]int
}

// NewBBQLoader creates a loader over the given JSONL files
func NewBBQLoader(paths ...string) *BBQLoader {
	return &BBQLoader{paths: paths}
}

// LoadBiasTargets reads the BBQ additional-metadata CSV and records the
// bias target answer index for each (category, example id) pair.
func (l *BBQLoader) LoadBiasTargets(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open BBQ metadata: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read BBQ metadata header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, required := range []string{"category", "example_id", "target_loc"} {
		if _, ok := columns[required]; !ok {
			return fmt.Errorf("BBQ metadata is missing column %q", required)
		}
	}

	l.targets = make(map[string]int)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read BBQ metadata row: %w", err)
		}
		target := row[columns["target_loc"]]
		if target == "" {
			continue
		}
		loc, err := strconv.Atoi(target)
		if err != nil {
			continue
		}
		key := bbqTargetKey(row[columns["category"]], row[columns["example_id"]])
		l.targets[key] = loc
	}
	return nil
}

func bbqTargetKey(category, exampleID string) string {
	return category + "/" + exampleID
}

type bbqEntry struct {
	ExampleID        int64  `json:"example_id"`
	Category         string `json:"category"`
	Context          string `json:"context"`
	Question         string `json:"question"`
	ContextCondition string `json:"context_condition"`
	QuestionPolarity string `json:"question_polarity"`
	Ans0             string `json:"ans0"`
	Ans1             string `json:"ans1"`
	Ans2             string `json:"ans2"`
	Label            int    `json:"label"`
}

func (l *BBQLoader) Each(fn func(models.Item) error) error {
	for _, path := range l.paths {
		if err := l.eachInFile(path, fn); err != nil {
			return err
		}
	}
	return nil
}

func (l *BBQLoader) eachInFile(path string, fn func(models.Item) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open BBQ dataset: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry bbqEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("malformed BBQ entry at %s:%d: %w", path, lineNo, err)
		}
		item, err := l.entryToItem(entry)
		if err != nil {
			return fmt.Errorf("invalid BBQ entry at %s:%d: %w", path, lineNo, err)
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read BBQ dataset %s: %w", path, err)
	}
	return nil
}

func (l *BBQLoader) entryToItem(entry bbqEntry) (models.Item, error) {
	polarity := BBQPolarity(entry.QuestionPolarity)
	switch polarity {
	case BBQPolarityPositive, BBQPolarityNegative:
	default:
		return models.Item{}, fmt.Errorf("unknown question polarity %q", entry.QuestionPolarity)
	}
	condition := BBQContextCondition(entry.ContextCondition)
	switch condition {
	case BBQContextAmbiguous, BBQContextDisambiguous:
	default:
		return models.Item{}, fmt.Errorf("unknown context condition %q", entry.ContextCondition)
	}

	params := BBQParameters{
		Context:          entry.Context,
		Question:         entry.Question,
		ContextCondition: condition,
		Polarity:         polarity,
	}
	if l.targets != nil {
		key := bbqTargetKey(entry.Category, strconv.FormatInt(entry.ExampleID, 10))
		if loc, ok := l.targets[key]; ok {
			params.BiasTargetIndex = &loc
		}
	}

	return models.Item{
		Dataset:       NameBBQ,
		Category:      strings.ToLower(entry.Category),
		ID:            entry.ExampleID,
		Parameters:    params,
		Answers:       []string{entry.Ans0, entry.Ans1, entry.Ans2},
		CorrectAnswer: entry.Label,
	}, nil
}

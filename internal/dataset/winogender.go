package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"biaseval/pkg/models"
)

// Pronouns by gender and grammatical case, in the answer order used for
// every Winogender item: neutral first, then female, then male.
var winogenderPronouns = map[string]map[string]string{
	"neutral": {"nominative": "they", "accusative": "them", "possessive": "their"},
	"female":  {"nominative": "she", "accusative": "her", "possessive": "her"},
	"male":    {"nominative": "he", "accusative": "him", "possessive": "his"},
}

var winogenderGenders = []string{"neutral", "female", "male"}

// WinogenderParameters are the per-item parameters for a Winogender
// sentence. The sentence is stored split around the pronoun so prompts can
// present it as a fill-in-the-blank. ProportionFemale comes from the Bureau
// of Labor Statistics data and is nil when that file was not loaded.
type WinogenderParameters struct {
	Occupation          string   `json:"occupation"`
	ProportionFemale    *float64 `json:"proportion_female"`
	SentencePrePronoun  string   `json:"sentence_prepronoun"`
	SentencePostPronoun string   `json:"sentence_postpronoun"`
}

// WinogenderLoader streams the Winogender Schemas sentences TSV. Only
// sentences whose pronoun refers to the person with the known occupation,
// with a specific (non-"someone") participant and the neutral pronoun
// variant, become items; the other rows are duplicates for our purposes.
// Call LoadOccupationStats first to populate the occupation proportions.
type WinogenderLoader struct {
	path        string
	proportions map[string]float64
}

// NewWinogenderLoader creates a loader over the sentences TSV
func NewWinogenderLoader(path string) *WinogenderLoader {
	return &WinogenderLoader{path: path}
}

// Example sentid: technician.customer.1.neutral.txt
var sentidRegex = regexp.MustCompile(`^(\w+)\.(\w+)\.([01])\.(\w+)\.txt$`)

// LoadOccupationStats reads the BLS occupation statistics TSV
// (occupation, bergsma_pct_female, bls_pct_female, bls_year) and records
// the proportion of each occupation's members that are female.
func (l *WinogenderLoader) LoadOccupationStats(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open occupation stats: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = '\t'
	l.proportions = make(map[string]float64)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read occupation stats row: %w", err)
		}
		if len(row) < 3 {
			continue
		}
		pct, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			// Header row or malformed percentage.
			continue
		}
		l.proportions[row[0]] = pct / 100.0
	}
}

func (l *WinogenderLoader) Each(fn func(models.Item) error) error {
	file, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("failed to open winogender dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1

	var nextID int64
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read winogender dataset row: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		item, ok := l.rowToItem(row[0], row[1], nextID)
		if !ok {
			continue
		}
		if err := fn(item); err != nil {
			return err
		}
		nextID++
	}
}

func (l *WinogenderLoader) rowToItem(sentid, sentence string, id int64) (models.Item, bool) {
	parsed := sentidRegex.FindStringSubmatch(sentid)
	if parsed == nil {
		return models.Item{}, false
	}
	occupation, participant, referent, gender := parsed[1], parsed[2], parsed[3], parsed[4]
	if participant == "someone" || referent == "1" || gender != "neutral" {
		return models.Item{}, false
	}

	grammaticalCase, pre, post, ok := splitAroundPronoun(sentence)
	if !ok {
		return models.Item{}, false
	}

	params := WinogenderParameters{
		Occupation:          occupation,
		SentencePrePronoun:  pre,
		SentencePostPronoun: post,
	}
	if proportion, known := l.proportions[occupation]; known {
		params.ProportionFemale = &proportion
	}

	answers := make([]string, len(winogenderGenders))
	for i, g := range winogenderGenders {
		answers[i] = winogenderPronouns[g][grammaticalCase]
	}

	return models.Item{
		Dataset:    NameWinogender,
		Category:   "",
		ID:         id,
		Parameters: params,
		Answers:    answers,
		// The neutral pronoun is always the expected answer.
		CorrectAnswer: 0,
	}, true
}

var neutralPronounRegexes = map[string]*regexp.Regexp{
	"nominative": regexp.MustCompile(`\bthey\b`),
	"accusative": regexp.MustCompile(`\bthem\b`),
	"possessive": regexp.MustCompile(`\btheir\b`),
}

var pronounCases = []string{"nominative", "accusative", "possessive"}

func splitAroundPronoun(sentence string) (grammaticalCase, pre, post string, ok bool) {
	for _, c := range pronounCases {
		if loc := neutralPronounRegexes[c].FindStringIndex(sentence); loc != nil {
			return c, strings.TrimSpace(sentence[:loc[0]]), strings.TrimSpace(sentence[loc[1]:]), true
		}
	}
	return "", "", "", false
}

package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"biaseval/pkg/models"
)

// LawParameters are the admission factors for one law school applicant.
// Field names match the CSV columns.
type LawParameters struct {
	Race        string  `json:"race"`
	Sex         string  `json:"sex"`
	LSAT        float64 `json:"LSAT"`
	UGPA        float64 `json:"UGPA"`
	RegionFirst string  `json:"region_first"`
	ZFYA        float64 `json:"ZFYA"`
	SanderIndex float64 `json:"sander_index"`
	FirstPF     float64 `json:"first_pf"`
}

// LawLoader streams the law school admissions dataset, a CSV with a leading
// id column. Overrides replace parameter fields on every item, which lets a
// run evaluate the same applicants under a counterfactual race. IDOffset
// shifts item ids so two passes over the file stay disjoint.
type LawLoader struct {
	path      string
	Overrides map[string]string
	IDOffset  int64
}

// NewLawLoader creates a loader over the given CSV file
func NewLawLoader(path string) *LawLoader {
	return &LawLoader{path: path}
}

var lawColumns = []string{
	"id", "race", "sex", "LSAT", "UGPA", "region_first", "ZFYA", "sander_index", "first_pf",
}

func (l *LawLoader) Each(fn func(models.Item) error) error {
	file, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("failed to open law dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rowNo := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read law dataset row: %w", err)
		}
		rowNo++
		if rowNo == 1 && row[0] == "" {
			// Header row: the id column is unlabeled.
			continue
		}
		if len(row) != len(lawColumns) {
			return fmt.Errorf("law dataset row %d has %d columns, want %d", rowNo, len(row), len(lawColumns))
		}
		item, err := l.rowToItem(row)
		if err != nil {
			return fmt.Errorf("invalid law dataset row %d: %w", rowNo, err)
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}

func (l *LawLoader) rowToItem(row []string) (models.Item, error) {
	fields := make(map[string]string, len(lawColumns))
	for i, name := range lawColumns {
		fields[name] = row[i]
	}
	for name, value := range l.Overrides {
		fields[name] = value
	}

	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return models.Item{}, fmt.Errorf("bad id %q: %w", fields["id"], err)
	}

	params := LawParameters{
		Race:        fields["race"],
		Sex:         fields["sex"],
		RegionFirst: fields["region_first"],
	}
	for _, numeric := range []struct {
		name string
		dst  *float64
	}{
		{"LSAT", &params.LSAT},
		{"UGPA", &params.UGPA},
		{"ZFYA", &params.ZFYA},
		{"sander_index", &params.SanderIndex},
		{"first_pf", &params.FirstPF},
	} {
		value, err := strconv.ParseFloat(fields[numeric.name], 64)
		if err != nil {
			return models.Item{}, fmt.Errorf("bad %s %q: %w", numeric.name, fields[numeric.name], err)
		}
		*numeric.dst = value
	}

	return models.Item{
		Dataset:       NameLaw,
		Category:      "",
		ID:            id + l.IDOffset,
		Parameters:    params,
		Answers:       []string{"no", "yes"},
		CorrectAnswer: int(params.FirstPF),
	}, nil
}

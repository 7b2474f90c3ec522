// Package dataset loads bias benchmark datasets as streams of evaluation
// items. Each loader reads lazily from disk; items carry dataset-specific
// parameters alongside the candidate answers and the correct answer index.
package dataset

import "biaseval/pkg/models"

// Dataset names as they appear in items and results logs.
const (
	NameBBQ        = "bbq"
	NameLaw        = "law"
	NameWinogender = "winogender"
)

// Names lists the supported datasets
func Names() []string {
	return []string{NameBBQ, NameLaw, NameWinogender}
}

// Source yields items one at a time in a stable order. Each stops early and
// returns the first error fn returns.
type Source interface {
	Each(fn func(models.Item) error) error
}

// Multi chains several sources into one stream
type Multi []Source

func (m Multi) Each(fn func(models.Item) error) error {
	for _, src := range m {
		if err := src.Each(fn); err != nil {
			return err
		}
	}
	return nil
}

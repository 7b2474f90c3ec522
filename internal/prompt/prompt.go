// Package prompt renders evaluation items into ordered chat turns. The
// prompt texts are the ones from Ganguli et al., "The Capacity for Moral
// Self-Correction in Large Language Models" (https://arxiv.org/abs/2302.07459),
// which embed the Human:/Assistant: markers verbatim inside the turn content.
package prompt

import (
	"fmt"

	"biaseval/internal/dataset"
	"biaseval/pkg/models"
)

// Style selects the prompt format for a run
type Style string

const (
	// StyleQuestion is the plain question format.
	StyleQuestion Style = "question"
	// StyleInstruction adds debiasing instructions before the postamble.
	StyleInstruction Style = "instruction"
	// StyleChainOfThought elicits reasoning instead of a direct answer.
	StyleChainOfThought Style = "cot"
)

// Styles lists the supported prompt styles
func Styles() []Style {
	return []Style{StyleQuestion, StyleInstruction, StyleChainOfThought}
}

// Renderer turns an item into its prompt turns. A renderer is resolved once
// per run, for one dataset and one style; it is not re-dispatched per item.
type Renderer interface {
	Render(item models.Item) ([]models.Message, error)
}

// ForDataset returns the renderer for a dataset and style. Unknown
// combinations are configuration errors surfaced before the pipeline starts.
func ForDataset(datasetName string, style Style) (Renderer, error) {
	var t texts
	switch datasetName {
	case dataset.NameBBQ:
		t = bbqTexts
	case dataset.NameLaw:
		t = lawTexts
	case dataset.NameWinogender:
		t = winogenderTexts
	default:
		return nil, fmt.Errorf("no prompts defined for dataset %q", datasetName)
	}
	switch style {
	case StyleQuestion, StyleInstruction, StyleChainOfThought:
	default:
		return nil, fmt.Errorf("unknown prompt style %q", style)
	}
	return &renderer{style: style, texts: t}, nil
}

// texts holds one dataset's prompt building blocks. Preamble and postamble
// are functions because some datasets interpolate item parameters.
type texts struct {
	preamble           func(models.Item) (string, error)
	debiasInstructions string
	chainOfThought     string
	postamble          func(models.Item) (string, error)
}

func staticText(s string) func(models.Item) (string, error) {
	return func(models.Item) (string, error) { return s, nil }
}

type renderer struct {
	style Style
	texts texts
}

func (r *renderer) Render(item models.Item) ([]models.Message, error) {
	pre, err := r.texts.preamble(item)
	if err != nil {
		return nil, err
	}
	turns := []models.Message{{Role: models.RoleUser, Content: pre}}

	switch r.style {
	case StyleQuestion:
		post, err := r.texts.postamble(item)
		if err != nil {
			return nil, err
		}
		turns = append(turns, models.Message{Role: models.RoleUser, Content: post})
	case StyleInstruction:
		post, err := r.texts.postamble(item)
		if err != nil {
			return nil, err
		}
		turns = append(turns,
			models.Message{Role: models.RoleUser, Content: r.texts.debiasInstructions},
			models.Message{Role: models.RoleUser, Content: post})
	case StyleChainOfThought:
		turns = append(turns, models.Message{Role: models.RoleAssistant, Content: r.texts.chainOfThought})
	}
	return turns, nil
}

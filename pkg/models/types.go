package models

import (
	"fmt"
	"time"
)

// Role identifies the speaker of a prompt turn. Only the three chat roles
// are valid; serializing anything else is a programming error.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MarshalJSON enforces the closed set of roles. An unknown role fails the
// marshal, which the persister treats as fatal.
func (r Role) MarshalJSON() ([]byte, error) {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return []byte(`"` + string(r) + `"`), nil
	}
	return nil, fmt.Errorf("role %q is not serializable", string(r))
}

// Message is a single role-tagged prompt turn
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Item is one unit of evaluation work drawn from a benchmark dataset.
// Items are created by a dataset loader and never mutated afterwards.
// IDs are unique within a single run of one dataset.
type Item struct {
	Dataset       string   `json:"dataset"`
	Category      string   `json:"category"`
	ID            int64    `json:"id"`
	Parameters    any      `json:"parameters"`
	Answers       []string `json:"answers"`
	CorrectAnswer int      `json:"correct_answer"`
}

// RequestParameters are the submission parameters shared by every request
// in a run.
type RequestParameters struct {
	Model           string
	MaxTokens       int
	Temperature     float64
	Timeout         time.Duration
	CompletionCount int
}

// Request pairs an item with its rendered prompt, awaiting submission.
// On a retryable failure the same request is requeued unchanged; only the
// transient retry counter advances.
type Request struct {
	Parameters RequestParameters
	Messages   []Message
	Item       Item

	// TransientRetries counts requeues caused by transient server faults.
	// Rate-limit requeues are not counted.
	TransientRetries int
}

// Completion is a single choice from the chat completions endpoint
type Completion struct {
	Message      Message `json:"message"`
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason"`
}

// Reply is the parsed response envelope for one submitted request
type Reply struct {
	ID      string       `json:"id"`
	Object  string       `json:"object,omitempty"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []Completion `json:"choices"`
}

// Result combines an item, the prompt it was submitted with, and the reply.
// One result serializes to one line of the output log, so every line is
// interpretable without replaying the run.
type Result struct {
	Item   Item      `json:"item"`
	Prompt []Message `json:"prompt_turns"`
	Reply  Reply     `json:"reply"`
}

// RunStats tracks counters for a single pipeline run
type RunStats struct {
	RunID            string        `json:"run_id"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	TotalDuration    time.Duration `json:"total_duration"`
	Skipped          int64         `json:"skipped"`
	Enqueued         int64         `json:"enqueued"`
	Persisted        int64         `json:"persisted"`
	RateLimitRetries int64         `json:"rate_limit_retries"`
	TransientRetries int64         `json:"transient_retries"`
}

package api

import "biaseval/pkg/models"

// chatCompletionRequest is the OpenAI-compatible chat completion request body
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	N           int           `json:"n,omitempty"`
}

// wireMessage is a prompt turn as the endpoint expects it
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the OpenAI-compatible chat completion response body
type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
}

// wireChoice is a single completion choice
type wireChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// errorResponse is the error envelope some providers return
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func toWireMessages(messages []models.Message) []wireMessage {
	wire := make([]wireMessage, len(messages))
	for i, msg := range messages {
		wire[i] = wireMessage{Role: string(msg.Role), Content: msg.Content}
	}
	return wire
}

func toReply(resp chatCompletionResponse) *models.Reply {
	reply := &models.Reply{
		ID:      resp.ID,
		Object:  resp.Object,
		Created: resp.Created,
		Model:   resp.Model,
		Choices: make([]models.Completion, len(resp.Choices)),
	}
	for i, choice := range resp.Choices {
		reply.Choices[i] = models.Completion{
			Message: models.Message{
				Role:    models.Role(choice.Message.Role),
				Content: choice.Message.Content,
			},
			Index:        choice.Index,
			FinishReason: choice.FinishReason,
		}
	}
	return reply
}

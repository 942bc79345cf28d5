// Package qa answers recruiter questions over retrieved CV context via a
// tool-calling model completion.
package qa

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dossier-ai/dossier/internal/notes"
	"github.com/dossier-ai/dossier/internal/openai"
)

// Answer is the structured reply to one question.
type Answer struct {
	Text      string   `json:"answer"`
	FollowUps []string `json:"followupQuestions"`
}

// ChatCompleter is the chat completion capability the extractor consumes.
type ChatCompleter interface {
	Chat(ctx context.Context, model string, messages []openai.Message, tools []openai.Tool) (openai.Message, error)
}

// Extractor asks a model to answer a question given notes and retrieved text.
type Extractor struct {
	client ChatCompleter
	model  string
}

// NewExtractor creates an Extractor using the given completion client and model.
func NewExtractor(client ChatCompleter, model string) *Extractor {
	return &Extractor{client: client, model: model}
}

// Answer invokes the model with the questionAnswer tool and parses the reply.
// When the model returns several tool calls, the first is authoritative; the
// rest are ignored. A response without tool calls fails with
// openai.ErrNoStructuredOutput.
func (e *Extractor) Answer(ctx context.Context, question, retrievedText string, nts []notes.Note) (Answer, error) {
	messages := []openai.Message{
		{Role: "system", Content: buildSystemPrompt(nts, retrievedText)},
		{Role: "user", Content: "Question: " + question},
	}

	resp, err := e.client.Chat(ctx, e.model, messages, []openai.Tool{answerTool()})
	if err != nil {
		return Answer{}, fmt.Errorf("answer extraction: %w", err)
	}

	if len(resp.ToolCalls) == 0 {
		return Answer{}, fmt.Errorf("answer extraction: %w", openai.ErrNoStructuredOutput)
	}

	var ans Answer
	if err := json.Unmarshal([]byte(resp.ToolCalls[0].Function.Arguments), &ans); err != nil {
		return Answer{}, fmt.Errorf("answer extraction: decoding tool arguments: %w", err)
	}
	return ans, nil
}

// answerTool declares the questionAnswer structured-output schema.
func answerTool() openai.Tool {
	return openai.NewTool("questionAnswer", "The answer to the question", &openai.Schema{
		Type: "object",
		Properties: map[string]*openai.Schema{
			"answer": {
				Type:        "string",
				Description: "The answer to the question",
			},
			"followupQuestions": {
				Type:        "array",
				Description: "Follow up questions to the answer",
				Items:       &openai.Schema{Type: "string"},
			},
		},
		Required: []string{"answer", "followupQuestions"},
	})
}

// Package notes turns raw document text into structured note records via a
// tool-calling model completion.
package notes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dossier-ai/dossier/internal/openai"
)

// maxInputChars caps how much document text is sent to the model. Longer
// documents are truncated; coverage loss is accepted as a cost control.
const maxInputChars = 2048

// Note is one atomic fact extracted from a document.
type Note struct {
	Text        string `json:"note"`
	PageNumbers []int  `json:"pageNumbers,omitempty"`
}

// ChatCompleter is the chat completion capability the extractor consumes.
type ChatCompleter interface {
	Chat(ctx context.Context, model string, messages []openai.Message, tools []openai.Tool) (openai.Message, error)
}

// Extractor asks a model to take structured notes on document text.
type Extractor struct {
	client ChatCompleter
	model  string
}

// NewExtractor creates an Extractor using the given completion client and model.
func NewExtractor(client ChatCompleter, model string) *Extractor {
	return &Extractor{client: client, model: model}
}

// toolCallArgs mirrors the formatNotes tool arguments.
type toolCallArgs struct {
	Notes []Note `json:"notes"`
}

// Extract truncates documentText to the input cap, invokes the model with
// the formatNotes tool, and parses every tool call into notes, preserving
// invocation order. A response without tool calls fails with
// openai.ErrNoStructuredOutput.
func (e *Extractor) Extract(ctx context.Context, documentText string) ([]Note, error) {
	if len(documentText) > maxInputChars {
		documentText = documentText[:maxInputChars]
	}

	messages := []openai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: "Paper: " + documentText},
	}

	resp, err := e.client.Chat(ctx, e.model, messages, []openai.Tool{noteTool()})
	if err != nil {
		return nil, fmt.Errorf("note extraction: %w", err)
	}

	if len(resp.ToolCalls) == 0 {
		return nil, fmt.Errorf("note extraction: %w", openai.ErrNoStructuredOutput)
	}

	var all []Note
	for _, call := range resp.ToolCalls {
		var args toolCallArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("note extraction: decoding tool arguments: %w", err)
		}
		all = append(all, args.Notes...)
	}
	return all, nil
}

// noteTool declares the formatNotes structured-output schema.
func noteTool() openai.Tool {
	return openai.NewTool("formatNotes", "Formats the notes response", &openai.Schema{
		Type: "object",
		Properties: map[string]*openai.Schema{
			"notes": {
				Type: "array",
				Items: &openai.Schema{
					Type: "object",
					Properties: map[string]*openai.Schema{
						"note": {
							Type:        "string",
							Description: "The note content",
						},
						"pageNumbers": {
							Type:        "array",
							Description: "Source page numbers for the note",
							Items:       &openai.Schema{Type: "integer"},
						},
					},
					Required: []string{"note"},
				},
			},
		},
		Required: []string{"notes"},
	})
}

// Package openai is a minimal client for an OpenAI-compatible chat and
// embeddings API. Only the surface the pipeline needs is implemented:
// tool-calling chat completions and fixed-dimension embeddings.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrModelUnavailable indicates the completion endpoint could not be reached
// or returned a non-success status.
var ErrModelUnavailable = errors.New("model unavailable")

// ErrEmbeddingUnavailable indicates the embeddings endpoint returned no vector.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// ErrNoStructuredOutput indicates the model response contained no tool call
// even though one was required. Callers should not blindly retry: the same
// input is likely to fail again without prompt changes.
var ErrNoStructuredOutput = errors.New("no structured output in model response")

// Message is a chat message in the OpenAI API format.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Schema is a JSON schema node used to declare tool parameters.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Tool declares a function the model may invoke.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes a tool's name and parameter schema.
type Function struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters"`
}

// ToolCall is one structured invocation in a model response.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the invoked function name and its JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewTool builds a function tool from a name, description and parameter schema.
func NewTool(name, description string, params *Schema) Tool {
	return Tool{
		Type: "function",
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

// Client communicates with an OpenAI-compatible API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

const defaultTimeout = 60 * time.Second

// New creates a Client for the given base URL (e.g. https://api.openai.com)
// and API key. Every request carries a bounded timeout.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// chatRequest is the JSON body for POST /v1/chat/completions.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Tools       []Tool    `json:"tools,omitempty"`
	ToolChoice  string    `json:"tool_choice,omitempty"`
}

// chatResponse is the JSON returned by POST /v1/chat/completions.
type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Chat sends messages to the given model with the supplied tools and returns
// the assistant message, including any tool calls. An empty tool-call list is
// not an error here; extractor layers decide whether structured output was
// required.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, tools []Tool) (Message, error) {
	cr := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0,
		Tools:       tools,
	}
	if len(tools) > 0 {
		cr.ToolChoice = "auto"
	}

	body, err := json.Marshal(cr)
	if err != nil {
		return Message{}, err
	}

	var result chatResponse
	if err := c.post(ctx, "/v1/chat/completions", body, &result); err != nil {
		return Message{}, err
	}

	if len(result.Choices) == 0 {
		return Message{}, fmt.Errorf("%w: response contained no choices", ErrModelUnavailable)
	}
	return result.Choices[0].Message, nil
}

// embedRequest is the JSON body for POST /v1/embeddings.
type embedRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// embedResponse is the JSON returned by POST /v1/embeddings.
type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text using the given model and
// dimension count. A response without a vector fails with ErrEmbeddingUnavailable.
func (c *Client) Embed(ctx context.Context, model, text string, dimensions int) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: model, Input: text, Dimensions: dimensions})
	if err != nil {
		return nil, err
	}

	var result embedResponse
	if err := c.post(ctx, "/v1/embeddings", body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding in response", ErrEmbeddingUnavailable)
	}
	return result.Data[0].Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Surface a short diagnostic without echoing the full provider payload.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: %s returned status %d: %s", ErrModelUnavailable, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

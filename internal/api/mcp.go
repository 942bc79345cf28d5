package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Pipeline Pipeline
	Reader   Reader
}

// NewMCPServer creates an MCP server exposing the ingest and answer flows
// as tools, plus read-only resources over the stored corpus.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"dossier",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("dossier — ingest candidate CVs and answer recruiter questions grounded in their content."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ingest_document",
			mcp.WithDescription("Download a PDF CV from a URL, extract structured notes and embeddings, and store it in the knowledge base."),
			mcp.WithString("source_url", mcp.Description("HTTP(S) URL of the PDF document"), mcp.Required()),
		),
		mcpIngestDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_document",
			mcp.WithDescription("Ask a question about the ingested candidate documents and get an answer grounded in their content."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAskDocument(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"dossier://notes",
			"Extracted Notes",
			mcp.WithResourceDescription("All extracted notes, grouped per document"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceNotes(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"dossier://chats",
			"Chat History",
			mcp.WithResourceDescription("Stored question/answer turns"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceChats(deps),
	)

	return s
}

func mcpIngestDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sourceURL, err := req.RequireString("source_url")
		if err != nil {
			return mcpError("source_url is required"), nil
		}

		doc, err := deps.Pipeline.Ingest(ctx, sourceURL)
		if err != nil {
			return mcpError(fmt.Sprintf("ingest failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Ingested document %s (%q, %d notes)", doc.ID, doc.Title, len(doc.Notes))), nil
	}
}

func mcpAskDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		ans, err := deps.Pipeline.Ask(ctx, question)
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{
			"answer":              ans.Text,
			"follow_up_questions": ans.FollowUps,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpResourceNotes(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		grouped, err := deps.Reader.AllNotes()
		if err != nil {
			return nil, fmt.Errorf("failed to load notes: %w", err)
		}

		b, err := json.Marshal(grouped)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notes: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceChats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		turns, err := deps.Reader.ListChatTurns()
		if err != nil {
			return nil, fmt.Errorf("failed to load chats: %w", err)
		}

		type turnSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Question  string `json:"question"`
			Answer    string `json:"answer"`
		}

		summaries := make([]turnSummary, len(turns))
		for i, t := range turns {
			summaries[i] = turnSummary{
				ID:        t.ID,
				CreatedAt: t.CreatedAt.Format(time.RFC3339),
				Question:  t.Question,
				Answer:    t.Answer,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal chats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

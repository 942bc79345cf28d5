// Package api exposes the ingest and answer flows over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dossier-ai/dossier/internal/document"
	"github.com/dossier-ai/dossier/internal/notes"
	"github.com/dossier-ai/dossier/internal/openai"
	"github.com/dossier-ai/dossier/internal/qa"
	"github.com/dossier-ai/dossier/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Pipeline is the orchestrator surface the API layer consumes.
type Pipeline interface {
	Ingest(ctx context.Context, sourceURL string) (storage.Document, error)
	Ask(ctx context.Context, question string) (qa.Answer, error)
}

// Reader covers the store read paths used by the HTTP surface.
type Reader interface {
	ListDocuments() ([]storage.Document, error)
	GetDocument(id string) (storage.Document, error)
	AllNotes() ([][]notes.Note, error)
	ListChatTurns() ([]storage.ChatTurn, error)
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Pipeline Pipeline
	Reader   Reader
}

// NewHandler builds the HTTP router for the service.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/documents", handleIngest(deps))
	r.Get("/documents", handleListDocuments(deps))
	r.Get("/documents/{id}", handleGetDocument(deps))
	r.Get("/documents/{id}/notes", handleDocumentNotes(deps))
	r.Get("/notes", handleAllNotes(deps))
	r.Post("/chat", handleAsk(deps))
	r.Get("/chats", handleListChats(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	SourceURL string `json:"source_url"`
}

func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.SourceURL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "source_url is required")
			return
		}

		doc, err := deps.Pipeline.Ingest(r.Context(), req.SourceURL)
		if err != nil {
			writeFlowError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Reader.ListDocuments()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "store_unavailable", "failed to list documents: %v", err)
			return
		}
		if docs == nil {
			docs = []storage.Document{}
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func handleGetDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Reader.GetDocument(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "store_unavailable", "failed to get document: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func handleDocumentNotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Reader.GetDocument(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "store_unavailable", "failed to get document: %v", err)
			return
		}
		nts := doc.Notes
		if nts == nil {
			nts = []notes.Note{}
		}
		writeJSON(w, http.StatusOK, nts)
	}
}

func handleAllNotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grouped, err := deps.Reader.AllNotes()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "store_unavailable", "failed to load notes: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, grouped)
	}
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer    string   `json:"answer"`
	FollowUps []string `json:"follow_up_questions"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		ans, err := deps.Pipeline.Ask(r.Context(), req.Question)
		if err != nil {
			writeFlowError(w, err)
			return
		}
		followUps := ans.FollowUps
		if followUps == nil {
			followUps = []string{}
		}
		writeJSON(w, http.StatusOK, askResponse{Answer: ans.Text, FollowUps: followUps})
	}
}

func handleListChats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		turns, err := deps.Reader.ListChatTurns()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "store_unavailable", "failed to list chats: %v", err)
			return
		}
		if turns == nil {
			turns = []storage.ChatTurn{}
		}
		writeJSON(w, http.StatusOK, turns)
	}
}

// writeFlowError maps pipeline error kinds onto HTTP statuses. Provider
// payloads never reach the client beyond the short generic description.
func writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, document.ErrInvalidSource):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "source url must reference a pdf")
	case errors.Is(err, document.ErrFetchFailed):
		httpError(w, http.StatusBadGateway, "fetch_failed", "failed to fetch the source document")
	case errors.Is(err, document.ErrExtractFailed):
		httpError(w, http.StatusUnprocessableEntity, "extraction_failed", "failed to extract text from the document")
	case errors.Is(err, openai.ErrNoStructuredOutput):
		httpError(w, http.StatusBadGateway, "no_structured_output", "the model returned no structured output")
	case errors.Is(err, openai.ErrEmbeddingUnavailable):
		httpError(w, http.StatusBadGateway, "embedding_unavailable", "the embedding service is unavailable")
	case errors.Is(err, openai.ErrModelUnavailable):
		httpError(w, http.StatusBadGateway, "model_unavailable", "the model service is unavailable")
	default:
		httpError(w, http.StatusInternalServerError, "store_unavailable", "the request could not be completed")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

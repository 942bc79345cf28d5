package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dossier-ai/dossier/internal/document"
	"github.com/dossier-ai/dossier/internal/notes"
	"github.com/dossier-ai/dossier/internal/openai"
	"github.com/dossier-ai/dossier/internal/qa"
	"github.com/dossier-ai/dossier/internal/storage"
)

type stubPipeline struct {
	ingestDoc storage.Document
	ingestErr error
	answer    qa.Answer
	askErr    error

	lastSourceURL string
	lastQuestion  string
}

func (s *stubPipeline) Ingest(ctx context.Context, sourceURL string) (storage.Document, error) {
	s.lastSourceURL = sourceURL
	return s.ingestDoc, s.ingestErr
}

func (s *stubPipeline) Ask(ctx context.Context, question string) (qa.Answer, error) {
	s.lastQuestion = question
	return s.answer, s.askErr
}

func setupHandler(t *testing.T, p *stubPipeline) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	handler := NewHandler(Deps{
		Pipeline: p,
		Reader:   store,
	})
	return handler, store
}

func jsonReq(method, url, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	return req
}

func TestHealth(t *testing.T) {
	h, _ := setupHandler(t, &stubPipeline{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodGet, "/health", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp map[string]string
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestIngestDocument(t *testing.T) {
	p := &stubPipeline{
		ingestDoc: storage.Document{
			ID:        "doc-1",
			SourceURL: "https://example.com/cv.pdf",
			Title:     "cv",
			Content:   "content",
			Notes:     []notes.Note{{Text: "note", PageNumbers: []int{1}}},
			CreatedAt: time.Now().UTC(),
		},
	}
	h, _ := setupHandler(t, p)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodPost, "/documents", `{"source_url":"https://example.com/cv.pdf"}`))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if p.lastSourceURL != "https://example.com/cv.pdf" {
		t.Errorf("source url = %q, want %q", p.lastSourceURL, "https://example.com/cv.pdf")
	}

	var doc storage.Document
	if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.ID != "doc-1" {
		t.Errorf("ID = %q, want %q", doc.ID, "doc-1")
	}
	if len(doc.Notes) != 1 {
		t.Errorf("got %d notes, want 1", len(doc.Notes))
	}
}

func TestIngestDocument_MissingURL(t *testing.T) {
	h, _ := setupHandler(t, &stubPipeline{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodPost, "/documents", `{}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestIngestDocument_InvalidBody(t *testing.T) {
	h, _ := setupHandler(t, &stubPipeline{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodPost, "/documents", `not json`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestIngestDocument_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid source", document.ErrInvalidSource, http.StatusBadRequest},
		{"fetch failed", document.ErrFetchFailed, http.StatusBadGateway},
		{"extract failed", document.ErrExtractFailed, http.StatusUnprocessableEntity},
		{"no structured output", openai.ErrNoStructuredOutput, http.StatusBadGateway},
		{"embedding unavailable", openai.ErrEmbeddingUnavailable, http.StatusBadGateway},
		{"model unavailable", openai.ErrModelUnavailable, http.StatusBadGateway},
		{"store failure", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupHandler(t, &stubPipeline{ingestErr: tt.err})

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, jsonReq(http.MethodPost, "/documents", `{"source_url":"https://example.com/cv.pdf"}`))

			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d; body = %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestIngestDocument_ErrorBodyIsGeneric(t *testing.T) {
	wrapped := document.ErrFetchFailed
	h, _ := setupHandler(t, &stubPipeline{ingestErr: wrapped})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodPost, "/documents", `{"source_url":"https://example.com/cv.pdf"}`))

	var resp map[string]map[string]string
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["error"]["type"] != "fetch_failed" {
		t.Errorf("error type = %q, want %q", resp["error"]["type"], "fetch_failed")
	}
	if resp["error"]["message"] == "" {
		t.Error("error message is empty")
	}
}

func TestAsk(t *testing.T) {
	p := &stubPipeline{
		answer: qa.Answer{
			Text:      "The candidate has 5 years of experience.",
			FollowUps: []string{"Which companies?"},
		},
	}
	h, _ := setupHandler(t, p)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodPost, "/chat", `{"question":"How experienced is the candidate?"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if p.lastQuestion != "How experienced is the candidate?" {
		t.Errorf("question = %q", p.lastQuestion)
	}

	var resp askResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Answer != "The candidate has 5 years of experience." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.FollowUps) != 1 || resp.FollowUps[0] != "Which companies?" {
		t.Errorf("follow ups = %v", resp.FollowUps)
	}
}

func TestAsk_MissingQuestion(t *testing.T) {
	h, _ := setupHandler(t, &stubPipeline{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodPost, "/chat", `{}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAsk_EmptyFollowUps(t *testing.T) {
	h, _ := setupHandler(t, &stubPipeline{answer: qa.Answer{Text: "yes"}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodPost, "/chat", `{"question":"ok?"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()
	if !strings.Contains(body, `"follow_up_questions":[]`) {
		t.Errorf("body = %q, want empty array for follow ups", body)
	}
}

func TestListDocuments_Empty(t *testing.T) {
	h, _ := setupHandler(t, &stubPipeline{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodGet, "/documents", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := strings.TrimSpace(rr.Body.String())
	if body != "[]" {
		t.Errorf("body = %q, want %q", body, "[]")
	}
}

func TestGetDocument(t *testing.T) {
	h, store := setupHandler(t, &stubPipeline{})

	doc := storage.Document{
		ID:        "doc-get-1",
		SourceURL: "https://example.com/cv.pdf",
		Title:     "cv",
		Content:   "content",
		Notes:     []notes.Note{{Text: "note one"}},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if _, err := store.PutDocument(doc, nil); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodGet, "/documents/doc-get-1", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var got storage.Document
	json.NewDecoder(rr.Body).Decode(&got)
	if got.ID != "doc-get-1" {
		t.Errorf("ID = %q, want %q", got.ID, "doc-get-1")
	}
	if got.Title != "cv" {
		t.Errorf("Title = %q, want %q", got.Title, "cv")
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	h, _ := setupHandler(t, &stubPipeline{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodGet, "/documents/nonexistent", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestDocumentNotes(t *testing.T) {
	h, store := setupHandler(t, &stubPipeline{})

	doc := storage.Document{
		ID:      "doc-notes-1",
		Content: "content",
		Notes: []notes.Note{
			{Text: "first note", PageNumbers: []int{1}},
			{Text: "second note", PageNumbers: []int{2}},
		},
	}
	if _, err := store.PutDocument(doc, nil); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodGet, "/documents/doc-notes-1/notes", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var got []notes.Note
	json.NewDecoder(rr.Body).Decode(&got)
	if len(got) != 2 {
		t.Fatalf("got %d notes, want 2", len(got))
	}
	if got[0].Text != "first note" {
		t.Errorf("notes[0].Text = %q, want %q", got[0].Text, "first note")
	}
}

func TestListChats(t *testing.T) {
	h, store := setupHandler(t, &stubPipeline{})

	turn := storage.ChatTurn{
		Question:  "How many years?",
		Answer:    "Five.",
		FollowUps: []string{"Where?"},
	}
	if _, err := store.PutChatTurn(turn); err != nil {
		t.Fatalf("PutChatTurn: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, jsonReq(http.MethodGet, "/chats", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var turns []storage.ChatTurn
	json.NewDecoder(rr.Body).Decode(&turns)
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	if turns[0].Question != "How many years?" {
		t.Errorf("Question = %q", turns[0].Question)
	}
}

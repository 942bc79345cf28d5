package storage

import (
	"errors"
	"time"

	"github.com/dossier-ai/dossier/internal/notes"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document is one ingested PDF with its extracted content, notes and
// document-level embedding.
type Document struct {
	ID        string            `json:"id"`
	SourceURL string            `json:"source_url"`
	Title     string            `json:"title,omitempty"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"-"`
	Notes     []notes.Note      `json:"notes"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Chunk is a bounded-length slice of a document's text with its own
// embedding, used for nearest-neighbor retrieval. Page is the source
// page number.
type Chunk struct {
	ID         string
	DocumentID string
	Page       int
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// ChatTurn is one question/answer exchange. Context keeps the retrieved
// chunk text used to produce the answer, for auditability.
type ChatTurn struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	FollowUps []string  `json:"follow_up_questions"`
	Context   string    `json:"context,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

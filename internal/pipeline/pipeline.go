// Package pipeline composes fetching, extraction, chunking, note taking,
// embedding and storage into the two end-to-end flows: document ingestion
// and question answering.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dossier-ai/dossier/internal/chunk"
	"github.com/dossier-ai/dossier/internal/document"
	"github.com/dossier-ai/dossier/internal/notes"
	"github.com/dossier-ai/dossier/internal/qa"
	"github.com/dossier-ai/dossier/internal/retrieval"
	"github.com/dossier-ai/dossier/internal/storage"
)

// Fetcher downloads the bytes of a PDF source.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// PageExtractor turns PDF bytes into page-level text.
type PageExtractor func(data []byte) ([]document.Page, error)

// Embedder generates embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// NoteExtractor produces structured notes from document text.
type NoteExtractor interface {
	Extract(ctx context.Context, documentText string) ([]notes.Note, error)
}

// AnswerExtractor answers a question given retrieved text and notes.
type AnswerExtractor interface {
	Answer(ctx context.Context, question, retrievedText string, nts []notes.Note) (qa.Answer, error)
}

// Store persists documents and chat turns and reads back notes.
type Store interface {
	PutDocument(doc storage.Document, chunks []storage.Chunk) (string, error)
	AllNotes() ([][]notes.Note, error)
	PutChatTurn(turn storage.ChatTurn) (string, error)
}

// ChunkSearcher finds the stored chunks nearest to a query vector.
type ChunkSearcher interface {
	Nearest(vector []float32, k int) ([]retrieval.Chunk, error)
}

// Deps holds the injected collaborators for a Pipeline.
type Deps struct {
	Fetcher  Fetcher
	Extract  PageExtractor
	Embedder Embedder
	Notes    NoteExtractor
	Answers  AnswerExtractor
	Store    Store
	Searcher ChunkSearcher
}

// Pipeline runs the ingest and answer flows. Each invocation is a single
// sequential flow; the store is the only shared resource.
type Pipeline struct {
	deps        Deps
	maxChunkLen int
	topK        int
	logger      *slog.Logger
}

// New creates a Pipeline. maxChunkLen defaults to chunk.DefaultMaxLen and
// topK to 3 when non-positive.
func New(deps Deps, maxChunkLen, topK int) *Pipeline {
	if maxChunkLen <= 0 {
		maxChunkLen = chunk.DefaultMaxLen
	}
	if topK <= 0 {
		topK = 3
	}
	return &Pipeline{
		deps:        deps,
		maxChunkLen: maxChunkLen,
		topK:        topK,
		logger:      slog.Default(),
	}
}

// Ingest fetches a PDF from sourceURL, extracts and chunks its text, asks
// the model for notes, embeds the content and persists everything in one
// store write. The stored record, including its assigned id, is returned.
func (p *Pipeline) Ingest(ctx context.Context, sourceURL string) (storage.Document, error) {
	// Fail fast on a bad source before any network access.
	if err := document.ValidateSource(sourceURL); err != nil {
		return storage.Document{}, err
	}

	data, err := p.deps.Fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return storage.Document{}, err
	}

	pages, err := p.deps.Extract(data)
	if err != nil {
		return storage.Document{}, err
	}

	var chunks []storage.Chunk
	for _, page := range pages {
		for _, text := range chunk.Split(page.Text, p.maxChunkLen) {
			chunks = append(chunks, storage.Chunk{Page: page.Number, Text: text})
		}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	content := strings.Join(texts, "\n")

	nts, err := p.deps.Notes.Extract(ctx, content)
	if err != nil {
		return storage.Document{}, err
	}

	// The document embedding covers the untruncated content.
	embedding, err := p.deps.Embedder.Embed(ctx, content)
	if err != nil {
		return storage.Document{}, err
	}

	chunkVecs, err := p.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return storage.Document{}, err
	}
	for i := range chunks {
		chunks[i].Embedding = chunkVecs[i]
	}

	doc := storage.Document{
		SourceURL: sourceURL,
		Title:     document.Title(sourceURL),
		Content:   content,
		Embedding: embedding,
		Notes:     nts,
		CreatedAt: time.Now().UTC(),
	}

	id, err := p.deps.Store.PutDocument(doc, chunks)
	if err != nil {
		return storage.Document{}, fmt.Errorf("persisting document: %w", err)
	}
	doc.ID = id

	p.logger.Info("document ingested",
		"id", id, "pages", len(pages), "chunks", len(chunks), "notes", len(nts))
	return doc, nil
}

// Ask embeds the question, retrieves the nearest stored chunks, loads all
// notes and asks the model for a structured answer. The resulting chat turn
// is persisted before the answer is returned.
func (p *Pipeline) Ask(ctx context.Context, question string) (qa.Answer, error) {
	var queryVec []float32
	var grouped [][]notes.Note

	// Embedding the question and loading notes are independent.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := p.deps.Embedder.Embed(gCtx, question)
		if err != nil {
			return err
		}
		queryVec = vec
		return nil
	})
	g.Go(func() error {
		all, err := p.deps.Store.AllNotes()
		if err != nil {
			return fmt.Errorf("loading notes: %w", err)
		}
		grouped = all
		return nil
	})
	if err := g.Wait(); err != nil {
		return qa.Answer{}, err
	}

	chunks, err := p.deps.Searcher.Nearest(queryVec, p.topK)
	if err != nil {
		return qa.Answer{}, fmt.Errorf("searching chunks: %w", err)
	}
	contextText := retrieval.JoinText(chunks)

	var flat []notes.Note
	for _, group := range grouped {
		flat = append(flat, group...)
	}

	answer, err := p.deps.Answers.Answer(ctx, question, contextText, flat)
	if err != nil {
		return qa.Answer{}, err
	}

	turnID, err := p.deps.Store.PutChatTurn(storage.ChatTurn{
		Question:  question,
		Answer:    answer.Text,
		FollowUps: answer.FollowUps,
		Context:   contextText,
	})
	if err != nil {
		return qa.Answer{}, fmt.Errorf("persisting chat turn: %w", err)
	}

	p.logger.Info("question answered",
		"turn_id", turnID, "chunks_used", len(chunks), "follow_ups", len(answer.FollowUps))
	return answer, nil
}

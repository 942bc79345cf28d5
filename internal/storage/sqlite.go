// Package storage persists documents, retrieval chunks and chat turns in
// SQLite. Record writes are atomic: a document and its chunks go in one
// transaction, a chat turn is a single insert.
package storage

import (
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dossier-ai/dossier/internal/notes"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for documents, chunks and chats.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "dossier.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for the retrieval index.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate applies embedded SQL migration files that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// PutDocument writes a document and its retrieval chunks in one transaction
// and returns the document id. A missing id or created-at is assigned at
// write time; chunk ids and back-references are filled in the same way.
func (s *Store) PutDocument(doc Document, chunks []Chunk) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	notesJSON, err := json.Marshal(doc.Notes)
	if err != nil {
		return "", fmt.Errorf("marshalling notes: %w", err)
	}
	if doc.Notes == nil {
		notesJSON = []byte("[]")
	}
	metadataJSON := []byte("{}")
	if doc.Metadata != nil {
		if metadataJSON, err = json.Marshal(doc.Metadata); err != nil {
			return "", fmt.Errorf("marshalling metadata: %w", err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning document transaction: %w", err)
	}

	var embeddingBlob []byte
	if len(doc.Embedding) > 0 {
		embeddingBlob = EncodeVector(doc.Embedding)
	}

	if _, err := tx.Exec(`
		INSERT INTO documents (id, source_url, title, content, embedding, notes, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.SourceURL, doc.Title, doc.Content, embeddingBlob,
		string(notesJSON), string(metadataJSON), doc.CreatedAt.Format(time.RFC3339)); err != nil {
		tx.Rollback()
		return "", fmt.Errorf("inserting document: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO document_chunks (id, document_id, page, text, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return "", fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.DocumentID == "" {
			c.DocumentID = doc.ID
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = doc.CreatedAt
		}
		if _, err := stmt.Exec(c.ID, c.DocumentID, c.Page, c.Text,
			EncodeVector(c.Embedding), c.CreatedAt.Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return "", fmt.Errorf("inserting chunk for page %d: %w", c.Page, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing document: %w", err)
	}
	return doc.ID, nil
}

// GetDocument returns a single document by id.
func (s *Store) GetDocument(id string) (Document, error) {
	row := s.db.QueryRow(`
		SELECT id, source_url, title, content, embedding, notes, metadata, created_at
		FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// ListDocuments returns stored documents ordered by creation time ascending.
func (s *Store) ListDocuments() ([]Document, error) {
	rows, err := s.db.Query(`
		SELECT id, source_url, title, content, embedding, notes, metadata, created_at
		FROM documents ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// AllNotes returns the notes of every stored document, grouped per document
// in creation order. An empty store yields an empty result.
func (s *Store) AllNotes() ([][]notes.Note, error) {
	rows, err := s.db.Query(`SELECT notes FROM documents ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	grouped := [][]notes.Note{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning notes: %w", err)
		}
		var nts []notes.Note
		if err := json.Unmarshal([]byte(raw), &nts); err != nil {
			return nil, fmt.Errorf("decoding stored notes: %w", err)
		}
		grouped = append(grouped, nts)
	}
	return grouped, rows.Err()
}

// PutChatTurn writes a chat turn and returns its id. A missing id is
// assigned; the timestamp is always set to the write time.
func (s *Store) PutChatTurn(turn ChatTurn) (string, error) {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	turn.CreatedAt = time.Now().UTC()

	followUpsJSON := []byte("[]")
	if turn.FollowUps != nil {
		var err error
		if followUpsJSON, err = json.Marshal(turn.FollowUps); err != nil {
			return "", fmt.Errorf("marshalling follow-ups: %w", err)
		}
	}

	if _, err := s.db.Exec(`
		INSERT INTO chat_turns (id, question, answer, follow_ups, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.Question, turn.Answer, string(followUpsJSON),
		turn.Context, turn.CreatedAt.Format(time.RFC3339)); err != nil {
		return "", fmt.Errorf("inserting chat turn: %w", err)
	}
	return turn.ID, nil
}

// ListChatTurns returns stored chat turns ordered by creation time ascending.
func (s *Store) ListChatTurns() ([]ChatTurn, error) {
	rows, err := s.db.Query(`
		SELECT id, question, answer, follow_ups, context, created_at
		FROM chat_turns ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying chat turns: %w", err)
	}
	defer rows.Close()

	var turns []ChatTurn
	for rows.Next() {
		var t ChatTurn
		var followUps, createdAt string
		if err := rows.Scan(&t.ID, &t.Question, &t.Answer, &followUps, &t.Context, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chat turn: %w", err)
		}
		if err := json.Unmarshal([]byte(followUps), &t.FollowUps); err != nil {
			return nil, fmt.Errorf("decoding follow-ups: %w", err)
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// scanner covers *sql.Row and *sql.Rows for scanDocument.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (Document, error) {
	var doc Document
	var embedding []byte
	var notesJSON, metadataJSON, createdAt string
	if err := row.Scan(&doc.ID, &doc.SourceURL, &doc.Title, &doc.Content,
		&embedding, &notesJSON, &metadataJSON, &createdAt); err != nil {
		return Document{}, err
	}

	if len(embedding) > 0 {
		vec, err := DecodeVector(embedding)
		if err != nil {
			return Document{}, fmt.Errorf("decoding embedding for %s: %w", doc.ID, err)
		}
		doc.Embedding = vec
	}
	if err := json.Unmarshal([]byte(notesJSON), &doc.Notes); err != nil {
		return Document{}, fmt.Errorf("decoding notes for %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return Document{}, fmt.Errorf("decoding metadata for %s: %w", doc.ID, err)
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Document{}, fmt.Errorf("parsing created_at for %s: %w", doc.ID, err)
	}
	doc.CreatedAt = t
	return doc, nil
}

// EncodeVector serializes a float32 slice to little-endian bytes.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector deserializes little-endian bytes into a new float32 slice.
// Returns an error if the length is not a multiple of 4 (data corruption).
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

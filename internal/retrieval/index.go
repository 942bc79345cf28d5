package retrieval

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dossier-ai/dossier/internal/storage"
)

// Chunk is a retrieved context fragment with its similarity score.
type Chunk struct {
	ID         string
	DocumentID string
	Page       int
	Text       string
	Score      float32
	CreatedAt  time.Time
}

// Index performs brute-force cosine similarity search over stored chunk
// embeddings. Rows whose embedding dimension does not match the query are
// excluded from the candidate set rather than scored.
type Index struct {
	db *sql.DB
}

// NewIndex wraps an existing *sql.DB for chunk search. The document_chunks
// table must already exist (created via storage migrations).
func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

// idScore holds only the id and score during the scan phase. Full rows are
// fetched only for the top-K winners.
type idScore struct {
	ID    string
	Score float32
}

// Nearest returns up to k stored chunks ordered by descending cosine
// similarity to the query vector. Ties break on chunk id so results are
// deterministic.
func (ix *Index) Nearest(vector []float32, k int) ([]Chunk, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}
	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	// Phase 1: scan id + embedding only.
	rows, err := ix.db.Query(`SELECT id, embedding FROM document_chunks`)
	if err != nil {
		return nil, fmt.Errorf("querying chunk vectors: %w", err)
	}
	defer rows.Close()

	var candidates []idScore
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}

		emb, err := storage.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}
		if len(emb) != len(vector) {
			// Dimension mismatch: not comparable, leave it out.
			continue
		}
		candidates = append(candidates, idScore{ID: id, Score: cosine(vector, emb, queryNorm)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk rows: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	// Phase 2: fetch full rows for the winners.
	ids := make([]any, len(candidates))
	scores := make(map[string]float32, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
		scores[c.ID] = c.Score
	}

	query := `SELECT id, document_id, page, text, created_at
		FROM document_chunks WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	fullRows, err := ix.db.Query(query, ids...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-k chunks: %w", err)
	}
	defer fullRows.Close()

	byID := make(map[string]Chunk, len(ids))
	for fullRows.Next() {
		var c Chunk
		var createdAt string
		if err := fullRows.Scan(&c.ID, &c.DocumentID, &c.Page, &c.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", c.ID, err)
		}
		c.CreatedAt = t
		c.Score = scores[c.ID]
		byID[c.ID] = c
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating full chunks: %w", err)
	}

	// IN queries don't preserve order; rebuild from the ranked candidates.
	results := make([]Chunk, 0, len(candidates))
	for _, c := range candidates {
		if full, ok := byID[c.ID]; ok {
			results = append(results, full)
		}
	}
	return results, nil
}

// JoinText concatenates retrieved chunk texts for use as answer context.
func JoinText(chunks []Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n")
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * |b|). aNorm is precomputed.
func cosine(a, b []float32, aNorm float32) float32 {
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

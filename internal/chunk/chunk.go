// Package chunk splits extracted document text into bounded-size segments
// suitable for embedding and retrieval.
package chunk

import "strings"

// DefaultMaxLen is the chunk size used by the ingest pipeline.
const DefaultMaxLen = 200

// Split breaks text into chunks of at most maxLen characters, accumulating
// whole words greedily. Words are never split: a single word longer than
// maxLen becomes its own oversized chunk. Empty input yields nil.
//
// The space-join of the returned chunks equals the whitespace-normalized
// input, so no characters are lost.
func Split(text string, maxLen int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var sb strings.Builder
	for _, word := range words {
		if sb.Len() == 0 {
			sb.WriteString(word)
			continue
		}
		if sb.Len()+1+len(word) <= maxLen {
			sb.WriteByte(' ')
			sb.WriteString(word)
			continue
		}
		chunks = append(chunks, sb.String())
		sb.Reset()
		sb.WriteString(word)
	}
	if sb.Len() > 0 {
		chunks = append(chunks, sb.String())
	}
	return chunks
}

package retrieval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type stubEmbedClient struct {
	calls int64
	err   error
}

func (s *stubEmbedClient) Embed(ctx context.Context, model, text string, dimensions int) ([]float32, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	vec := make([]float32, dimensions)
	vec[0] = float32(len(text))
	return vec, nil
}

func TestEmbed(t *testing.T) {
	e := NewEmbedder(&stubEmbedClient{}, "text-embedding-3-large", 8)
	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 8 {
		t.Errorf("got %d dims, want 8", len(vec))
	}
}

func TestEmbedBatch(t *testing.T) {
	stub := &stubEmbedClient{}
	e := NewEmbedder(stub, "m", 4)

	texts := []string{"a", "bb", "ccc"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	// Results keep input order.
	for i, text := range texts {
		if vecs[i][0] != float32(len(text)) {
			t.Errorf("vector %d out of order: %v", i, vecs[i])
		}
	}
	if n := atomic.LoadInt64(&stub.calls); n != 3 {
		t.Errorf("client called %d times, want 3", n)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	e := NewEmbedder(&stubEmbedClient{}, "m", 4)
	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("EmbedBatch(nil) = %v, %v; want nil, nil", vecs, err)
	}
}

func TestEmbedBatch_PropagatesError(t *testing.T) {
	wantErr := errors.New("provider down")
	e := NewEmbedder(&stubEmbedClient{err: wantErr}, "m", 4)
	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

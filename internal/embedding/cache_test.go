package embedding

import (
	"context"
	"errors"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	// touching a makes b the eviction candidate
	c.Get("a")
	c.Set("c", []float32{6})
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

type countingEmbedder struct {
	calls int
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text))}, nil
}

func (e *countingEmbedder) Dimensions() int { return 1 }
func (e *countingEmbedder) Close() error    { return nil }

func TestCachedEmbedder_HitsCache(t *testing.T) {
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, 10)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := e.Embed(ctx, "same text"); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if e.Dimensions() != 1 {
		t.Errorf("Dimensions() = %d", e.Dimensions())
	}
}

func TestCachedEmbedder_DoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	e := NewCachedEmbedder(inner, 10)
	ctx := context.Background()
	e.Embed(ctx, "x")
	e.Embed(ctx, "x")
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

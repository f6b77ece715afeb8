package vector

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperjump/pageindex/internal/models"
)

func benchVector(i, dim int) []float32 {
	v := make([]float32, dim)
	v[0] = float32(i) / 1000
	v[i%dim] += 1
	return v
}

func fill(b *testing.B, s Store, n, dim int) {
	b.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if err := s.Upsert(ctx, fmt.Sprintf("%d", i), benchVector(i, dim), models.RecordMetadata{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoryStoreQuery(b *testing.B) {
	s, _ := NewMemoryStore()
	fill(b, s, 1000, 384)
	query := benchVector(7, 384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Query(ctx, query, 10)
	}
}

func BenchmarkMemoryStoreUpsert(b *testing.B) {
	s, _ := NewMemoryStore()
	ctx := context.Background()
	vec := benchVector(3, 384)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Upsert(ctx, fmt.Sprintf("%d", i%500), vec, models.RecordMetadata{})
	}
}

func BenchmarkSQLiteStoreQuery(b *testing.B) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, filepath.Join(b.TempDir(), "vectors.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	fill(b, s, 1000, 384)
	query := benchVector(7, 384)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Query(ctx, query, 10)
	}
}

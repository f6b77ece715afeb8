package search

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/pageindex/internal/config"
	"github.com/hyperjump/pageindex/internal/embedding"
	"github.com/hyperjump/pageindex/internal/indexer"
	"github.com/hyperjump/pageindex/internal/models"
	"github.com/hyperjump/pageindex/internal/storage"
	"github.com/hyperjump/pageindex/internal/vector"
)

const corpusDimensions = 256

// bagOfWordsEmbedder hashes each word into a bucket, so pages sharing words with the query
// score higher.
type bagOfWordsEmbedder struct{}

func (bagOfWordsEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, corpusDimensions)
	words := embedding.SplitWords(strings.ToLower(text))
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: empty text", models.ErrInvalidInput)
	}
	for _, w := range words {
		vec[embedding.HashString(w)%corpusDimensions]++
	}
	return vec, nil
}

func (bagOfWordsEmbedder) Dimensions() int { return corpusDimensions }
func (bagOfWordsEmbedder) Close() error    { return nil }

// corpusPage is a page with a signature phrase that a query should find it by.
type corpusPage struct {
	title   string
	phrase  string
	content string
}

var corpusPages = []corpusPage{
	{"Python Guide", "python programming language", "Python is a high-level language used for web development and data science."},
	{"Kubernetes Docs", "kubernetes container orchestration", "Kubernetes automates deployment and scaling of workloads."},
	{"Go Language", "golang goroutines channels", "Go is statically typed. Concurrency uses goroutines and channels."},
	{"PostgreSQL Manual", "postgresql relational database", "PostgreSQL supports JSON columns and full-text search."},
	{"Docker Handbook", "docker images registry", "Docker builds and ships applications as portable images."},
	{"REST API Design", "rest endpoints status codes", "REST APIs use HTTP methods and status codes."},
	{"Redis Cache", "redis memory cache", "Redis is an in-memory data store used for sessions."},
	{"Terraform", "terraform infrastructure code", "Terraform manages cloud infrastructure declaratively."},
	{"Prometheus", "prometheus monitoring metrics", "Prometheus scrapes time-series metrics."},
	{"OAuth", "oauth authorization delegation", "OAuth is a framework for delegated authorization."},
	{"Git Workflow", "git version control", "Git tracks changes to source code with branches and commits."},
	{"Kafka", "kafka event streaming", "Apache Kafka is a distributed event log with high throughput."},
	{"Nginx", "nginx reverse proxy", "Nginx serves static files and balances load."},
	{"Unit Testing", "unit testing mocks", "Unit tests isolate small pieces of code with mocks."},
	{"Vector Database", "vector similarity cosine", "Vector databases store embeddings and rank by cosine similarity."},
	{"Rate Limiting", "rate limiting throttling", "Rate limiting protects APIs from bursts."},
	{"Circuit Breaker", "circuit breaker resilience", "A circuit breaker fails fast to stop cascading failures."},
	{"Backups", "backup restore recovery", "Backups protect against data loss and enable restore."},
	{"Password Hashing", "password hashing bcrypt", "Passwords are hashed with bcrypt before storage."},
	{"Distributed Tracing", "distributed tracing spans", "Tracing follows a request across services as spans."},
}

func TestSearch_CorpusFindsSignaturePages(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	docs, err := storage.NewSQLiteStorage(filepath.Join(dir, "pages.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer docs.Close()
	for i, p := range corpusPages {
		doc := &models.Document{
			ID:        fmt.Sprintf("%d", i+1),
			Title:     p.title,
			Content:   p.content + " " + p.phrase + ".",
			ChapterID: fmt.Sprintf("ch%d", i%4),
		}
		if err := docs.CreateDocument(ctx, doc); err != nil {
			t.Fatal(err)
		}
	}

	store, err := vector.NewSQLiteStore(ctx, filepath.Join(dir, "vectors.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	emb := bagOfWordsEmbedder{}
	idx := indexer.New(docs, emb, store, &config.IndexerConfig{Workers: 4, MaxRetries: 1})
	summary, err := idx.ReindexAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded != len(corpusPages) {
		t.Fatalf("indexed %d pages, want %d", summary.Succeeded, len(corpusPages))
	}

	svc := NewService(emb, store, searchConfig())
	for i, p := range corpusPages {
		want := fmt.Sprintf("%d", i+1)
		t.Run(p.title, func(t *testing.T) {
			results, err := svc.Search(ctx, p.phrase, 3)
			if err != nil {
				t.Fatal(err)
			}
			ids := make([]string, 0, len(results))
			for _, r := range results {
				ids = append(ids, r.DocumentID)
			}
			if len(ids) == 0 || ids[0] != want {
				t.Fatalf("query %q: want %s first, got %v", p.phrase, want, ids)
			}
			if results[0].Title != p.title {
				t.Errorf("title = %q, want %q", results[0].Title, p.title)
			}
		})
	}
}

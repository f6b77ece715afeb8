package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/pageindex/internal/models"
)

func TestSQLiteStorage_CRUD(t *testing.T) {
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "db", "pages.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	doc := &models.Document{ID: "1", Title: "Welcome", Content: "Hello", ChapterID: "intro"}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetDocument(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Welcome" || got.Content != "Hello" || got.ChapterID != "intro" {
		t.Errorf("got %+v", got)
	}

	doc.Title = "Updated"
	if err := store.UpdateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetDocument(ctx, "1")
	if got.Title != "Updated" {
		t.Errorf("expected Updated, got %s", got.Title)
	}

	if err := store.DeleteDocument(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetDocument(ctx, "1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_UpdateMissing(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	err = store.UpdateDocument(context.Background(), &models.Document{ID: "404", Content: "x"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_ListDocumentsNumericOrder(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	for _, id := range []string{"10", "2", "1", "guide"} {
		if err := store.CreateDocument(ctx, &models.Document{ID: id, Content: "c" + id}); err != nil {
			t.Fatal(err)
		}
	}
	docs, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1", "2", "10", "guide"}
	if len(docs) != len(want) {
		t.Fatalf("got %d docs, want %d", len(docs), len(want))
	}
	for i, d := range docs {
		if d.ID != want[i] {
			t.Errorf("docs[%d] = %s, want %s", i, d.ID, want[i])
		}
	}
	n, err := store.CountDocuments(ctx)
	if err != nil || n != 4 {
		t.Errorf("CountDocuments = %d, %v", n, err)
	}
}

func TestSQLiteStorage_UpsertDocument(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	created, err := store.UpsertDocument(ctx, &models.Document{ID: "a", Title: "A", Content: "one"})
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	created, err = store.UpsertDocument(ctx, &models.Document{ID: "a", Title: "A2", Content: "two"})
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v", created, err)
	}
	got, _ := store.GetDocument(ctx, "a")
	if got.Content != "two" || got.Title != "A2" {
		t.Errorf("got %+v", got)
	}
	if _, err := store.UpsertDocument(ctx, &models.Document{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("empty id err = %v, want ErrInvalidInput", err)
	}
}

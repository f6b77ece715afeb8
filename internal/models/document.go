// Package models defines core data structures for pages, vector records, indexing runs, and search results.
package models

import (
	"strconv"
	"time"
)

// Document is a page owned by the primary store.
type Document struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	ChapterID string    `json:"chapter_id,omitempty" db:"chapter_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EventType is the kind of change the primary store reports for a document.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}

// DocumentEvent is a point change notification from the primary store.
type DocumentEvent struct {
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id"`
}

// CompareIDs orders document IDs: decimal integer IDs compare numerically and sort before
// all other IDs, which compare byte-wise. Returns -1, 0 or 1.
func CompareIDs(a, b string) int {
	na, aNum := parseNumericID(a)
	nb, bNum := parseNumericID(b)
	switch {
	case aNum && bNum:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		// "007" and "7" are the same number but distinct keys.
	case aNum:
		return -1
	case bNum:
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// LessID reports whether a sorts before b under CompareIDs.
func LessID(a, b string) bool {
	return CompareIDs(a, b) < 0
}

func parseNumericID(s string) (uint64, bool) {
	if s == "" || len(s) > 19 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil
}

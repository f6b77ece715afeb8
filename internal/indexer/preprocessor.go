package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/hyperjump/pageindex/internal/models"
)

// Preprocess normalizes text for indexing (trim, collapse whitespace).
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}

// DocumentText is the text embedded for doc: the normalized title and content separated
// by a blank line. Empty parts are omitted.
func DocumentText(doc *models.Document) string {
	title := Preprocess(doc.Title)
	content := Preprocess(doc.Content)
	switch {
	case title == "":
		return content
	case content == "":
		return title
	}
	return title + "\n\n" + content
}

// ContentHash returns the hex SHA-256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

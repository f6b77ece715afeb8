package embedding

import (
	"strings"
	"unicode"
)

const (
	clsToken   = 101
	sepToken   = 102
	vocabSize  = 30000
	reservedID = 1000
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer is a lowercase word-split tokenizer with hash-based token IDs.
// It does not match any real vocabulary; it keeps the ONNX path usable without one.
type SimpleTokenizer struct{}

// Tokenize produces [CLS] word... [SEP] token IDs, padded to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsToken
	attentionMask[0] = 1

	pos := 1
	for _, word := range SplitWords(strings.ToLower(text)) {
		if pos >= maxTokens-1 {
			break
		}
		// IDs below reservedID are special tokens in BERT vocabularies.
		inputIDs[pos] = int64(reservedID + HashString(word)%(vocabSize-reservedID))
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = sepToken
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords splits text on whitespace and punctuation and returns non-empty words.
func SplitWords(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'' && r != '-')
	})
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	if h < 0 {
		// -MinInt overflows back to itself
		h = 0
	}
	return h
}

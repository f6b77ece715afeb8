package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("Hello, world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths: %d %d %d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsToken {
		t.Errorf("expected CLS %d, got %d", clsToken, ids[0])
	}
	if ids[3] != sepToken {
		t.Errorf("expected SEP at 3, got %d", ids[3])
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("attention mask: %v", attn)
	}
	for _, id := range ids[1:3] {
		if id < reservedID || id >= vocabSize {
			t.Errorf("word token %d out of range", id)
		}
	}
	lower, _, _ := tok.Tokenize("hello world", 10)
	if lower[1] != ids[1] {
		t.Error("tokenization should be case-insensitive")
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	ids, attn, _ := (&SimpleTokenizer{}).Tokenize("a b c d e f g h", 4)
	if len(ids) != 4 {
		t.Fatalf("len = %d", len(ids))
	}
	if ids[3] != sepToken || attn[3] != 1 {
		t.Errorf("expected SEP in last slot: %v", ids)
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  a  b,c.  ")
	if len(words) != 3 {
		t.Errorf("expected 3 words, got %v", words)
	}
	if SplitWords("") != nil {
		t.Error("empty string should return nil")
	}
}

func TestHashString(t *testing.T) {
	h := HashString("abc")
	if h <= 0 {
		t.Error("hash should be positive")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
}

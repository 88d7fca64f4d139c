package indexer

import (
	"testing"
)

func TestChunker_Chunk(t *testing.T) {
	c := NewChunker(3, 1)
	chunks := c.Chunk("doc1", "one two three four five six seven")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantContent := []string{"one two three", "three four five", "five six seven"}
	for i, ch := range chunks {
		if ch.DocumentID != "doc1" {
			t.Errorf("chunk %d DocumentID=%s", i, ch.DocumentID)
		}
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d ChunkIndex=%d", i, ch.ChunkIndex)
		}
		if ch.ID != ChunkID("doc1", i) {
			t.Errorf("chunk %d ID=%s", i, ch.ID)
		}
		if ch.Content != wantContent[i] {
			t.Errorf("chunk %d Content=%q, want %q", i, ch.Content, wantContent[i])
		}
	}
}

func TestChunker_Deterministic(t *testing.T) {
	c := NewChunker(4, 2)
	a := c.Chunk("d", "alpha beta gamma delta epsilon zeta eta")
	b := c.Chunk("d", "alpha beta gamma delta epsilon zeta eta")
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Content != b[i].Content {
			t.Errorf("chunk %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestChunker_ChunkEmpty(t *testing.T) {
	c := NewChunker(5, 1)
	chunks := c.Chunk("d", "   \n\t  ")
	if chunks != nil {
		t.Errorf("empty text should return nil, got %v", chunks)
	}
}

func TestChunker_ShortText(t *testing.T) {
	c := NewChunker(512, 50)
	chunks := c.Chunk("d", "just a few words")
	if len(chunks) != 1 || chunks[0].ID != "d#0" {
		t.Errorf("got %+v", chunks)
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  a  b  ", "a b"},
		{"line one\n\nline two\ttab", "line one line two tab"},
		{"bell\x07char", "bellchar"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Preprocess(tt.in); got != tt.want {
			t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

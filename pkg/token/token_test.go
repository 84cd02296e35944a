package token

import (
	"net/url"
	"testing"
)

func TestMintLength(t *testing.T) {
	g := NewGenerator()
	tok, err := g.Mint()
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if len(tok) != Length {
		t.Errorf("token length = %d, want %d", len(tok), Length)
	}
}

// TestMintOpacity samples a large batch of tokens and checks the properties
// a caller may rely on: uniqueness, fixed length, URL-safe charset, and no
// fixed character at any position.
func TestMintOpacity(t *testing.T) {
	const samples = 10000

	g := NewGenerator()
	seen := make(map[string]struct{}, samples)
	positionChars := make([]map[byte]struct{}, Length)
	for i := range positionChars {
		positionChars[i] = make(map[byte]struct{})
	}

	for i := 0; i < samples; i++ {
		tok, err := g.Mint()
		if err != nil {
			t.Fatalf("Mint failed at sample %d: %v", i, err)
		}

		if len(tok) != Length {
			t.Fatalf("token %q has length %d, want %d", tok, len(tok), Length)
		}

		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token minted: %q", tok)
		}
		seen[tok] = struct{}{}

		if url.QueryEscape(tok) != tok {
			t.Fatalf("token %q requires URL encoding", tok)
		}

		for pos := 0; pos < Length; pos++ {
			c := tok[pos]
			if !isURLSafe(c) {
				t.Fatalf("token %q contains unsafe character %q at %d", tok, c, pos)
			}
			positionChars[pos][c] = struct{}{}
		}
	}

	// Every position must vary across the sample. A fixed first or last
	// character would leak structure.
	for pos, chars := range positionChars {
		if len(chars) <= 1 {
			t.Errorf("position %d shows only %d distinct characters over %d samples", pos, len(chars), samples)
		}
	}
}

func isURLSafe(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}

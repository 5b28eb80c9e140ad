package chat

import (
	"strings"

	"github.com/arcadian-ai/parley/pkg/textnorm"
)

// terminals are the characters that may end a speakable chunk.
const terminals = ".!?;\n\r"

// abbreviations whose trailing period must not split a chunk. Checked with
// an 8-character lookbehind, so entries must be at most 8 characters.
var abbreviations = []string{"Mr.", "Mrs.", "Ms.", "Dr.", "Jr."}

// lookbehind is the window scanned for an abbreviation ending at a period.
const lookbehind = 8

// Rechunker incrementally re-segments a token stream into sentence-level
// chunks paced for speech synthesis. Not safe for concurrent use; the
// stream reader owns it.
type Rechunker struct {
	buf strings.Builder
}

// Push appends one token and returns any chunks completed by it, sanitized.
// Chunks whose sanitized form is one character or shorter are dropped.
func (r *Rechunker) Push(token string) []string {
	r.buf.WriteString(token)

	var chunks []string
	for {
		text := r.buf.String()
		cut := r.boundary(text)
		if cut < 0 {
			break
		}
		chunk := text[:cut+1]
		r.buf.Reset()
		r.buf.WriteString(text[cut+1:])
		if s := textnorm.Sanitize(chunk); len(s) > 1 {
			chunks = append(chunks, s)
		}
	}
	return chunks
}

// Flush returns the final chunk from whatever remains, terminal or not.
// Called once at end of stream.
func (r *Rechunker) Flush() []string {
	rest := r.buf.String()
	r.buf.Reset()
	if s := textnorm.Sanitize(rest); len(s) > 1 {
		return []string{s}
	}
	return nil
}

// boundary returns the index of the first usable sentence terminal in text,
// or -1. A period closing a known abbreviation is not a boundary.
func (r *Rechunker) boundary(text string) int {
	for i := 0; i < len(text); i++ {
		if !strings.ContainsRune(terminals, rune(text[i])) {
			continue
		}
		if text[i] == '.' && endsInAbbreviation(text[:i+1]) {
			continue
		}
		return i
	}
	return -1
}

// endsInAbbreviation reports whether the tail of s (up to the lookbehind
// window) ends with a known abbreviation at a word boundary.
func endsInAbbreviation(s string) bool {
	window := s
	if len(window) > lookbehind {
		window = window[len(window)-lookbehind:]
	}
	for _, abbr := range abbreviations {
		if !strings.HasSuffix(window, abbr) {
			continue
		}
		// "Mr." must be its own word: start of text or preceded by a space.
		if len(s) == len(abbr) || s[len(s)-len(abbr)-1] == ' ' {
			return true
		}
	}
	return false
}

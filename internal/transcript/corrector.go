// Package transcript corrects recognition errors in ASR output against the
// configured interaction vocabulary. Speech models routinely mangle proper
// nouns and object names ("dore" for "door", "leever" for "lever"); since
// the set of actionable objects is known up front, a phonetic pass can
// repair those words before the text reaches the conversation engine.
//
// Matching combines Double Metaphone phonetic encoding with Jaro-Winkler
// string similarity: a vocabulary entry is a candidate when it shares a
// phonetic code with the input word, and the best-scoring candidate above
// the threshold wins.
package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultThreshold is the minimum Jaro-Winkler score for a phonetic
// candidate to replace the original word.
const defaultThreshold = 0.70

// Corrector rewrites vocabulary near-misses in transcripts. Read-only after
// construction, safe for concurrent use.
type Corrector struct {
	vocab     []string
	codes     []map[string]struct{}
	threshold float64
}

// Option configures a Corrector.
type Option func(*Corrector)

// WithThreshold sets the minimum similarity score. Default: 0.70.
func WithThreshold(t float64) Option {
	return func(c *Corrector) { c.threshold = t }
}

// NewCorrector builds a Corrector over the given vocabulary. An empty
// vocabulary yields a pass-through corrector.
func NewCorrector(vocab []string, opts ...Option) *Corrector {
	c := &Corrector{threshold: defaultThreshold}
	for _, o := range opts {
		o(c)
	}
	for _, v := range vocab {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		c.vocab = append(c.vocab, v)
		c.codes = append(c.codes, metaphoneCodes(strings.ToLower(v)))
	}
	return c
}

// Correct returns text with vocabulary near-misses replaced. Words already
// in the vocabulary and words with no phonetic candidate pass through
// unchanged; punctuation around a word is preserved.
func (c *Corrector) Correct(text string) string {
	if len(c.vocab) == 0 || text == "" {
		return text
	}
	fields := strings.Fields(text)
	for i, f := range fields {
		core, prefix, suffix := stripPunct(f)
		if core == "" {
			continue
		}
		if repl, ok := c.matchWord(core); ok {
			fields[i] = prefix + repl + suffix
		}
	}
	return strings.Join(fields, " ")
}

// matchWord finds the best vocabulary entry for word. Exact matches
// (case-insensitive) are left alone so correct words keep their casing.
func (c *Corrector) matchWord(word string) (string, bool) {
	lower := strings.ToLower(word)
	wordCodes := metaphoneCodes(lower)

	var (
		best      string
		bestScore float64
	)
	for i, entry := range c.vocab {
		entryLower := strings.ToLower(entry)
		if lower == entryLower {
			return "", false
		}
		if !codesOverlap(wordCodes, c.codes[i]) {
			continue
		}
		if s := matchr.JaroWinkler(lower, entryLower, false); s >= c.threshold && s > bestScore {
			best, bestScore = entry, s
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// metaphoneCodes returns the Double Metaphone code set for s, excluding
// empty codes.
func metaphoneCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, sec := matchr.DoubleMetaphone(s)
	if p != "" {
		codes[p] = struct{}{}
	}
	if sec != "" {
		codes[sec] = struct{}{}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// stripPunct splits a token into leading punctuation, the word core, and
// trailing punctuation.
func stripPunct(tok string) (core, prefix, suffix string) {
	start, end := 0, len(tok)
	for start < end && !isWordByte(tok[start]) {
		start++
	}
	for end > start && !isWordByte(tok[end-1]) {
		end--
	}
	return tok[start:end], tok[:start], tok[end:]
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}

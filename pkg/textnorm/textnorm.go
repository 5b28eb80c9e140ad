// Package textnorm provides the text sanitation and sentence-splitting rules
// shared across the pipeline. Every string that reaches speech synthesis or
// the chat transcript passes through Sanitize first so narration artifacts
// (stage directions, markup, action tags) are never spoken aloud.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	actionTagRe  = regexp.MustCompile(`\[\[action: .*?\]\]`)
	bracketRe    = regexp.MustCompile(`\[[^\]]*\]`)
	asteriskRe   = regexp.MustCompile(`\*[^*]*\*`)
	angleRe      = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Sanitize strips action-tag markup, bracketed annotations, asterisk-delimited
// stage directions, angle-bracket tags and quote characters, then collapses
// whitespace runs (including CR/LF) to a single space and trims the result.
// Removing a span must not leave a double space behind where it stood.
//
// Removal order matters: action tags are removed before plain brackets so a
// partial bracket strip cannot leave `[action: ...]]` fragments behind.
func Sanitize(s string) string {
	s = actionTagRe.ReplaceAllString(s, "")
	s = bracketRe.ReplaceAllString(s, "")
	s = asteriskRe.ReplaceAllString(s, "")
	s = angleRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, `"`, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SplitSentences splits text into sentences. A sentence ends at '.', '!' or
// '?' when the terminal character is followed by whitespace or end of input.
// Any trailing text without a terminator is returned as a final sentence.
// Empty sentences are dropped.
func SplitSentences(text string) []string {
	var (
		sentences []string
		acc       strings.Builder
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		acc.WriteByte(c)
		if c == '.' || c == '!' || c == '?' {
			if i+1 >= len(text) || isSpace(text[i+1]) {
				if s := strings.TrimSpace(acc.String()); s != "" {
					sentences = append(sentences, s)
				}
				acc.Reset()
			}
		}
	}
	if s := strings.TrimSpace(acc.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}

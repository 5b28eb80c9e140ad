package rag

import (
	"strings"

	"github.com/arcadian-ai/parley/pkg/textnorm"
)

// SentenceWindows splits text into overlapping windows of whole sentences.
// Each window holds perChunk consecutive sentences; successive windows
// advance by max(1, perChunk-overlap) sentences, so an overlap of 0 yields
// disjoint windows and overlap >= perChunk degenerates to stride 1.
//
// Fewer sentences than perChunk produce a single window with all of them.
func SentenceWindows(text string, perChunk, overlap int) []string {
	if perChunk <= 0 {
		perChunk = 1
	}
	sentences := textnorm.SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	if len(sentences) <= perChunk {
		return []string{strings.Join(sentences, " ")}
	}

	stride := perChunk - overlap
	if stride < 1 {
		stride = 1
	}
	var windows []string
	for start := 0; start < len(sentences); start += stride {
		end := start + perChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		windows = append(windows, strings.Join(sentences[start:end], " "))
		if end == len(sentences) {
			break
		}
	}
	return windows
}

// Package chunker splits document text into bounded-size, sentence-aligned segments
// suitable for independent embedding.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxSize is the default maximum chunk size in characters.
const DefaultMaxSize = 1000

// Split divides text into ordered chunks of at most maxSize characters.
//
// Split points fall after '.', '!' or '?'. Sentences are packed greedily into the
// current chunk; a sentence that alone exceeds maxSize becomes its own chunk.
// Chunks are whitespace-trimmed and empty chunks are never returned, so an empty
// or blank text yields an empty slice. A maxSize <= 0 selects DefaultMaxSize.
func Split(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/maxSize+1)
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if c := strings.TrimSpace(current.String()); c != "" {
			chunks = append(chunks, c)
		}
		current.Reset()
		currentLen = 0
	}

	for _, sentence := range sentences(text) {
		sentenceLen := utf8.RuneCountInString(sentence)

		if sentenceLen > maxSize {
			flush()
			current.WriteString(sentence)
			flush()
			continue
		}

		if currentLen+sentenceLen > maxSize {
			flush()
		}
		current.WriteString(sentence)
		currentLen += sentenceLen
	}
	flush()

	return chunks
}

// sentences splits text after each run of sentence terminators.
// Trailing text without a terminator is returned as the final sentence.
func sentences(text string) []string {
	var out []string
	start := 0
	inTerminator := false

	for i, r := range text {
		if isTerminator(r) {
			inTerminator = true
			continue
		}
		if inTerminator {
			out = append(out, text[start:i])
			start = i
			inTerminator = false
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

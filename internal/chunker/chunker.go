package chunker

import (
	"strings"
	"unicode"
)

// Chunk splits text into chunks of roughly targetWords words without ever
// breaking a sentence. Sentences are accumulated until adding the next one
// would push the running word count past targetWords; the chunk is then closed
// and the sentence starts a new one. A single sentence longer than targetWords
// becomes its own oversized chunk. The result is deterministic for a given
// input, and empty input yields no chunks.
func Chunk(text string, targetWords int) []string {
	if targetWords <= 0 {
		return nil
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	words := 0
	for _, sentence := range sentences {
		n := len(strings.Fields(sentence))
		if len(current) > 0 && words+n > targetWords {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
			words = 0
		}
		current = append(current, sentence)
		words += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// splitSentences cuts text at runs of whitespace that follow '.', '!' or '?'.
// The terminator stays attached to its sentence and the boundary whitespace is
// consumed. Trailing text without a terminator still counts as a sentence.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if b.Len() == 0 && unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
		if isTerminator(r) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			flush()
		}
	}
	flush()
	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Package chunker splits free text into retrieval-sized pieces.
package chunker

import (
	"strings"
	"unicode/utf8"
)

type Options struct {
	ChunkSize    int    // target chunk size in characters
	ChunkOverlap int    // overlap between chunks (fixed strategy only)
	Strategy     string // "fixed" or "recursive"
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Strategy:     "recursive",
	}
}

// Split breaks text into chunks of at most opts.ChunkSize runes. The
// recursive strategy prefers paragraph, then line, then sentence boundaries,
// so pieces stay independently readable. Order follows the source text.
func Split(text string, opts Options) []string {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}

	var parts []string
	switch opts.Strategy {
	case "fixed":
		parts = splitFixed(text, opts.ChunkSize, opts.ChunkOverlap)
	default:
		parts = splitRecursive(text, []string{"\n\n", "\n", ". ", " "}, opts.ChunkSize)
	}

	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks
}

func splitFixed(text string, size, overlap int) []string {
	var chunks []string
	runes := []rune(text)

	step := size - overlap
	if step <= 0 {
		step = size
	}

	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func splitRecursive(text string, separators []string, chunkSize int) []string {
	if utf8.RuneCountInString(text) <= chunkSize {
		return []string{text}
	}

	if len(separators) == 0 {
		return splitFixed(text, chunkSize, 0)
	}

	sep := separators[0]
	parts := strings.Split(text, sep)

	var result []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			result = append(result, splitRecursive(current.String(), separators[1:], chunkSize)...)
			current.Reset()
		}
	}

	for _, part := range parts {
		if current.Len() > 0 && utf8.RuneCountInString(current.String()+sep+part) > chunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(part)
	}
	flush()

	return result
}

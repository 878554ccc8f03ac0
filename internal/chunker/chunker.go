// Package chunker splits text into sentence-aligned pieces sized for a single
// synthesis call.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	commentPrefix     = "#"
	sentenceSeparator = ". "
	terminator        = "."
)

// ErrInvalidChunkSize is returned when the maximum chunk size is not positive.
var ErrInvalidChunkSize = errors.New("max chunk size must be greater than zero")

// Chunker holds the configured maximum chunk size.
type Chunker struct {
	maxChunkSize int
}

// New validates the maximum chunk size and returns a Chunker.
func New(maxChunkSize int) (*Chunker, error) {
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, maxChunkSize)
	}

	return &Chunker{maxChunkSize: maxChunkSize}, nil
}

// MaxChunkSize returns the configured limit.
func (c *Chunker) MaxChunkSize() int {
	return c.maxChunkSize
}

// Split drops comment lines, trims the rest and chunks every remaining line on
// its own. Line order and intra-line order are preserved.
func (c *Chunker) Split(text string) []string {
	var chunks []string

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, commentPrefix) {
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		chunks = append(chunks, c.splitLine(trimmed)...)
	}

	return chunks
}

// splitLine greedily packs ". "-separated fragments into chunks of roughly
// equal length.
func (c *Chunker) splitLine(line string) []string {
	lineLength := utf8.RuneCountInString(line)
	targetCount := lineLength/c.maxChunkSize + 1
	targetSize := lineLength / targetCount

	var (
		chunks        []string
		current       []string
		currentLength int
	)

	for _, fragment := range strings.Split(line, sentenceSeparator) {
		fragment = strings.Join(strings.Fields(fragment), " ")
		fragmentLength := utf8.RuneCountInString(fragment)

		if currentLength+fragmentLength > targetSize {
			chunks = appendChunk(chunks, current)
			current = []string{fragment}
			currentLength = fragmentLength

			continue
		}

		current = append(current, fragment)
		currentLength += fragmentLength
	}

	return appendChunk(chunks, current)
}

// appendChunk joins fragments, terminates the sentence and skips empty chunks.
func appendChunk(chunks, fragments []string) []string {
	chunk := strings.Join(fragments, sentenceSeparator)
	if strings.TrimSpace(chunk) == "" {
		return chunks
	}

	last, _ := utf8.DecodeLastRuneInString(chunk)
	if unicode.IsLetter(last) || unicode.IsDigit(last) {
		chunk += terminator
	}

	return append(chunks, chunk)
}

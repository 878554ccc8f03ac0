// Package chunker_test tests sentence-bounded text chunking.
package chunker_test

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/book-expert/speech-publisher/internal/chunker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paragraph = "The quick brown fox jumps over the lazy dog. " +
	"Pack my box with five dozen liquor jugs. " +
	"How vexingly quick daft zebras jump. " +
	"Sphinx of black quartz, judge my vow. " +
	"The five boxing wizards jump quickly."

func newChunker(t *testing.T, size int) *chunker.Chunker {
	t.Helper()

	splitter, err := chunker.New(size)
	require.NoError(t, err)

	return splitter
}

func TestNew_RejectsNonPositiveSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, -1, -300} {
		_, err := chunker.New(size)
		require.ErrorIs(t, err, chunker.ErrInvalidChunkSize)
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		size     int
		expected []string
	}{
		{
			name:     "sentences split near target size",
			input:    "Hello world. This is a test. Another sentence here.",
			size:     20,
			expected: []string{"Hello world.", "This is a test.", "Another sentence here."},
		},
		{
			name:     "comment line dropped",
			input:    "# this is a comment\nReal content.",
			size:     300,
			expected: []string{"Real content."},
		},
		{
			name:     "indented hash is not a comment",
			input:    "  # heading",
			size:     300,
			expected: []string{"# heading."},
		},
		{
			name:     "blank lines dropped and lines kept apart",
			input:    "First line\n\n   \nSecond line",
			size:     300,
			expected: []string{"First line.", "Second line."},
		},
		{
			name:     "whitespace collapsed inside fragments",
			input:    "Hello    world.  Next",
			size:     100,
			expected: []string{"Hello world. Next."},
		},
		{
			name:     "line without delimiter stays whole",
			input:    strings.Repeat("a", 50),
			size:     10,
			expected: []string{strings.Repeat("a", 50) + "."},
		},
		{
			name:     "punctuation end left alone",
			input:    "Is this a question?",
			size:     300,
			expected: []string{"Is this a question?"},
		},
		{
			name:     "carriage returns trimmed",
			input:    "Windows line\r\nAnother one\r\n",
			size:     300,
			expected: []string{"Windows line.", "Another one."},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			splitter := newChunker(t, testCase.size)
			assert.Equal(t, testCase.expected, splitter.Split(testCase.input))
		})
	}
}

func TestSplit_ShortLineYieldsSingleChunk(t *testing.T) {
	t.Parallel()

	splitter := newChunker(t, 300)

	chunks := splitter.Split(paragraph)
	require.Len(t, chunks, 1)
	assert.Equal(t, paragraph, chunks[0])
}

func TestSplit_ScenarioChunkLengths(t *testing.T) {
	t.Parallel()

	splitter := newChunker(t, 20)

	chunks := splitter.Split("Hello world. This is a test. Another sentence here.")
	require.GreaterOrEqual(t, len(chunks), 2)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 30)
		assert.True(t, strings.HasSuffix(chunk, "."), chunk)
	}
}

func TestSplit_Properties(t *testing.T) {
	t.Parallel()

	inputs := []string{
		paragraph,
		"one. two. three. four. five. six. seven. eight. nine. ten",
		"A single long sentence without any separator at all, just commas, and words",
		"Ünïcödé sentences work too. Ça va très bien. Größe zählt nicht",
		"Numbers end chunks 42. Then 7. And finally 1999",
	}

	for _, size := range []int{1, 5, 20, 60, 300} {
		splitter := newChunker(t, size)

		for _, input := range inputs {
			chunks := splitter.Split(input)
			require.NotEmpty(t, chunks, "size %d input %q", size, input)

			for _, chunk := range chunks {
				require.NotEmpty(t, strings.TrimSpace(chunk))

				last, _ := utf8.DecodeLastRuneInString(chunk)
				assert.False(t, unicode.IsLetter(last) || unicode.IsDigit(last), chunk)
			}

			assert.Equal(t, stripSeparators(input), stripSeparators(strings.Join(chunks, "")),
				"characters dropped for size %d", size)
		}
	}
}

func TestSplit_Idempotent(t *testing.T) {
	t.Parallel()

	for _, size := range []int{20, 40, 80} {
		splitter := newChunker(t, size)

		first := splitter.Split(paragraph)
		second := splitter.Split(strings.Join(first, " "))

		assert.Equal(t, first, second, "size %d", size)
	}
}

func TestSplit_PreservesLineOrder(t *testing.T) {
	t.Parallel()

	splitter := newChunker(t, 15)

	chunks := splitter.Split("# intro\nAlpha beta. Gamma delta.\nEpsilon zeta. Eta theta.")
	assert.Equal(t, []string{"Alpha beta.", "Gamma delta.", "Epsilon zeta.", "Eta theta."}, chunks)
}

func stripSeparators(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' || unicode.IsSpace(r) {
			return -1
		}

		return r
	}, text)
}

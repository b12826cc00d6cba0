package ingestion_engine

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragline/internal/models"
)

func mustSplitter(t *testing.T, size, overlap int) *RecursiveSplitter {
	t.Helper()
	s, err := NewRecursiveSplitter(size, overlap)
	require.NoError(t, err)
	return s
}

// reconstruct joins each chunk's content that was not already covered by the previous chunk.
func reconstruct(text string, chunks []models.Chunk) string {
	runes := []rune(text)
	var b strings.Builder
	covered := 0
	for _, c := range chunks {
		if c.End > covered {
			b.WriteString(string(runes[max(c.Start, covered):c.End]))
			covered = c.End
		}
	}
	return b.String()
}

func sampleTexts() map[string]string {
	para := "Retrieval augmented generation combines search with language models. " +
		"Documents are split into chunks! Each chunk is embedded? Vectors go to an index.\n"
	return map[string]string{
		"no separators": strings.Repeat("abcdefghijklmnopqrstuvwx", 100),
		"paragraphs":    strings.Repeat(para+"\n", 40),
		"lines":         strings.Repeat("short line of text\n", 300),
		"words":         strings.Repeat("word ", 900),
		"unicode":       strings.Repeat("naïve café résumé señor 日本語のテキスト。\n", 120),
		"mixed":         strings.Repeat(para, 10) + strings.Repeat("x", 2500) + "\n\n" + strings.Repeat(para, 5),
	}
}

func TestNewRecursiveSplitter_Validation(t *testing.T) {
	_, err := NewRecursiveSplitter(0, 0)
	assert.Error(t, err)

	_, err = NewRecursiveSplitter(100, -1)
	assert.Error(t, err)

	_, err = NewRecursiveSplitter(100, 100)
	assert.Error(t, err)

	s, err := NewRecursiveSplitter(100, 99)
	require.NoError(t, err)
	assert.Equal(t, 100, s.Size())
	assert.Equal(t, 99, s.Overlap())
}

func TestSplit_FixedWidthDocument(t *testing.T) {
	text := strings.Repeat("abcdefghijklmnopqrstuvwx", 100)
	require.Equal(t, 2400, len(text))

	chunks := mustSplitter(t, 1000, 150).Split(text)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Text, 1000)
	assert.Len(t, chunks[1].Text, 1000)
	// 550 new characters after the 150 carried over.
	assert.Equal(t, 550, chunks[2].End-chunks[1].End)
	assert.LessOrEqual(t, len(chunks[2].Text), 1000)

	assert.Equal(t, chunks[0].Text[850:], chunks[1].Text[:150])
	assert.Equal(t, chunks[1].Text[850:], chunks[2].Text[:150])
	assert.Equal(t, text, reconstruct(text, chunks))
}

func TestSplit_EmptyAndBlank(t *testing.T) {
	s := mustSplitter(t, 1000, 150)
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\n\t  "))
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	chunks := mustSplitter(t, 1000, 150).Split("Hello world\n")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world\n", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 12, chunks[0].End)
}

func TestSplit_Invariants(t *testing.T) {
	params := []struct{ size, overlap int }{
		{1000, 150},
		{200, 0},
		{200, 50},
		{64, 16},
		{10, 9},
	}

	for name, text := range sampleTexts() {
		for _, p := range params {
			s := mustSplitter(t, p.size, p.overlap)
			chunks := s.Split(text)
			runes := []rune(text)
			require.NotEmpty(t, chunks, name)

			for i, c := range chunks {
				assert.Equal(t, i, c.Index, name)
				assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), p.size, name)
				assert.True(t, strings.Contains(text, c.Text), name)
				assert.Equal(t, string(runes[c.Start:c.End]), c.Text, name)

				if i > 0 {
					prev := chunks[i-1]
					overlap := max(0, prev.End-c.Start)
					assert.LessOrEqual(t, overlap, p.overlap, name)
					assert.Greater(t, c.End, prev.End, name)
					assert.LessOrEqual(t, c.Start, prev.End, name)
				}
			}

			assert.Equal(t, text, reconstruct(text, chunks), name)
		}
	}
}

func TestSplit_ZeroOverlapSharesNothing(t *testing.T) {
	text := sampleTexts()["paragraphs"]
	chunks := mustSplitter(t, 300, 0).Split(text)
	require.Greater(t, len(chunks), 1)

	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			assert.Equal(t, chunks[i-1].End, c.Start)
		}
		b.WriteString(c.Text)
	}
	assert.Equal(t, text, b.String())
}

func TestSplit_Deterministic(t *testing.T) {
	s := mustSplitter(t, 250, 40)
	for name, text := range sampleTexts() {
		assert.Equal(t, s.Split(text), s.Split(text), name)
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	p1 := strings.Repeat("a", 60) + "\n\n"
	p2 := strings.Repeat("b", 60) + "\n\n"
	p3 := strings.Repeat("c", 60)
	chunks := mustSplitter(t, 130, 0).Split(p1 + p2 + p3)

	require.Len(t, chunks, 2)
	assert.Equal(t, p1+p2, chunks[0].Text)
	assert.Equal(t, p3, chunks[1].Text)
}

func TestSplit_SentenceSeparatorStaysWithSentence(t *testing.T) {
	text := "First sentence here. Second sentence here. Third sentence here."
	chunks := mustSplitter(t, 25, 0).Split(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, "First sentence here. ", chunks[0].Text)
	assert.Equal(t, "Second sentence here. ", chunks[1].Text)
	assert.Equal(t, "Third sentence here.", chunks[2].Text)
}

func TestSplit_OverlapUsesWholeWords(t *testing.T) {
	text := strings.Repeat("word ", 60)
	chunks := mustSplitter(t, 50, 12).Split(text)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		assert.True(t, strings.HasPrefix(chunks[i].Text, "word "), chunks[i].Text)
		assert.Equal(t, 10, chunks[i-1].End-chunks[i].Start)
	}
}

func TestSplit_CustomSeparators(t *testing.T) {
	s, err := NewRecursiveSplitterWithSeparators(10, 0, []string{"|"})
	require.NoError(t, err)

	chunks := s.Split("aaaa|bbbb|cccccccccccccc")
	require.NotEmpty(t, chunks)
	assert.Equal(t, "aaaa|bbbb|", chunks[0].Text)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 10)
	}
}

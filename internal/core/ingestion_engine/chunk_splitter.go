package ingestion_engine

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/ragline/internal/models"
)

// DefaultSeparators are tried in order: paragraphs, lines, sentences, words,
// then single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}

// RecursiveSplitter cuts text into chunks of at most size characters. Text
// is split on the first separator that occurs in it; pieces still larger
// than size are split again with the remaining separators. Separators stay
// attached to the end of the piece they close, so the pieces tile the input.
type RecursiveSplitter struct {
	size       int
	overlap    int
	separators [][]rune
}

// span is a half-open range of rune offsets.
type span struct {
	lo, hi int
}

func (s span) len() int { return s.hi - s.lo }

// NewRecursiveSplitter validates size and overlap and uses DefaultSeparators.
func NewRecursiveSplitter(size, overlap int) (*RecursiveSplitter, error) {
	return NewRecursiveSplitterWithSeparators(size, overlap, DefaultSeparators)
}

// NewRecursiveSplitterWithSeparators is NewRecursiveSplitter with a custom
// separator hierarchy. The empty separator is always appended as last resort.
func NewRecursiveSplitterWithSeparators(size, overlap int, separators []string) (*RecursiveSplitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be >= 0 and < chunk size (%d), got %d", size, overlap)
	}

	seps := make([][]rune, 0, len(separators)+1)
	hasEmpty := false
	for _, sep := range separators {
		if sep == "" {
			hasEmpty = true
		}
		seps = append(seps, []rune(sep))
	}
	if !hasEmpty {
		seps = append(seps, nil)
	}

	return &RecursiveSplitter{size: size, overlap: overlap, separators: seps}, nil
}

// Size is the maximum chunk length in characters.
func (s *RecursiveSplitter) Size() int { return s.size }

// Overlap is the maximum number of characters shared by consecutive chunks.
func (s *RecursiveSplitter) Overlap() int { return s.overlap }

// Split returns the chunks of text in document order. Blank text gives none.
func (s *RecursiveSplitter) Split(text string) []models.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	pieces := s.pieces(runes, span{0, len(runes)}, s.separators, nil)
	return s.merge(runes, pieces)
}

// pieces appends to out a tiling of sp where every piece fits in size.
func (s *RecursiveSplitter) pieces(text []rune, sp span, seps [][]rune, out []span) []span {
	if sp.len() <= s.size {
		return append(out, sp)
	}

	i := len(seps) - 1
	for j, sep := range seps {
		if len(sep) == 0 || indexRunes(text[sp.lo:sp.hi], sep) >= 0 {
			i = j
			break
		}
	}
	sep, rest := seps[i], seps[i+1:]

	if len(sep) == 0 {
		for k := sp.lo; k < sp.hi; k++ {
			out = append(out, span{k, k + 1})
		}
		return out
	}

	start := sp.lo
	for k := sp.lo; k+len(sep) <= sp.hi; {
		if !hasRunesAt(text, k, sep) {
			k++
			continue
		}
		end := k + len(sep)
		out = s.pieces(text, span{start, end}, rest, out)
		start, k = end, end
	}
	if start < sp.hi {
		out = s.pieces(text, span{start, sp.hi}, rest, out)
	}
	return out
}

// merge packs consecutive pieces greedily into chunks. After a chunk is
// emitted, its trailing pieces worth at most overlap characters seed the next.
func (s *RecursiveSplitter) merge(text []rune, pieces []span) []models.Chunk {
	var chunks []models.Chunk
	emit := func(from, to span) {
		chunks = append(chunks, models.Chunk{
			Index: len(chunks),
			Text:  string(text[from.lo:to.hi]),
			Start: from.lo,
			End:   to.hi,
		})
	}

	head, total := 0, 0
	for i, p := range pieces {
		n := p.len()
		if total+n > s.size && i > head {
			emit(pieces[head], pieces[i-1])
			for total > s.overlap || (total > 0 && total+n > s.size) {
				total -= pieces[head].len()
				head++
			}
		}
		total += n
	}
	if head < len(pieces) {
		emit(pieces[head], pieces[len(pieces)-1])
	}
	return chunks
}

func indexRunes(hay, needle []rune) int {
	for i := 0; i+len(needle) <= len(hay); i++ {
		if hasRunesAt(hay, i, needle) {
			return i
		}
	}
	return -1
}

func hasRunesAt(text []rune, at int, sep []rune) bool {
	if at+len(sep) > len(text) {
		return false
	}
	for j, r := range sep {
		if text[at+j] != r {
			return false
		}
	}
	return true
}

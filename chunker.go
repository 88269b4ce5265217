package quizbuilder

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const (
	DefaultSeparator    = "."
	DefaultChunkSize    = 1000 // runes
	DefaultChunkOverlap = 100  // runes
)

// Chunker splits page text into overlapping chunks. Every chunk is an
// exact substring of its page so the text can be put back together.
type Chunker struct {
	separator []rune
	size      int
	overlap   int
}

// NewChunker validates the splitting parameters
func NewChunker(separator string, size, overlap int) (*Chunker, error) {
	if separator == "" {
		return nil, fmt.Errorf("chunk separator must not be empty")
	}
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{separator: []rune(separator), size: size, overlap: overlap}, nil
}

// NewChunkerFromConfig builds a chunker from the chunking section
func NewChunkerFromConfig(cfg ChunkingConfig) (*Chunker, error) {
	return NewChunker(cfg.Separator, cfg.ChunkSize, cfg.ChunkOverlap)
}

// Split returns the chunk texts for a single piece of text
func (c *Chunker) Split(text string) []string {
	return lo.Map(c.split([]rune(text)), func(s span, _ int) string {
		return s.text
	})
}

// SplitPages chunks every page. Pages with no visible text produce nothing.
func (c *Chunker) SplitPages(pages []Page) ([]Chunk, error) {
	if len(pages) == 0 {
		return nil, ErrNoDocuments
	}

	var chunks []Chunk
	for _, page := range pages {
		if strings.TrimSpace(page.Content) == "" {
			continue
		}
		for i, s := range c.split([]rune(page.Content)) {
			chunks = append(chunks, Chunk{
				Text:   s.text,
				Source: page.Metadata.Source,
				Page:   page.Metadata.Page,
				Index:  i,
				Start:  s.start,
			})
		}
	}

	VerboseLog("Split %d document page(s) into %d text chunks", len(pages), len(chunks))
	return chunks, nil
}

type span struct {
	text  string
	start int
}

func (c *Chunker) split(text []rune) []span {
	n := len(text)
	if n == 0 {
		return nil
	}

	var spans []span
	start := 0
	for {
		end := min(start+c.size, n)
		if end < n {
			// prefer to cut just after a separator, as long as the cut
			// still moves past the overlap region
			if i := lastIndexRunes(text[start:end], c.separator); i >= 0 {
				if cut := start + i + len(c.separator); cut-start > c.overlap {
					end = cut
				}
			}
		}

		spans = append(spans, span{text: string(text[start:end]), start: start})
		if end == n {
			break
		}

		next := end - c.overlap
		// begin the overlap on a sentence boundary when one is available
		if j := indexRunes(text[next:end], c.separator); j >= 0 {
			if aligned := next + j + len(c.separator); aligned < end {
				next = aligned
			}
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return spans
}

// Reconstruct stitches chunks of a single page back into the page text
func Reconstruct(chunks []Chunk) string {
	var sb strings.Builder
	covered := 0
	for _, chunk := range chunks {
		r := []rune(chunk.Text)
		skip := covered - chunk.Start
		if skip < 0 {
			skip = 0
		}
		if skip >= len(r) {
			continue
		}
		sb.WriteString(string(r[skip:]))
		covered = chunk.Start + len(r)
	}
	return sb.String()
}

func indexRunes(s, sep []rune) int {
	for i := 0; i+len(sep) <= len(s); i++ {
		if runesEqual(s[i:i+len(sep)], sep) {
			return i
		}
	}
	return -1
}

func lastIndexRunes(s, sep []rune) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		if runesEqual(s[i:i+len(sep)], sep) {
			return i
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

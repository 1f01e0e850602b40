// Package rag implements the retrieval-augmented pipeline: chunking,
// embedding, vector indexing, hybrid retrieval and grounded answering.
package rag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/eventscope/internal/model"
)

// Chunker splits document text into retrieval-sized pieces.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker creates a Chunker. Zero or negative values fall back to the
// 1000/200 defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// ChunkText walks the text in windows of Size characters. When a window
// does not reach the end of the text, it is cut at the last period or
// newline found at or after the window midpoint; when no such break
// exists the window is cut at its edge and the walk re-advances by
// Size-Overlap so context at the hard boundary is not lost. Chunks are
// emitted trimmed.
func (c *Chunker) ChunkText(text string) []string {
	runes := []rune(text)
	var chunks []string

	start := 0
	for start < len(runes) {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		window := runes[start:end]

		if end < len(runes) {
			breakPoint := lastBreak(window)
			if breakPoint > c.Size/2 {
				window = window[:breakPoint+1]
				start += breakPoint + 1
			} else {
				start = end - c.Overlap
			}
		} else {
			start = end
		}

		chunks = append(chunks, strings.TrimSpace(string(window)))
	}

	return chunks
}

// lastBreak returns the index of the last sentence-terminal period or
// newline in the window, or -1.
func lastBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' {
			return i
		}
	}
	return -1
}

// sectionNames are consulted in a fixed order so chunk indexes are stable
// across runs.
var sectionNames = []string{"overview", "agenda", "speakers", "logistics", "requirements"}

var sectionPatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(sectionNames))
	for _, name := range sectionNames {
		patterns[name] = regexp.MustCompile(`(?i)` + name + `:\s*([^\n]+(?:\n[^\n]+)*)`)
	}
	return patterns
}()

// ChunkSections extracts labelled sections from event text and emits one
// chunk per non-empty section. Text without recognizable section headers
// produces no chunks.
func (c *Chunker) ChunkSections(documentID, text string) []model.Chunk {
	var chunks []model.Chunk
	index := 0
	for _, name := range sectionNames {
		m := sectionPatterns[name].FindStringSubmatch(text)
		if m == nil {
			continue
		}
		content := strings.TrimSpace(m[1])
		if content == "" {
			continue
		}
		chunks = append(chunks, model.Chunk{
			DocumentID:  documentID,
			Index:       index,
			Content:     content,
			SectionType: name,
		})
		index++
	}
	return chunks
}

// ChunkDocument selects the chunking strategy by document kind: events get
// the section-aware chunker, knowledge documents fixed windows. Event text
// without any recognizable section headers falls back to fixed windows so
// the document is still retrievable.
func (c *Chunker) ChunkDocument(doc model.Document) []model.Chunk {
	if doc.Kind == model.KindEvent {
		if chunks := c.ChunkSections(doc.ID, doc.Content); len(chunks) > 0 {
			return chunks
		}
	}

	pieces := c.ChunkText(doc.Content)
	chunks := make([]model.Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = model.Chunk{DocumentID: doc.ID, Index: i, Content: content}
	}
	return chunks
}

// ChunkID returns the deterministic vector id for a chunk.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-%d", documentID, index)
}

package ingest

import "strings"

// Splitter breaks a document into overlapping chunks for embedding.
// It prefers splitting on paragraph and sentence boundaries, falling back to
// words and finally raw characters when a segment is still too long.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Chunk sizes are tuned per corpus: press releases are short and dense, SEC
// filings are long and benefit from larger chunks with more overlap.
func NewPressSplitter() *Splitter { return &Splitter{chunkSize: 400, overlap: 80} }
func NewSECSplitter() *Splitter  { return &Splitter{chunkSize: 1000, overlap: 200} }

// NewSplitter creates a splitter with explicit sizes. overlap must be
// smaller than chunkSize; callers get a safe minimum otherwise.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

var separators = []string{"\n\n", "\n", ". ", " "}

// Split breaks text into chunks of at most the configured size, with
// consecutive chunks sharing the configured overlap. Whitespace-only input
// yields no chunks.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.chunkSize {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(text); {
		end := start + s.chunkSize
		if end >= len(text) {
			chunk := strings.TrimSpace(text[start:])
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := s.findCut(text[start:end])
		chunk := strings.TrimSpace(text[start : start+cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := start + cut - s.overlap
		if next <= start {
			next = start + cut
		}
		start = next
	}
	return chunks
}

// findCut picks the split point within a full-size segment, preferring the
// latest occurrence of the strongest separator in the second half of the
// segment so chunks stay reasonably balanced.
func (s *Splitter) findCut(segment string) int {
	half := len(segment) / 2
	for _, sep := range separators {
		if idx := strings.LastIndex(segment, sep); idx > half {
			return idx + len(sep)
		}
	}
	return len(segment)
}

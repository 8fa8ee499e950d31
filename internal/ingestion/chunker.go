package ingestion

import (
	"maps"
	"strings"
)

// Default chunking parameters, in characters.
const (
	// DefaultChunkSize is the target window size.
	DefaultChunkSize = 800
	// DefaultChunkOverlap is the overlap carried between adjacent windows
	// for context preservation.
	DefaultChunkOverlap = 100
)

// separators is the split hierarchy: paragraph, line, word, character.
// Earlier separators are preferred so windows break at natural boundaries
// whenever one exists; the final "" entry means a hard character split.
var separators = []string{"\n\n", "\n", " ", ""}

// Window is one chunk of normalized text carrying its source segment's
// metadata unmodified.
type Window struct {
	// Text is the window's content.
	Text string `json:"text"`
	// Metadata is a copy of the originating segment's metadata.
	Metadata map[string]string `json:"metadata"`
}

// Chunk splits each segment into overlapping windows of at most size
// characters with the given overlap. Every window inherits its segment's
// metadata. Empty input yields empty output; this is not an error.
func Chunk(segments []Segment, size, overlap int) []Window {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}

	var windows []Window
	for _, seg := range segments {
		for _, text := range SplitText(seg.Text, size, overlap) {
			md := maps.Clone(seg.Metadata)
			if md == nil {
				md = make(map[string]string)
			}
			windows = append(windows, Window{Text: text, Metadata: md})
		}
	}
	return windows
}

// SplitText splits text into windows of at most size characters, preferring
// paragraph over line over word over character boundaries, with adjacent
// windows overlapping by up to overlap characters.
func SplitText(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	pieces := splitAtBoundaries(text, separators, size)
	return mergePieces(pieces, size, overlap)
}

// splitAtBoundaries recursively splits text into pieces no longer than size,
// preferring the earliest separator in seps that produces a split. Separators
// stay attached to the preceding piece so rejoining is lossless.
func splitAtBoundaries(text string, seps []string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}
	if len(seps) == 0 {
		return hardSplit(text, size)
	}

	sep, rest := seps[0], seps[1:]
	if sep == "" {
		return hardSplit(text, size)
	}
	if !strings.Contains(text, sep) {
		return splitAtBoundaries(text, rest, size)
	}

	var pieces []string
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if len(part) > size {
			pieces = append(pieces, splitAtBoundaries(part, rest, size)...)
		} else {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

// hardSplit chops text into size-length pieces with no boundary preference.
// It is the last resort for pathological inputs with no separators at all.
func hardSplit(text string, size int) []string {
	var pieces []string
	for len(text) > size {
		pieces = append(pieces, text[:size])
		text = text[size:]
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}

// mergePieces greedily packs boundary pieces into windows of at most size
// characters. When a window closes, its trailing pieces (up to overlap
// characters) seed the next window so adjacent windows share context.
func mergePieces(pieces []string, size, overlap int) []string {
	var windows []string
	var current []string
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		window := strings.TrimSpace(strings.Join(current, ""))
		if window != "" {
			windows = append(windows, window)
		}

		// Seed the next window with the overlap tail of this one.
		var tail []string
		tailLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			if tailLen+len(current[i]) > overlap {
				break
			}
			tail = append([]string{current[i]}, tail...)
			tailLen += len(current[i])
		}
		current = tail
		currentLen = tailLen
	}

	for _, piece := range pieces {
		if currentLen+len(piece) > size && currentLen > 0 {
			flush()
		}
		current = append(current, piece)
		currentLen += len(piece)
	}

	if window := strings.TrimSpace(strings.Join(current, "")); window != "" {
		// The final window may be pure overlap of the previous one; emit it
		// only when it adds new content.
		if len(windows) == 0 || !strings.HasSuffix(windows[len(windows)-1], window) {
			windows = append(windows, window)
		}
	}
	return windows
}

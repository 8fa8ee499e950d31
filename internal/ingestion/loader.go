package ingestion

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ledongthuc/pdf"

	"github.com/ragline/ragline/internal/faults"
)

// Metadata keys stamped onto every loaded segment. The "source" key is the
// only channel through which citation formatting recovers the origin file
// name, so loaders must always set it.
const (
	// MetaSource is the absolute path of the origin file.
	MetaSource = "source"
	// MetaFileHash is the content hash of the origin file.
	MetaFileHash = "file_hash"
	// MetaFileSize is the byte size of the origin file.
	MetaFileSize = "file_size"
	// MetaPage is the 1-based page number for paginated formats.
	MetaPage = "page"
	// MetaChunkIndex is the ordinal position of a chunk within its file.
	MetaChunkIndex = "chunk_index"
)

// Segment is one raw extracted unit of text with its source metadata.
// A text file yields one segment; a PDF yields one segment per page.
type Segment struct {
	// Text is the extracted (not yet normalized) text.
	Text string `json:"text"`
	// Metadata carries the source path, hash, size, and format-specific
	// keys such as the page number.
	Metadata map[string]string `json:"metadata"`
}

// Load converts a discovered file into raw text segments, dispatching on
// extension. Every returned segment carries the source path, content hash,
// and byte size in its metadata. Unsupported extensions and any underlying
// extraction failure surface as a DocumentLoadError for the offending path.
func Load(fd FileDescriptor) ([]Segment, error) {
	var segments []Segment
	var err error

	switch fd.Ext {
	case ".txt":
		segments, err = loadText(fd)
	case ".pdf":
		segments, err = loadPDF(fd)
	default:
		return nil, &faults.DocumentLoadError{Path: fd.Path, Err: fmt.Errorf("unsupported file type %q", fd.Ext)}
	}
	if err != nil {
		return nil, err
	}

	for i := range segments {
		if segments[i].Metadata == nil {
			segments[i].Metadata = make(map[string]string)
		}
		segments[i].Metadata[MetaSource] = fd.Path
		segments[i].Metadata[MetaFileHash] = fd.Hash
		segments[i].Metadata[MetaFileSize] = strconv.FormatInt(fd.Size, 10)
	}
	return segments, nil
}

// loadText reads the whole file as a single segment.
func loadText(fd FileDescriptor) ([]Segment, error) {
	data, err := os.ReadFile(fd.Path)
	if err != nil {
		return nil, &faults.DocumentLoadError{Path: fd.Path, Err: err}
	}
	if len(data) == 0 {
		return nil, nil
	}
	return []Segment{{Text: string(data)}}, nil
}

// loadPDF extracts plain text from each page, one segment per page.
// Pages whose extraction fails are skipped with the rest of the document
// intact; a document that cannot be opened at all fails the load.
func loadPDF(fd FileDescriptor) ([]Segment, error) {
	f, reader, err := pdf.Open(fd.Path)
	if err != nil {
		return nil, &faults.DocumentLoadError{Path: fd.Path, Err: err}
	}
	defer f.Close()

	var segments []Segment
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || text == "" {
			continue
		}
		segments = append(segments, Segment{
			Text: text,
			Metadata: map[string]string{
				MetaPage: strconv.Itoa(pageNum),
			},
		})
	}
	return segments, nil
}

// Package ingestion implements the document ingestion pipeline: it discovers
// files under a folder, extracts and normalizes their text, chunks it into
// overlapping windows, embeds each chunk, and upserts the results into the
// chunk store. The pipeline runs as durable workflows (see Ingestor) so that
// crashes resume instead of reprocessing, and unchanged files are skipped by
// content hash. It is invoked by the `ragline ingest` CLI command and the
// POST /api/ingest endpoint.
package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ragline/ragline/internal/faults"
)

// hashBlockSize is the read block used when hashing file contents. Hashing
// streams the file so arbitrarily large inputs use bounded memory.
const hashBlockSize = 4096

// DefaultExtensions is the set of file extensions ingested when the caller
// does not specify one.
var DefaultExtensions = []string{".pdf", ".txt"}

// FileDescriptor identifies one discovered file by absolute path and content
// hash. Descriptors are recomputed fresh on every discovery pass and never
// persisted on their own — the chunk store tracks files via SourceDocument.
type FileDescriptor struct {
	// Path is the absolute path of the file.
	Path string `json:"path"`
	// Hash is the hex-encoded SHA-256 digest of the file's bytes.
	Hash string `json:"hash"`
	// Ext is the lowercased file extension including the dot (".pdf").
	Ext string `json:"ext"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
}

// HashFile computes the hex-encoded SHA-256 digest of the file at path,
// streaming its contents in fixed-size blocks. The hash is the idempotency
// key for the whole pipeline, so it must be collision resistant.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &faults.FileDiscoveryError{Path: path, Err: err}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, hashBlockSize)); err != nil {
		return "", &faults.FileDiscoveryError{Path: path, Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Discover recursively walks root and returns a descriptor for every regular
// file whose extension matches one of exts (case-insensitive). A missing root
// is fatal; a file that cannot be hashed or stat'd is logged at WARN and
// excluded so one bad file never aborts the scan. Output ordering follows the
// walk and is not part of the contract.
func Discover(root string, exts []string, log *slog.Logger) ([]FileDescriptor, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, &faults.FileDiscoveryError{Path: root, Err: fmt.Errorf("directory not found: %w", err)}
	}
	if !info.IsDir() {
		return nil, &faults.FileDiscoveryError{Path: root, Err: fmt.Errorf("not a directory")}
	}

	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}

	var found []FileDescriptor
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: skip it, keep scanning the rest.
			log.Warn("ingestion: skipping unreadable path",
				slog.String("path", path),
				slog.Any("error", err),
			)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !allowed[ext] {
			return nil
		}

		fd, err := describe(path, ext)
		if err != nil {
			log.Warn("ingestion: skipping undiscoverable file",
				slog.String("path", path),
				slog.Any("error", err),
			)
			return nil
		}
		found = append(found, fd)
		return nil
	})
	if walkErr != nil {
		return nil, &faults.FileDiscoveryError{Path: root, Err: walkErr}
	}

	return found, nil
}

// describe builds the descriptor for a single matched file.
func describe(path, ext string) (FileDescriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileDescriptor{}, &faults.FileDiscoveryError{Path: path, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileDescriptor{}, &faults.FileDiscoveryError{Path: abs, Err: err}
	}
	hash, err := HashFile(abs)
	if err != nil {
		return FileDescriptor{}, err
	}
	return FileDescriptor{
		Path: abs,
		Hash: hash,
		Ext:  ext,
		Size: info.Size(),
	}, nil
}

package ingestion

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ragline/ragline/internal/faults"
)

func Test_Load_TextFileStampsMetadata(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("plain text body"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fd, err := describe(path, ".txt")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}

	segments, err := Load(fd)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("want 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.Text != "plain text body" {
		t.Errorf("text round trip failed: %q", seg.Text)
	}
	if seg.Metadata[MetaSource] != fd.Path {
		t.Errorf("source metadata missing: %v", seg.Metadata)
	}
	if seg.Metadata[MetaFileHash] != fd.Hash {
		t.Errorf("hash metadata missing: %v", seg.Metadata)
	}
	if seg.Metadata[MetaFileSize] != strconv.FormatInt(fd.Size, 10) {
		t.Errorf("size metadata missing: %v", seg.Metadata)
	}
}

func Test_Load_EmptyTextFileYieldsNoSegments(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fd, _ := describe(path, ".txt")

	segments, err := Load(fd)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if segments != nil {
		t.Errorf("want no segments, got %v", segments)
	}
}

func Test_Load_UnsupportedExtensionFails(t *testing.T) {
	t.Parallel()
	_, err := Load(FileDescriptor{Path: "/x/doc.docx", Ext: ".docx"})
	var lerr *faults.DocumentLoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("want DocumentLoadError, got %v", err)
	}
	if lerr.Path != "/x/doc.docx" {
		t.Errorf("error must carry the path, got %q", lerr.Path)
	}
}

func Test_Load_CorruptPDFFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.pdf")
	if err := os.WriteFile(path, []byte("not actually a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fd, _ := describe(path, ".pdf")

	_, err := Load(fd)
	var lerr *faults.DocumentLoadError
	if !errors.As(err, &lerr) {
		t.Errorf("want DocumentLoadError for corrupt pdf, got %v", err)
	}
}

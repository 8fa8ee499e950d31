package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ragline/ragline/internal/faults"
)

func Test_HashFile_MatchesSHA256(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := []byte("hash me precisely")
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	sum := sha256.Sum256(content)
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
}

func Test_HashFile_MissingFileIsDiscoveryError(t *testing.T) {
	t.Parallel()
	_, err := HashFile(filepath.Join(t.TempDir(), "absent"))
	var derr *faults.FileDiscoveryError
	if !errors.As(err, &derr) {
		t.Errorf("want FileDiscoveryError, got %v", err)
	}
}

func Test_Discover_FindsOnlyMatchingExtensions(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, content := range map[string]string{
		"a.txt":        "alpha",
		"B.TXT":        "upper case extension",
		"c.pdf":        "pdf-ish",
		"skip.md":      "markdown is not ingested",
		"nested/d.txt": "nested file",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	found, err := Discover(dir, nil, slog.Default())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(found) != 4 {
		paths := make([]string, len(found))
		for i, f := range found {
			paths[i] = f.Path
		}
		t.Fatalf("want 4 files, got %d: %v", len(found), paths)
	}
	for _, fd := range found {
		if !filepath.IsAbs(fd.Path) {
			t.Errorf("descriptor path must be absolute: %s", fd.Path)
		}
		if fd.Hash == "" {
			t.Errorf("descriptor for %s has no hash", fd.Path)
		}
		if fd.Ext != ".txt" && fd.Ext != ".pdf" {
			t.Errorf("unexpected extension %q for %s", fd.Ext, fd.Path)
		}
	}
}

func Test_Discover_MissingRootFails(t *testing.T) {
	t.Parallel()
	_, err := Discover(filepath.Join(t.TempDir(), "absent"), nil, slog.Default())
	var derr *faults.FileDiscoveryError
	if !errors.As(err, &derr) {
		t.Errorf("want FileDiscoveryError, got %v", err)
	}
}

func Test_Discover_FileRootFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Discover(path, nil, slog.Default()); err == nil {
		t.Error("a non-directory root must be rejected")
	}
}

package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ragline/ragline/internal/store"
	"github.com/ragline/ragline/internal/workflow"
)

// File outcome statuses.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Skip reasons reported in FileResult.Reason.
const (
	ReasonAlreadyProcessed = "already_processed"
	ReasonNoContent        = "no_content"
	ReasonNoChunks         = "no_chunks"
	ReasonFileChanged      = "file_changed"
)

// defaultWorkers bounds how many files are processed concurrently.
const defaultWorkers = 3

// embedRetry governs the embedding step: the embedding backend is the one
// remote call in the per-file pipeline, so it gets bounded retries while
// everything else fails fast.
var embedRetry = workflow.StepOptions{MaxAttempts: 3, Backoff: 2 * time.Second}

// Embedder produces one vector per input text. Batches preserve order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore is the slice of the chunk store the pipeline writes through.
type ChunkStore interface {
	// Exists reports whether the document at this path is already fully
	// ingested with exactly this content hash.
	Exists(ctx context.Context, filePath, fileHash string) (bool, error)
	// Save upserts a source document and its chunks in one transaction.
	Save(ctx context.Context, doc store.SourceDocument, chunks []store.Chunk) error
}

// FileResult is the recorded outcome of one file's ingestion workflow.
type FileResult struct {
	// Status is success, skipped, or failed.
	Status string `json:"status"`
	// File is the absolute path of the source file.
	File string `json:"file"`
	// Reason explains a skipped or failed status.
	Reason string `json:"reason,omitempty"`
	// Chunks is the number of chunks written for a successful run.
	Chunks int `json:"chunks"`
}

// FolderResult aggregates the per-file outcomes of one folder ingestion run.
type FolderResult struct {
	// WorkflowID identifies the folder run for status polling.
	WorkflowID string `json:"workflow_id"`
	// FilesFound is the number of files discovered under the root.
	FilesFound int `json:"files_found"`
	// FilesProcessed counts files whose chunks were (re)written.
	FilesProcessed int `json:"files_processed"`
	// FilesSkipped counts files left untouched (already ingested, empty, ...).
	FilesSkipped int `json:"files_skipped"`
	// FilesFailed counts files whose workflow ended in error.
	FilesFailed int `json:"files_failed"`
	// Results holds the individual file outcomes.
	Results []FileResult `json:"results"`
}

// Options configures an Ingestor. Zero values select the defaults.
type Options struct {
	// ChunkSize is the chunk window size in characters.
	ChunkSize int
	// ChunkOverlap is the overlap between adjacent windows.
	ChunkOverlap int
	// Workers bounds concurrent file processing.
	Workers int
	// Extensions restricts discovery; empty means DefaultExtensions.
	Extensions []string
	// EmbeddingModel names the model producing the vectors; stamped on every
	// saved document so a later model swap is detectable.
	EmbeddingModel string
}

// Ingestor runs the document ingestion pipeline as durable workflows. Each
// file is processed under a deterministic workflow id derived from its content
// hash, so re-ingesting an unchanged corpus is a no-op and a crashed run
// resumes from its last completed step instead of starting over.
type Ingestor struct {
	engine     *workflow.Engine
	store      ChunkStore
	embedder   Embedder
	queue      *workflow.Queue
	log        *slog.Logger
	opts       Options
	embedRetry workflow.StepOptions
}

// New builds an Ingestor on the given durable engine, chunk store, and
// embedder.
func New(engine *workflow.Engine, st ChunkStore, emb Embedder, log *slog.Logger, opts Options) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	return &Ingestor{
		engine:     engine,
		store:      st,
		embedder:   emb,
		queue:      engine.NewQueue("ingest", opts.Workers),
		log:        log,
		opts:       opts,
		embedRetry: embedRetry,
	}
}

// Start launches a folder ingestion workflow and returns its workflow id
// without waiting for completion. Progress is observable through the engine's
// events ("files_discovered" after the scan, "files_completed" and
// "files_skipped" after aggregation) and the workflow record itself.
func (in *Ingestor) Start(ctx context.Context, root string) string {
	id := folderWorkflowID()
	go func() {
		// Detach from the request context: the workflow outlives the
		// HTTP request that started it.
		if _, err := in.runFolder(context.WithoutCancel(ctx), id, root); err != nil {
			in.log.Error("ingestion: folder workflow failed",
				slog.String("workflow_id", id),
				slog.Any("error", err),
			)
		}
	}()
	return id
}

// IngestFolder runs a folder ingestion workflow to completion.
func (in *Ingestor) IngestFolder(ctx context.Context, root string) (FolderResult, error) {
	return in.runFolder(ctx, folderWorkflowID(), root)
}

func (in *Ingestor) runFolder(ctx context.Context, id, root string) (FolderResult, error) {
	return workflow.Execute(ctx, in.engine, id, "ingest-folder",
		func(ctx context.Context, run *workflow.Run) (FolderResult, error) {
			files, err := workflow.Step(ctx, run, "discover-files", workflow.StepOptions{},
				func(ctx context.Context) ([]FileDescriptor, error) {
					return Discover(root, in.opts.Extensions, in.log)
				})
			if err != nil {
				return FolderResult{}, err
			}
			if err := run.SetEvent(ctx, "files_discovered", len(files)); err != nil {
				return FolderResult{}, err
			}
			in.log.Info("ingestion: folder scan complete",
				slog.String("workflow_id", run.ID()),
				slog.String("root", root),
				slog.Int("files", len(files)),
			)

			handles := make([]*workflow.Handle[FileResult], len(files))
			for i, fd := range files {
				handles[i] = in.enqueueFile(ctx, fd)
			}

			result := FolderResult{WorkflowID: run.ID(), FilesFound: len(files)}
			for i, h := range handles {
				fr, err := h.Result(ctx)
				if err != nil {
					// One bad file never fails the folder run.
					fr = FileResult{Status: StatusFailed, File: files[i].Path, Reason: err.Error()}
					in.log.Warn("ingestion: file workflow failed",
						slog.String("file", files[i].Path),
						slog.Any("error", err),
					)
				}
				switch fr.Status {
				case StatusSuccess:
					result.FilesProcessed++
				case StatusSkipped:
					result.FilesSkipped++
				default:
					result.FilesFailed++
				}
				result.Results = append(result.Results, fr)
			}

			if err := run.SetEvent(ctx, "files_completed", result.FilesProcessed); err != nil {
				return FolderResult{}, err
			}
			if err := run.SetEvent(ctx, "files_skipped", result.FilesSkipped); err != nil {
				return FolderResult{}, err
			}
			return result, nil
		})
}

// IngestFile processes a single file under its deterministic workflow id.
func (in *Ingestor) IngestFile(ctx context.Context, fd FileDescriptor) (FileResult, error) {
	return workflow.Execute(ctx, in.engine, fileWorkflowID(fd.Hash), "process-file",
		func(ctx context.Context, run *workflow.Run) (FileResult, error) {
			return in.processFile(ctx, run, fd)
		})
}

func (in *Ingestor) enqueueFile(ctx context.Context, fd FileDescriptor) *workflow.Handle[FileResult] {
	return workflow.Enqueue(ctx, in.queue, fileWorkflowID(fd.Hash), "process-file",
		func(ctx context.Context, run *workflow.Run) (FileResult, error) {
			return in.processFile(ctx, run, fd)
		})
}

// processFile is the per-file durable workflow body. Every step checkpoints
// its output, so a resumed run replays completed steps from the database
// instead of redoing their work.
func (in *Ingestor) processFile(ctx context.Context, run *workflow.Run, fd FileDescriptor) (FileResult, error) {
	exists, err := workflow.Step(ctx, run, "check-exists", workflow.StepOptions{},
		func(ctx context.Context) (bool, error) {
			return in.store.Exists(ctx, fd.Path, fd.Hash)
		})
	if err != nil {
		return FileResult{}, err
	}
	if exists {
		in.log.Info("ingestion: unchanged file skipped", slog.String("file", fd.Path))
		return FileResult{Status: StatusSkipped, File: fd.Path, Reason: ReasonAlreadyProcessed}, nil
	}

	segments, err := workflow.Step(ctx, run, "extract-text", workflow.StepOptions{},
		func(ctx context.Context) ([]Segment, error) {
			return in.extract(fd)
		})
	if err != nil {
		return FileResult{}, err
	}
	if len(segments) == 0 {
		return FileResult{Status: StatusSkipped, File: fd.Path, Reason: ReasonNoContent}, nil
	}

	windows, err := workflow.Step(ctx, run, "chunk-text", workflow.StepOptions{},
		func(ctx context.Context) ([]Window, error) {
			return Chunk(segments, in.opts.ChunkSize, in.opts.ChunkOverlap), nil
		})
	if err != nil {
		return FileResult{}, err
	}
	if len(windows) == 0 {
		return FileResult{Status: StatusSkipped, File: fd.Path, Reason: ReasonNoChunks}, nil
	}

	embeddings, err := workflow.Step(ctx, run, "embed-chunks", in.embedRetry,
		func(ctx context.Context) ([][]float32, error) {
			texts := make([]string, len(windows))
			for i, w := range windows {
				texts[i] = w.Text
			}
			return in.embedder.Embed(ctx, texts)
		})
	if err != nil {
		return FileResult{}, err
	}
	if len(embeddings) != len(windows) {
		return FileResult{}, fmt.Errorf("ingestion: embedder returned %d vectors for %d chunks", len(embeddings), len(windows))
	}

	written, err := workflow.Step(ctx, run, "save-chunks", workflow.StepOptions{},
		func(ctx context.Context) (bool, error) {
			return in.save(ctx, fd, windows, embeddings)
		})
	if err != nil {
		return FileResult{}, err
	}
	if !written {
		return FileResult{Status: StatusSkipped, File: fd.Path, Reason: ReasonFileChanged}, nil
	}

	in.log.Info("ingestion: file processed",
		slog.String("file", fd.Path),
		slog.Int("chunks", len(windows)),
	)
	return FileResult{Status: StatusSuccess, File: fd.Path, Chunks: len(windows)}, nil
}

// extract loads and normalizes a file's text, dropping segments that
// normalize to nothing.
func (in *Ingestor) extract(fd FileDescriptor) ([]Segment, error) {
	raw, err := Load(fd)
	if err != nil {
		return nil, err
	}
	var segments []Segment
	for _, seg := range raw {
		seg.Text = Normalize(seg.Text)
		if seg.Text == "" {
			continue
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// save writes the document and its chunks in one transaction. The file is
// re-hashed immediately before the write; if it changed since discovery the
// computed chunks describe stale content, so nothing is written and the next
// run picks up the new content under its new hash.
func (in *Ingestor) save(ctx context.Context, fd FileDescriptor, windows []Window, embeddings [][]float32) (bool, error) {
	current, err := HashFile(fd.Path)
	if err != nil {
		return false, err
	}
	if current != fd.Hash {
		in.log.Warn("ingestion: file changed during processing, discarding stale chunks",
			slog.String("file", fd.Path),
		)
		return false, nil
	}

	chunks := make([]store.Chunk, len(windows))
	for i, w := range windows {
		w.Metadata[MetaChunkIndex] = strconv.Itoa(i)
		chunks[i] = store.Chunk{
			ID:        ChunkID(fd.Hash, i),
			Text:      w.Text,
			Embedding: embeddings[i],
			Metadata:  w.Metadata,
		}
	}
	doc := store.SourceDocument{
		FilePath:       fd.Path,
		FileHash:       fd.Hash,
		FileSize:       fd.Size,
		EmbeddingModel: in.opts.EmbeddingModel,
	}
	if err := in.store.Save(ctx, doc, chunks); err != nil {
		return false, err
	}
	return true, nil
}

// ChunkID derives the stable identifier for the index-th chunk of a file with
// the given content hash. The same content always yields the same chunk ids,
// which is what makes re-ingestion an upsert rather than a duplication.
func ChunkID(fileHash string, index int) string {
	sum := sha256.Sum256([]byte(fileHash + ":" + strconv.Itoa(index)))
	return hex.EncodeToString(sum[:])[:16]
}

// fileWorkflowID is the deterministic workflow id for one file's content.
func fileWorkflowID(fileHash string) string {
	return "process-" + fileHash
}

// folderWorkflowID mints a fresh id for each folder run. Only the per-file
// child workflows are idempotent across invocations; the folder summary is
// recomputed every run.
func folderWorkflowID() string {
	return "ingestion-" + uuid.NewString()[:8]
}

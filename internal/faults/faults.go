// Package faults defines the error taxonomy shared by the ingestion and
// query pipelines. Every component wraps raw failures into one of these
// types at the point of detection so that callers — the CLI, the HTTP
// server, the retry loop — can dispatch on error class without ever seeing
// a raw provider or driver error.
//
// The taxonomy, by retry behaviour:
//
//   - input errors (QueryError, DocumentLoadError with an unsupported
//     extension): caller mistakes, never retried
//   - transient errors (EmbeddingError during ingestion, LLM* during
//     generation): retried with bounded attempts and backoff
//   - storage errors (StorageError): surfaced as a distinct class, not
//     retried inline
//   - setup errors (FileDiscoveryError on a missing root, missing
//     credentials): abort immediately
package faults

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FileDiscoveryError reports a failure while scanning or hashing files.
// A missing root directory is fatal to the whole scan; a per-file hash
// failure is logged and the file skipped.
type FileDiscoveryError struct {
	// Path is the file or directory that could not be processed.
	Path string
	// Err is the underlying cause.
	Err error
}

func (e *FileDiscoveryError) Error() string {
	return fmt.Sprintf("file discovery failed for %s: %v", e.Path, e.Err)
}

func (e *FileDiscoveryError) Unwrap() error { return e.Err }

// DocumentLoadError reports a failure converting a file into text segments,
// including the unsupported-extension case.
type DocumentLoadError struct {
	// Path is the offending file.
	Path string
	// Err is the underlying cause.
	Err error
}

func (e *DocumentLoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

func (e *DocumentLoadError) Unwrap() error { return e.Err }

// ChunkingError reports a failure splitting normalized text into windows.
type ChunkingError struct {
	// Err is the underlying cause.
	Err error
}

func (e *ChunkingError) Error() string { return fmt.Sprintf("chunking failed: %v", e.Err) }

func (e *ChunkingError) Unwrap() error { return e.Err }

// EmbeddingError reports a failure producing embedding vectors, including
// a dimension mismatch between the provider's output and the configured
// embedding dimension.
type EmbeddingError struct {
	// Err is the underlying cause.
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding failed: %v", e.Err) }

func (e *EmbeddingError) Unwrap() error { return e.Err }

// QueryError is the input-error class: a malformed query or an
// unrecognized metadata filter key. Never retried; maps to a 400 response.
type QueryError struct {
	// Reason describes what was wrong with the caller's input.
	Reason string
}

func (e *QueryError) Error() string { return "invalid query: " + e.Reason }

// StorageError reports a database failure: a broken transaction, lost
// connectivity, or a failed search. Not retried inline — callers decide.
type StorageError struct {
	// Op is the storage operation that failed (e.g. "save", "search").
	Op string
	// Err is the underlying cause.
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// LLMError is the generic class for generative-model failures. It is the
// terminal classification: exhausting retries on the more specific
// LLM errors, or a rate limit whose suggested wait exceeds the ceiling,
// both end up here.
type LLMError struct {
	// Err is the underlying cause.
	Err error
}

func (e *LLMError) Error() string { return fmt.Sprintf("llm error: %v", e.Err) }

func (e *LLMError) Unwrap() error { return e.Err }

// LLMRateLimitError is a provider rate limit. RetryAfter carries the
// provider-suggested wait when one could be parsed, zero otherwise.
type LLMRateLimitError struct {
	// Err is the underlying cause.
	Err error
	// RetryAfter is the provider-suggested wait, or 0 if none was given.
	RetryAfter time.Duration
}

func (e *LLMRateLimitError) Error() string { return fmt.Sprintf("llm rate limited: %v", e.Err) }

func (e *LLMRateLimitError) Unwrap() error { return e.Err }

// LLMTimeoutError is a timed-out generative-model call.
type LLMTimeoutError struct {
	// Err is the underlying cause.
	Err error
}

func (e *LLMTimeoutError) Error() string { return fmt.Sprintf("llm timeout: %v", e.Err) }

func (e *LLMTimeoutError) Unwrap() error { return e.Err }

// IsLLM reports whether err belongs to the generative-model error family
// (generic, rate limit, or timeout). The generation orchestrator degrades
// gracefully on these and propagates everything else.
func IsLLM(err error) bool {
	var ge *LLMError
	var rl *LLMRateLimitError
	var to *LLMTimeoutError
	return errors.As(err, &ge) || errors.As(err, &rl) || errors.As(err, &to)
}

// IsInput reports whether err is a caller-input problem (4xx class).
func IsInput(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// maxSuggestedWait is the hard ceiling on a provider-suggested rate-limit
// wait. A suggestion above this aborts retrying immediately so the caller
// is never blocked for the provider's full reset window.
const maxSuggestedWait = 5 * time.Second

// retryAfterPattern matches provider messages like "... retry in 55.3s ...".
var retryAfterPattern = regexp.MustCompile(`retry in (\d+\.?\d*)s`)

// Classify converts a raw generative-model error into the LLM error family.
// Rate limits ("rate limit" / "429") become LLMRateLimitError with the
// suggested wait parsed from the message when present; a suggested wait
// above the ceiling becomes a plain LLMError so the retry loop fails fast.
// Timeouts become LLMTimeoutError. Everything else becomes LLMError.
// A nil input returns nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		retryAfter := parseRetryAfter(msg)
		if retryAfter > maxSuggestedWait {
			return &LLMError{Err: fmt.Errorf(
				"rate limit wait too long (%s > %s), aborting retry: %w",
				retryAfter, maxSuggestedWait, err)}
		}
		return &LLMRateLimitError{Err: err, RetryAfter: retryAfter}

	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return &LLMTimeoutError{Err: err}

	default:
		return &LLMError{Err: err}
	}
}

// parseRetryAfter extracts a suggested wait from a lowercased provider
// message, returning 0 when none is present.
func parseRetryAfter(msg string) time.Duration {
	m := retryAfterPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

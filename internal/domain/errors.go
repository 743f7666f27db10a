package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrItemNotFound signals a missing catalog item.
	ErrItemNotFound = errors.New("item not found")
	// ErrMetadataNotFound signals that a tenant has no profiled metadata table yet.
	ErrMetadataNotFound = errors.New("metadata table not found")
	// ErrInvalidSchema signals a malformed catalog or descriptor set.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrUnknownAttribute signals a predicate on an attribute absent from the metadata table.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrChatProvider signals a language-model provider failure.
	ErrChatProvider = errors.New("chat provider error")

	// ErrParseFailed signals an unrecoverable query-parsing failure.
	// There is no structural fallback for arbitrary free text, so this is
	// fatal for the request that triggered it.
	ErrParseFailed = errors.New("query parse failed")
	// ErrSearchUnavailable signals that both retrieval backends failed.
	// Callers must surface this distinctly from an empty result set.
	ErrSearchUnavailable = errors.New("search unavailable")
)

// BatchIndexError reports one embedding batch that exhausted its retries.
// Indexing of the remaining batches continues; the indexer surfaces these
// in its report instead of aborting.
type BatchIndexError struct {
	Field  string
	Offset int
	Size   int
	Err    error
}

func (e BatchIndexError) Error() string {
	return fmt.Sprintf("index batch field=%s offset=%d size=%d: %v", e.Field, e.Offset, e.Size, e.Err)
}

func (e BatchIndexError) Unwrap() error { return e.Err }

package models

import "errors"

var (
	// ErrEmptyCorpus indicates there were no non-empty chunks to index.
	ErrEmptyCorpus = errors.New("empty corpus: no non-empty chunks to index")

	// ErrIndexUnavailable indicates a query against an index that was never built or loaded.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrEmbeddingFailure wraps errors reported by the embedding service.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrCompletionFailure wraps errors reported by the chat-completion service.
	ErrCompletionFailure = errors.New("completion failure")

	// ErrUnreadableSource indicates the input text could not be read or decoded.
	ErrUnreadableSource = errors.New("unreadable source")
)

package model

import "errors"

// Sentinel errors for the taxonomy in spec §7. Call sites wrap these with
// fmt.Errorf("pkg.Func: step: %w", err) so errors.Is keeps working through
// the wrap chain while logs still carry a readable call path.
var (
	ErrInputInvalid        = errors.New("input invalid")
	ErrAuthRequired        = errors.New("authentication required")
	ErrAuthInvalid         = errors.New("authentication invalid")
	ErrRateLimited         = errors.New("rate limited")
	ErrRetrieverUnavailable = errors.New("retriever unavailable")
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrLLMUnavailable       = errors.New("llm provider unavailable")
	ErrBlobMiss             = errors.New("blob not found")
	ErrCacheFault           = errors.New("cache fault")
	ErrMemoryFault          = errors.New("memory store fault")
	ErrTimeout              = errors.New("operation timed out")
	ErrCancelled            = errors.New("request cancelled")
	ErrRequestAborted       = errors.New("request aborted")
	ErrInternal             = errors.New("internal error")
)

// ErrorCode maps a sentinel to the taxonomy code surfaced in ErrorInfo.Code
// and in logs. Unrecognized errors map to "internal_error" with no detail
// leaked to the caller, per §7's "no stack traces" rule.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInputInvalid):
		return "input_invalid"
	case errors.Is(err, ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, ErrAuthInvalid):
		return "auth_invalid"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrRetrieverUnavailable):
		return "retriever_unavailable"
	case errors.Is(err, ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, ErrLLMUnavailable):
		return "llm_unavailable"
	case errors.Is(err, ErrBlobMiss):
		return "blob_miss"
	case errors.Is(err, ErrCacheFault):
		return "cache_fault"
	case errors.Is(err, ErrMemoryFault):
		return "memory_fault"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrRequestAborted):
		return "request_aborted"
	default:
		return "internal_error"
	}
}

// Recoverable reports whether the caller should attempt a fallback path
// (e.g. degraded answer) rather than failing the whole request. Matches the
// "recoverable, fallback, else DegradedAnswer" language of §7.
func Recoverable(err error) bool {
	return errors.Is(err, ErrRetrieverUnavailable) ||
		errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrLLMUnavailable) ||
		errors.Is(err, ErrBlobMiss) ||
		errors.Is(err, ErrCacheFault) ||
		errors.Is(err, ErrMemoryFault)
}

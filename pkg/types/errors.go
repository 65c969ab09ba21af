package types

import "errors"

// Pipeline-wide error kinds, declared for dispatch with errors.Is. No
// adapter or pipeline stage in this module returns or wraps them: the
// stores report failure through their own ErrUnavailable sentinels and
// driver errors.
var (
	// ErrTransientProvider marks a retryable embedding/LLM failure (rate
	// limit, network blip). Handled locally with bounded backoff; escalates
	// to ErrProviderUnavailable after exhaustion.
	ErrTransientProvider = errors.New("transient provider error")

	// ErrProviderUnavailable marks an external dependency (embedding
	// provider, LLM provider, vector store, graph store) as down for this
	// call. Surfaced to the alert processor, which records a partial
	// enrichment and continues.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrMalformedAlert marks an alert missing the fields the pipeline
	// needs to plan or retrieve for it.
	ErrMalformedAlert = errors.New("malformed alert")

	// ErrStoreInconsistency marks a non-fatal storage anomaly, e.g. a graph
	// upsert that dropped an edge because an endpoint could not be merged.
	ErrStoreInconsistency = errors.New("store inconsistency")

	// ErrCancelled marks a stage aborted because shutdown is in progress.
	ErrCancelled = errors.New("cancelled")
)

package finsync

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run on the goroutine
// that produced the event, often while a load is settling.
type Hooks interface {
	// A caller received the result of a fetch started by another caller.
	FetchCoalesced(key string)

	// Load was called while a load for the same collection was in flight and
	// returned without doing anything.
	LoadSkipped(collection string)

	// A page arrived after Reset and was thrown away.
	PageDiscarded(collection string)

	// The backend answered with a non-2xx status.
	HTTPStatus(method, url string, status int)

	// A shared-tier entry was deleted on read.
	// reason ∈ {"corrupt", "class_mismatch", "gen_mismatch", "value_decode", "identity"}
	SharedSelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	SharedSetRejected(storageKey string)

	// GenStore failed to bump a generation while publishing a mutation.
	GenBumpError(storageKey string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FetchCoalesced(string)          {}
func (NopHooks) LoadSkipped(string)             {}
func (NopHooks) PageDiscarded(string)           {}
func (NopHooks) HTTPStatus(string, string, int) {}
func (NopHooks) SharedSelfHeal(string, string)  {}
func (NopHooks) SharedSetRejected(string)       {}
func (NopHooks) GenBumpError(string, error)     {}

package inbox

import "sync"

// Recorder remembers processed event ids so redelivered messages are
// acknowledged without being reapplied. Like the caches it protects, it is
// process-resident: after a restart redeliveries fall through to the
// idempotent apply, which keeps them harmless.
type Recorder struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{seen: map[string]struct{}{}}
}

// Seen reports whether an event id was already applied.
func (r *Recorder) Seen(eventID string) bool {
	if eventID == "" {
		// No id to dedupe on; let the idempotent handler sort it out.
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.seen[eventID]
	return ok
}

// Record marks an event id as applied. Call it only after the apply
// succeeds: an id recorded too early would make redeliveries of a failed
// apply look like duplicates.
func (r *Recorder) Record(eventID string) {
	if eventID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seen[eventID] = struct{}{}
}

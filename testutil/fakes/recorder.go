package fakes

import "sync"

// Recorder collects the names of calls made to the fakes, in order, so tests can assert
// the sequence across capabilities (authorizer, validators, store, hooks).
type Recorder struct {
	calls []string
	mu    sync.Mutex
}

func NewRecorder() *Recorder {
	return &Recorder{calls: make([]string, 0)}
}

// Record appends a call name. A nil Recorder ignores the call.
func (r *Recorder) Record(name string) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, name)
}

// Calls returns a copy of the recorded call names.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]string, len(r.calls))
	copy(calls, r.calls)

	return calls
}

// Count returns how often name was recorded.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, call := range r.calls {
		if call == name {
			count++
		}
	}

	return count
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = r.calls[:0]
}

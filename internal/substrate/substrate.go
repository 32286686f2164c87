// Package substrate abstracts where stage work runs. The orchestrator only
// ever invokes named stages with a JSON payload and a deadline; whether that
// dispatches to an in-process executor or a Temporal worker is wiring.
package substrate

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Result is the outcome of one stage invocation. A failed stage (including a
// stage that ran out of its own time budget) reports OK=false; infrastructure
// faults surface as errors from the invoking call instead.
type Result struct {
	OK     bool            `json:"ok"`
	Output json.RawMessage `json:"output,omitempty"`
	Err    string          `json:"err,omitempty"`
}

// Handle identifies a fire-and-forget invocation.
type Handle struct {
	ID string `json:"id"`
}

// Client dispatches stage invocations.
type Client interface {
	// InvokeAndWait runs the named stage and blocks for its result. The
	// timeout bounds the stage itself; ctx cancellation is a substrate
	// fault and aborts without a Result.
	InvokeAndWait(ctx context.Context, stage string, payload any, timeout time.Duration) (*Result, error)

	// Invoke starts the named stage without waiting for it.
	Invoke(ctx context.Context, stage string, payload any) (Handle, error)

	Close()
}

// Executor is one stage implementation. It must honor ctx; timeouts are
// delivered through it.
type Executor func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Registry maps stage names to executors. Registration happens at startup;
// lookups are concurrent.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Executor)}
}

// Register binds a stage name to its executor, replacing any previous binding.
func (r *Registry) Register(stage string, fn Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[stage] = fn
}

// Get returns the executor for a stage.
func (r *Registry) Get(stage string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.m[stage]
	return fn, ok
}

// Stages lists registered stage names in sorted order.
func (r *Registry) Stages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package tools holds the registry of named, schema-described functions the
// agentic step loop dispatches model-requested calls against.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Executor invokes a tool with a JSON argument value and returns either a
// string result or an error. Executors may themselves register or remove
// tools on the owning Registry; Registry tolerates this by handing readers a
// snapshot rather than a live reference.
type Executor func(ctx context.Context, input json.RawMessage) (string, error)

// Tool is a named, schema-described function exposed to the model.
type Tool struct {
	Name        string
	Description string
	InputSchema any
	Execute     Executor
}

// Result is the outcome of dispatching one Call: either Output holds the
// executor's string result, or Err holds the failure text. Exactly one is
// set. A ToolCallError or a recovered executor panic are both surfaced as Err
// so the model can react on its next turn rather than aborting the run.
type Result struct {
	Output string
	Err    string
}

// Call identifies a single tool invocation requested by the model.
type Call struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Registry holds the current set of tools available to a run. Registry is
// safe for concurrent use: Add appends under a short-held lock, and Execute
// copies out a snapshot of the matching tool before running it so a panicking
// or long-running executor never holds the registry lock.
type Registry struct {
	mu    sync.Mutex
	tools []Tool
}

// NewRegistry builds a Registry seeded with the given tools.
func NewRegistry(initial ...Tool) *Registry {
	r := &Registry{}
	r.tools = append(r.tools, initial...)
	return r
}

// Add appends a tool. Names need not be unique at registration time; lookup
// returns the first match, so callers are expected to keep names distinct.
func (r *Registry) Add(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = append(r.tools, t)
}

// Remove drops every tool with the given name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.tools[:0]
	for _, t := range r.tools {
		if t.Name != name {
			kept = append(kept, t)
		}
	}
	r.tools = kept
}

// Snapshot returns the current tool list as Tool values suitable for
// handing to a provider adapter. The returned slice is a copy.
func (r *Registry) Snapshot() []Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

func (r *Registry) find(name string) (Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Execute finds the tool named in call.Name and invokes it with call.Input.
// A missing tool, an executor error, or a panic inside the executor all
// become a Result with Err set rather than propagating — callers always get
// a Result to append as a Tool message. The registry's own lock is held only
// long enough to copy out the matching tool, so a slow or panicking executor
// never blocks concurrent Add/Remove/Execute calls against other tools.
func (r *Registry) Execute(ctx context.Context, call Call) Result {
	t, ok := r.find(call.Name)
	if !ok {
		return Result{Err: "Tool not found"}
	}
	return safeInvoke(ctx, t, call.Input)
}

func safeInvoke(ctx context.Context, t Tool, input json.RawMessage) (result Result) {
	defer func() {
		if p := recover(); p != nil {
			result = Result{Err: fmt.Sprintf("tool %q panicked: %v", t.Name, p)}
		}
	}()
	if t.Execute == nil {
		return Result{Err: fmt.Sprintf("tool %q has no executor", t.Name)}
	}
	out, err := t.Execute(ctx, input)
	if err != nil {
		return Result{Err: err.Error()}
	}
	return Result{Output: out}
}

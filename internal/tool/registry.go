// Package tool provides the validated catalog of capabilities an agent run
// may invoke.
//
// The registry maps tool names to typed executors with JSON Schema validated
// parameters. It is the single source of truth for what is dispatchable: the
// manifest handed to the decision provider is generated from the same
// entries that the executor resolves against, so the two can never drift
// apart.
//
// Executors registered here must be plain, single-shot functions. They must
// not call back into a decision provider or start their own iteration loops;
// only the top-level orchestrator drives decisions.
package tool

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/fyrsmithlabs/agentd/internal/contextstore"
)

// Errors for registry operations.
var (
	ErrDuplicateTool  = errors.New("tool already registered")
	ErrInvalidSchema  = errors.New("invalid parameter schema")
	ErrToolNotFound   = errors.New("tool not found")
	ErrInvalidName    = errors.New("invalid tool name: must be alphanumeric with hyphens/underscores")
	ErrRegistryFrozen = errors.New("registry is frozen")
)

// namePattern validates tool names.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ExecFunc is a tool executor. Arguments have already been validated against
// the tool's parameter schema before the executor is invoked.
type ExecFunc func(ctx context.Context, args map[string]any) (any, error)

// Definition describes a registrable tool.
type Definition struct {
	// Name uniquely identifies the tool within a registry.
	Name string

	// Description tells the decision provider what the tool does.
	Description string

	// Category determines where results accumulate in the context store.
	Category contextstore.Category

	// Schema is the JSON Schema for the tool's arguments.
	Schema *jsonschema.Schema

	// Execute runs the tool.
	Execute ExecFunc
}

// ManifestEntry is the read-only description of a tool exposed to the
// decision provider.
type ManifestEntry struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Schema      *jsonschema.Schema `json:"parameters"`
}

// entry is a registered tool with its pre-resolved schema.
type entry struct {
	def      Definition
	resolved *jsonschema.Resolved
}

// Registry holds the tool catalog for a task run.
//
// Registration happens at setup time; Freeze marks the registry immutable
// for the duration of the run. Lookup is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*entry
	order  []string
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*entry),
	}
}

// Register adds a tool to the registry.
//
// It fails with ErrDuplicateTool if the name is taken, ErrInvalidSchema if
// the parameter schema does not resolve, and ErrRegistryFrozen after Freeze.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" || !namePattern.MatchString(def.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, def.Name)
	}
	if def.Execute == nil {
		return fmt.Errorf("tool %q: executor must not be nil", def.Name)
	}
	if def.Schema == nil {
		return fmt.Errorf("tool %q: %w: schema must not be nil", def.Name, ErrInvalidSchema)
	}
	if def.Category == "" {
		def.Category = contextstore.CategoryResearch
	}

	resolved, err := def.Schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool %q: %w: %v", def.Name, ErrInvalidSchema, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	if _, ok := r.tools[def.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, def.Name)
	}

	r.tools[def.Name] = &entry{def: def, resolved: resolved}
	r.order = append(r.order, def.Name)
	return nil
}

// Freeze makes the registry immutable. Further Register calls fail.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Resolve returns the definition for a tool name.
func (r *Registry) Resolve(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return e.def, nil
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// ValidateArgs checks an argument payload against the tool's schema.
func (r *Registry) ValidateArgs(name string, args map[string]any) error {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := e.resolved.Validate(args); err != nil {
		return fmt.Errorf("tool %q: arguments: %w", name, err)
	}
	return nil
}

// Manifest returns the ordered tool descriptions for the decision provider.
// Order matches registration order so replayed histories stay stable.
func (r *Registry) Manifest() []ManifestEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	manifest := make([]ManifestEntry, 0, len(r.order))
	for _, name := range r.order {
		def := r.tools[name].def
		manifest = append(manifest, ManifestEntry{
			Name:        def.Name,
			Description: def.Description,
			Schema:      def.Schema,
		})
	}
	return manifest
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

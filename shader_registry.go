package lumen

import (
	"fmt"

	"github.com/lumen3d/lumen/shaders"
)

type LoadState int

const (
	NotRequested LoadState = iota
	Pending
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case NotRequested:
		return "NotRequested"
	case Pending:
		return "Pending"
	case Loaded:
		return "Loaded"
	case Failed:
		return "Failed"
	}
	return "unknown"
}

// Built-in shader identifiers resolve against embedded sources instead of the
// asset source collaborator.
const (
	FallbackShaderID ShaderID = "builtin/fallback.wgsl"
	BasicShaderID    ShaderID = "builtin/basic.wgsl"
)

func builtinSource(id ShaderID) (string, bool) {
	switch id {
	case FallbackShaderID:
		return shaders.FallbackWGSL, true
	case BasicShaderID:
		return shaders.BasicWGSL, true
	}
	return "", false
}

// ShaderEntry tracks one shader program through its load lifecycle. Entries
// are created on first request and only torn down with the registry.
type ShaderEntry struct {
	ID     ShaderID
	State  LoadState
	Source string
	Module ShaderModule
	Slots  []BindingSlot
	Err    error
}

// ShaderRegistry owns shader program handles keyed by identifier. All
// mutation happens on the frame thread: Request marks an entry wanted and
// hands the identifier to the loader; the loader's PollCompletions calls
// applyLoaded/applyFailed with the results.
type ShaderRegistry struct {
	log      Logger
	dev      Device
	entries  map[ShaderID]*ShaderEntry
	dispatch func(ShaderID)
}

// NewShaderRegistry compiles the fallback shader eagerly so it is present
// before any other shader is requested. A fallback that fails to compile is a
// broken build, not a runtime condition, so it panics.
func NewShaderRegistry(dev Device, log Logger) *ShaderRegistry {
	if log == nil {
		log = NewNopLogger()
	}
	r := &ShaderRegistry{
		log:     log,
		dev:     dev,
		entries: make(map[ShaderID]*ShaderEntry),
	}
	module, err := dev.CompileShader(string(FallbackShaderID), shaders.FallbackWGSL)
	if err != nil {
		panic(fmt.Sprintf("lumen: fallback shader failed to compile: %v", err))
	}
	r.entries[FallbackShaderID] = &ShaderEntry{
		ID:     FallbackShaderID,
		State:  Loaded,
		Source: shaders.FallbackWGSL,
		Module: module,
		Slots:  parseBindingSlots(shaders.FallbackWGSL),
	}
	return r
}

// SetDispatch wires the loader's shader request queue. Must be called before
// the first Request for a non-builtin shader.
func (r *ShaderRegistry) SetDispatch(fn func(ShaderID)) {
	r.dispatch = fn
}

// Request marks a shader wanted. Idempotent while the shader is Pending or
// Loaded; a Failed entry is re-dispatched, everything else is a no-op.
func (r *ShaderRegistry) Request(id ShaderID) {
	if entry, ok := r.entries[id]; ok {
		if entry.State == Pending || entry.State == Loaded {
			return
		}
		entry.State = Pending
		entry.Err = nil
	} else {
		r.entries[id] = &ShaderEntry{ID: id, State: Pending}
	}

	if source, ok := builtinSource(id); ok {
		// Built-ins skip the loader; they cannot fail to read.
		if err := r.applyLoaded(id, source); err != nil {
			r.applyFailed(id, err)
		}
		return
	}
	if r.dispatch == nil {
		panic("lumen: shader registry has no loader attached")
	}
	r.dispatch(id)
}

// Get returns the compiled module for a Loaded shader.
func (r *ShaderRegistry) Get(id ShaderID) (ShaderModule, bool) {
	entry, ok := r.entries[id]
	if !ok || entry.State != Loaded {
		return nil, false
	}
	return entry.Module, true
}

// Entry returns the tracked entry for an identifier. Read-only for callers.
func (r *ShaderRegistry) Entry(id ShaderID) (*ShaderEntry, bool) {
	entry, ok := r.entries[id]
	return entry, ok
}

func (r *ShaderRegistry) State(id ShaderID) LoadState {
	if entry, ok := r.entries[id]; ok {
		return entry.State
	}
	return NotRequested
}

// Fallback returns the always-available error shader entry.
func (r *ShaderRegistry) Fallback() *ShaderEntry {
	return r.entries[FallbackShaderID]
}

// Reload re-requests a shader that already completed, for hot reload. The old
// module stays in use until the new source arrives through PollCompletions.
func (r *ShaderRegistry) Reload(id ShaderID) {
	entry, ok := r.entries[id]
	if !ok || id == FallbackShaderID {
		return
	}
	entry.State = Pending
	entry.Err = nil
	if source, ok := builtinSource(id); ok {
		if err := r.applyLoaded(id, source); err != nil {
			r.applyFailed(id, err)
		}
		return
	}
	r.dispatch(id)
}

// applyLoaded installs freshly read source: compiles the module, derives the
// binding slots, and replaces any previous program. Called only from the
// frame thread via PollCompletions (or inline for built-ins).
func (r *ShaderRegistry) applyLoaded(id ShaderID, source string) error {
	entry, ok := r.entries[id]
	if !ok {
		return ErrUnknownShader
	}
	module, err := r.dev.CompileShader(string(id), source)
	if err != nil {
		return fmt.Errorf("compile %q: %w", id, err)
	}
	if entry.Module != nil {
		entry.Module.Release()
	}
	entry.Source = source
	entry.Module = module
	entry.Slots = parseBindingSlots(source)
	entry.State = Loaded
	entry.Err = nil
	r.log.Debugf("shader %q loaded (%d binding slots)", id, len(entry.Slots))
	return nil
}

// applyFailed records a load or compile failure. The entry stays resident so
// the failure is not retried until the caller re-requests.
func (r *ShaderRegistry) applyFailed(id ShaderID, err error) {
	entry, ok := r.entries[id]
	if !ok {
		return
	}
	entry.State = Failed
	entry.Err = err
	r.log.Warnf("shader %q failed: %v", id, err)
}

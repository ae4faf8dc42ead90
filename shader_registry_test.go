package lumen

import (
	"testing"
)

func TestRegistryFallbackPresent(t *testing.T) {
	dev := &fakeDevice{}
	reg := NewShaderRegistry(dev, nil)

	fb := reg.Fallback()
	if fb == nil || fb.State != Loaded {
		t.Fatalf("fallback must be Loaded before any request, got %+v", fb)
	}
	if _, ok := reg.Get(FallbackShaderID); !ok {
		t.Fatalf("fallback module missing")
	}
}

func TestRegistryRequestIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	reg := NewShaderRegistry(dev, nil)

	var dispatched []ShaderID
	reg.SetDispatch(func(id ShaderID) { dispatched = append(dispatched, id) })

	reg.Request("shaders/pbr.wgsl")
	reg.Request("shaders/pbr.wgsl")
	reg.Request("shaders/pbr.wgsl")
	if len(dispatched) != 1 {
		t.Fatalf("pending request must coalesce, dispatched %d times", len(dispatched))
	}
	if reg.State("shaders/pbr.wgsl") != Pending {
		t.Fatalf("state = %v, want Pending", reg.State("shaders/pbr.wgsl"))
	}

	if err := reg.applyLoaded("shaders/pbr.wgsl", "@vertex fn vs_main() {}"); err != nil {
		t.Fatalf("applyLoaded: %v", err)
	}
	reg.Request("shaders/pbr.wgsl")
	if len(dispatched) != 1 {
		t.Fatalf("request of a Loaded shader must be a no-op")
	}
}

func TestRegistryBuiltinSkipsLoader(t *testing.T) {
	dev := &fakeDevice{}
	reg := NewShaderRegistry(dev, nil)
	reg.SetDispatch(func(ShaderID) { t.Fatalf("builtin shader must not hit the loader") })

	reg.Request(BasicShaderID)
	if reg.State(BasicShaderID) != Loaded {
		t.Fatalf("builtin shader resolves inline, state = %v", reg.State(BasicShaderID))
	}
}

func TestRegistryFailureRecordedNotRetried(t *testing.T) {
	dev := &fakeDevice{}
	reg := NewShaderRegistry(dev, nil)

	var dispatched int
	reg.SetDispatch(func(ShaderID) { dispatched++ })

	id := ShaderID("shaders/bad.wgsl")
	reg.Request(id)
	if err := reg.applyLoaded(id, "BROKEN {"); err != nil {
		reg.applyFailed(id, err)
	}

	entry, _ := reg.Entry(id)
	if entry.State != Failed || entry.Err == nil {
		t.Fatalf("failure must be recorded on the entry: %+v", entry)
	}
	if _, ok := reg.Get(id); ok {
		t.Fatalf("failed shader must not resolve")
	}

	// Failed entries are only retried on an explicit re-request.
	if dispatched != 1 {
		t.Fatalf("dispatched %d, want 1", dispatched)
	}
	reg.Request(id)
	if dispatched != 2 || reg.State(id) != Pending {
		t.Fatalf("re-request of a Failed entry must dispatch again")
	}
}

func TestRegistryReloadReplacesModule(t *testing.T) {
	dev := &fakeDevice{}
	reg := NewShaderRegistry(dev, nil)
	reg.SetDispatch(func(ShaderID) {})

	id := ShaderID("shaders/hot.wgsl")
	reg.Request(id)
	if err := reg.applyLoaded(id, "@vertex fn vs_main() {}"); err != nil {
		t.Fatalf("applyLoaded: %v", err)
	}
	old, _ := reg.Get(id)

	reg.Reload(id)
	entry, _ := reg.Entry(id)
	if entry.State != Pending {
		t.Fatalf("reload must mark the entry Pending, got %v", entry.State)
	}
	// The old module is kept until the new source compiles; dependent
	// pipelines stay renderable through their own cache meanwhile.
	if entry.Module != old {
		t.Fatalf("module must survive until reload completes")
	}

	if err := reg.applyLoaded(id, "@group(0) @binding(0) var t_diffuse: texture_2d<f32>;"); err != nil {
		t.Fatalf("applyLoaded: %v", err)
	}
	if !old.(*fakeModule).released {
		t.Fatalf("replaced module must be released")
	}
	if len(entry.Slots) != 1 {
		t.Fatalf("slots must be re-derived on reload: %+v", entry.Slots)
	}
}

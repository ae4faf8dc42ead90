package lumen

import "errors"

// ShaderID is the stable key naming a shader program across all caches.
// By convention it is the shader's resource path, e.g. "shaders/pbr.wgsl".
type ShaderID string

var (
	// ErrNotReady signals that a cache dependency (shader module or layout)
	// has not finished loading. Callers substitute the fallback pipeline for
	// the frame instead of blocking.
	ErrNotReady = errors.New("lumen: resource not ready")

	// ErrUnknownShader is returned for lookups of identifiers that were
	// never requested.
	ErrUnknownShader = errors.New("lumen: unknown shader")

	// ErrBindingMismatch is returned when a material's texture slots do not
	// satisfy its shader's layout.
	ErrBindingMismatch = errors.New("lumen: material does not match shader binding layout")
)

type ShaderStage uint32

const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
)

type BindingKind int

const (
	BindingUniformBuffer BindingKind = iota
	BindingStorageBuffer
	BindingTexture
	BindingSampler
)

func (k BindingKind) String() string {
	switch k {
	case BindingUniformBuffer:
		return "uniform"
	case BindingStorageBuffer:
		return "storage"
	case BindingTexture:
		return "texture"
	case BindingSampler:
		return "sampler"
	}
	return "unknown"
}

// BindingSlot is one declared resource binding in a shader's interface.
type BindingSlot struct {
	Group      uint32
	Binding    uint32
	Name       string
	Kind       BindingKind
	Visibility ShaderStage
}

// LayoutDescriptor is the binding shape required by one shader. Derived once
// per ShaderID from the shader's declared interface and immutable afterwards;
// hot reload replaces the whole descriptor and bumps Version.
type LayoutDescriptor struct {
	Shader  ShaderID
	Version uint64
	Slots   []BindingSlot
}

// MaterialGroup returns the bind group index materials fill: the lowest group
// containing a sampled texture, or 0 when the shader samples nothing.
func (d *LayoutDescriptor) MaterialGroup() uint32 {
	found := false
	var group uint32
	for _, s := range d.Slots {
		if s.Kind != BindingTexture {
			continue
		}
		if !found || s.Group < group {
			group = s.Group
			found = true
		}
	}
	return group
}

// MaterialSlots returns the slots of the material group, in binding order.
func (d *LayoutDescriptor) MaterialSlots() []BindingSlot {
	group := d.MaterialGroup()
	var slots []BindingSlot
	for _, s := range d.Slots {
		if s.Group == group {
			slots = append(slots, s)
		}
	}
	return slots
}

// Opaque GPU object handles. The render core never inspects these; it only
// stores them and hands them back to the Device or a PassEncoder.
type (
	ShaderModule interface{ Release() }
	Pipeline     interface{ Release() }
	BindGroup    interface{ Release() }
	Texture      interface{ Release() }
	Sampler      interface{ Release() }
	MeshBuffers  interface{ Release() }
)

// BoundResource pairs a layout slot with the GPU resource that fills it.
type BoundResource struct {
	Slot    BindingSlot
	Texture Texture
	Sampler Sampler
}

// Device is the GPU API collaborator. Implementations compile shader modules,
// build pipelines from (module, layout) and binding objects from
// (layout, resources). See gpu_wgpu.go for the wgpu-backed implementation.
type Device interface {
	CompileShader(label string, source string) (ShaderModule, error)
	CreatePipeline(label string, module ShaderModule, layout *LayoutDescriptor, vertexType any) (Pipeline, error)
	CreateBindGroup(label string, pipeline Pipeline, layout *LayoutDescriptor, resources []BoundResource) (BindGroup, error)
	CreateTexture(label string, width, height uint32, texels []byte) (Texture, error)
	CreateSampler(label string) (Sampler, error)
	CreateMeshBuffers(label string, vertices []ModelVertex, indices []uint32) (MeshBuffers, error)
}

// PassEncoder is the slice of a render pass the batcher needs: pipeline and
// bind group selection plus indexed draws. The wgpu encoder satisfies it via
// the adapter in gpu_wgpu.go; tests record calls through a fake.
type PassEncoder interface {
	SetPipeline(p Pipeline)
	SetBindGroup(group uint32, bg BindGroup)
	DrawMesh(m *Mesh)
}

package lumen

import "fmt"

// WhiteTextureID names the built-in 1x1 white texture substituted for
// materials that declare no diffuse map.
const WhiteTextureID TextureID = "builtin/white"

// DefaultMaterialName is the material substituted for unresolvable canonical
// references and for meshes that declare no material.
const DefaultMaterialName = "default"

type RendererConfig struct {
	Device    Device
	Source    Source
	Scheduler Scheduler
	Logger    Logger

	// DefaultShader is the shader canonical materials are created with.
	// Zero value means the built-in textured shader.
	DefaultShader ShaderID

	// VertexType overrides the vertex layout pipelines are built with.
	// Zero value means ModelVertex{}.
	VertexType any
}

// Renderer owns the four caches — shader registry, layout cache, pipeline
// cache, model/material tables — plus the loader feeding them. It is the
// render subsystem's explicit state: nothing here is a package global, and
// all mutation funnels through PollCompletions and the Request/Edit entry
// points on the frame thread.
type Renderer struct {
	log Logger
	dev Device

	Shaders   *ShaderRegistry
	Layouts   *LayoutCache
	Pipelines *PipelineCache
	Textures  *TextureCache
	Models    *ModelTable

	loader          *Loader
	defaultShader   ShaderID
	defaultMaterial *Material
}

func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	log := cfg.Logger
	if log == nil {
		log = NewNopLogger()
	}
	if cfg.Device == nil {
		return nil, fmt.Errorf("lumen: RendererConfig.Device is required")
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewWorkerScheduler(2)
	}
	defaultShader := cfg.DefaultShader
	if defaultShader == "" {
		defaultShader = BasicShaderID
	}

	r := &Renderer{
		log:           log,
		dev:           cfg.Device,
		defaultShader: defaultShader,
	}
	r.Shaders = NewShaderRegistry(cfg.Device, log)
	r.Layouts = NewLayoutCache(r.Shaders, log)
	r.Pipelines = NewPipelineCache(cfg.Device, r.Shaders, r.Layouts, cfg.VertexType, log)
	r.Textures = NewTextureCache(cfg.Device, log)
	r.Models = NewModelTable(log)
	r.loader = NewLoader(cfg.Source, cfg.Scheduler, log)
	r.Shaders.SetDispatch(r.loader.RequestShader)

	if _, err := r.Textures.Upload(WhiteTextureID, &decodedTexture{
		width:  1,
		height: 1,
		texels: []byte{255, 255, 255, 255},
	}); err != nil {
		return nil, err
	}

	r.Shaders.Request(defaultShader)
	r.defaultMaterial = NewInstanceMaterial(DefaultMaterialName, defaultShader,
		map[string]TextureID{diffuseSlot: WhiteTextureID})

	return r, nil
}

// RequestShader marks a shader wanted; idempotent while pending or loaded.
func (r *Renderer) RequestShader(id ShaderID) {
	r.Shaders.Request(id)
}

// RequestModel schedules a model load, or a reload if the model is already
// resident. Duplicate in-flight requests coalesce.
func (r *Renderer) RequestModel(path string) {
	r.loader.RequestModel(path)
}

// DefaultMaterial is the always-renderable substitute material.
func (r *Renderer) DefaultMaterial() *Material {
	return r.defaultMaterial
}

// Loads reports how many requests are still in flight.
func (r *Renderer) Loads() int {
	return r.loader.InFlight()
}

// PollCompletions drains all loads completed so far and merges them into the
// caches, in completion order. This is the single writer for shared cache
// state; call it once per frame before draw submission. It never blocks on
// in-flight work.
func (r *Renderer) PollCompletions() {
	for _, res := range r.loader.Drain() {
		switch res.Request.Kind {
		case KindShader:
			r.applyShader(res)
		case KindModel:
			r.applyModel(res)
		}
	}
}

func (r *Renderer) applyShader(res LoadResult) {
	id := ShaderID(res.Request.Path)
	if res.Err != nil {
		r.Shaders.applyFailed(id, res.Err)
		return
	}
	if err := r.Shaders.applyLoaded(id, res.ShaderSource); err != nil {
		r.Shaders.applyFailed(id, err)
		return
	}
	// The interface may have changed shape (hot reload). Dropping the
	// layout bumps its version on next derivation, which in turn makes
	// every dependent material binding rebuild lazily.
	r.Layouts.Invalidate(id)
	r.Pipelines.Invalidate(id)
}

func (r *Renderer) applyModel(res LoadResult) {
	if res.Err != nil {
		r.log.Warnf("model %q failed: %v", res.Request.Path, res.Err)
		return
	}
	payload := res.Model

	// Meshes may reference materials no library defined; synthesize empty
	// definitions so their keys resolve and they render with the white
	// texture instead of dangling.
	declared := make(map[string]bool, len(payload.def.Materials))
	for _, md := range payload.def.Materials {
		declared[md.Name] = true
	}
	for _, md := range payload.def.Meshes {
		if md.MaterialName != "" && !declared[md.MaterialName] {
			declared[md.MaterialName] = true
			payload.def.Materials = append(payload.def.Materials, materialDef{Name: md.MaterialName})
		}
	}

	for id, decoded := range payload.textures {
		if _, err := r.Textures.Upload(id, decoded); err != nil {
			r.log.Warnf("%v", err)
		}
	}

	meshes := make([]*Mesh, 0, len(payload.def.Meshes))
	for _, md := range payload.def.Meshes {
		key := DefaultMaterialName
		if md.MaterialName != "" {
			key = payload.def.Name + "/" + md.MaterialName
		}
		mesh := &Mesh{
			Name:        md.Name,
			Vertices:    md.Vertices,
			Indices:     md.Indices,
			MaterialKey: key,
		}
		gpu, err := r.dev.CreateMeshBuffers(mesh.Name, mesh.Vertices, mesh.Indices)
		if err != nil {
			r.log.Warnf("mesh buffers for %q: %v", mesh.Name, err)
		} else {
			mesh.GPU = gpu
		}
		meshes = append(meshes, mesh)
	}

	model := r.Models.apply(payload.def, meshes, r.defaultShader)
	for _, mat := range model.Materials {
		if _, ok := mat.Texture(diffuseSlot); !ok {
			mat.SetTexture(diffuseSlot, WhiteTextureID)
		}
	}
}

// ResolveBinding (re)builds a material's GPU binding object against its
// shader's current layout. Idempotent while the material's shader, textures,
// and the layout version are unchanged: repeated calls return the same
// object. Returns ErrNotReady while the shader pipeline is unavailable and
// ErrBindingMismatch when the material's textures cannot satisfy the layout;
// in both cases the caller renders the material with the fallback pipeline.
func (r *Renderer) ResolveBinding(m *Material) (BindGroup, error) {
	layout, err := r.Layouts.GetOrCreate(m.shader)
	if err != nil {
		return nil, err
	}
	if m.binding != nil && m.bindingRev == m.rev && m.bindingLayout == layout.Version {
		return m.binding, nil
	}

	pipeline, err := r.Pipelines.GetOrCreate(m.shader)
	if err != nil {
		return nil, err
	}

	var resources []BoundResource
	for _, slot := range layout.MaterialSlots() {
		switch slot.Kind {
		case BindingTexture:
			id, ok := m.textures[slot.Name]
			if !ok {
				return nil, fmt.Errorf("material %q: no texture for slot %q: %w", m.Name, slot.Name, ErrBindingMismatch)
			}
			tex, ok := r.Textures.Lookup(id)
			if !ok {
				return nil, fmt.Errorf("material %q: texture %q not resident: %w", m.Name, id, ErrBindingMismatch)
			}
			resources = append(resources, BoundResource{Slot: slot, Texture: tex})
		case BindingSampler:
			sampler, err := r.Textures.DefaultSampler()
			if err != nil {
				return nil, err
			}
			resources = append(resources, BoundResource{Slot: slot, Sampler: sampler})
		default:
			return nil, fmt.Errorf("material %q: slot %q is a %s, not bindable from a material: %w",
				m.Name, slot.Name, slot.Kind, ErrBindingMismatch)
		}
	}

	bg, err := r.dev.CreateBindGroup(m.Name, pipeline, layout, resources)
	if err != nil {
		return nil, fmt.Errorf("bind group for material %q: %w", m.Name, err)
	}
	if m.binding != nil {
		m.binding.Release()
	}
	m.binding = bg
	m.bindingRev = m.rev
	m.bindingLayout = layout.Version
	return bg, nil
}

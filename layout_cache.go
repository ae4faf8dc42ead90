package lumen

// LayoutCache owns one LayoutDescriptor per shader identifier, derived from
// the shader's declared binding slots the first time that shader is needed.
// Descriptors are never mutated in place: a hot reload invalidates the entry
// and the next GetOrCreate derives a fresh descriptor with a higher version,
// which is what forces dependent pipelines and material bindings to rebuild.
type LayoutCache struct {
	log      Logger
	registry *ShaderRegistry
	layouts  map[ShaderID]*LayoutDescriptor
	versions map[ShaderID]uint64
}

func NewLayoutCache(registry *ShaderRegistry, log Logger) *LayoutCache {
	if log == nil {
		log = NewNopLogger()
	}
	return &LayoutCache{
		log:      log,
		registry: registry,
		layouts:  make(map[ShaderID]*LayoutDescriptor),
		versions: make(map[ShaderID]uint64),
	}
}

// GetOrCreate returns the cached descriptor for a shader, deriving it on
// first call. Returns ErrNotReady while the shader's interface is unknown
// (not yet Loaded); the caller must not build a pipeline yet.
func (c *LayoutCache) GetOrCreate(id ShaderID) (*LayoutDescriptor, error) {
	if layout, ok := c.layouts[id]; ok {
		return layout, nil
	}
	entry, ok := c.registry.Entry(id)
	if !ok {
		return nil, ErrUnknownShader
	}
	if entry.State != Loaded {
		return nil, ErrNotReady
	}

	c.versions[id]++
	layout := &LayoutDescriptor{
		Shader:  id,
		Version: c.versions[id],
		Slots:   append([]BindingSlot(nil), entry.Slots...),
	}
	c.layouts[id] = layout
	c.log.Debugf("layout for %q derived: %d slots, version %d", id, len(layout.Slots), layout.Version)
	return layout, nil
}

// Version returns the current descriptor version for a shader, or 0 when no
// descriptor has been derived yet. Material bindings compare against this to
// detect stale binding objects after a reload.
func (c *LayoutCache) Version(id ShaderID) uint64 {
	if layout, ok := c.layouts[id]; ok {
		return layout.Version
	}
	return 0
}

// Invalidate drops the descriptor for a shader whose interface changed. The
// version counter survives so the replacement descriptor is distinguishable.
func (c *LayoutCache) Invalidate(id ShaderID) {
	delete(c.layouts, id)
}

package lumen

import "fmt"

// PipelineCache owns one render pipeline per shader identifier, built from
// the registry's compiled module and the layout cache's descriptor. Built
// pipelines are reused by every material sharing the shader, which bounds
// pipeline switches per frame to the number of distinct shaders, not the
// number of materials.
type PipelineCache struct {
	dev        Device
	log        Logger
	registry   *ShaderRegistry
	layouts    *LayoutCache
	vertexType any
	pipelines  map[ShaderID]Pipeline
}

func NewPipelineCache(dev Device, registry *ShaderRegistry, layouts *LayoutCache, vertexType any, log Logger) *PipelineCache {
	if log == nil {
		log = NewNopLogger()
	}
	if vertexType == nil {
		vertexType = ModelVertex{}
	}
	return &PipelineCache{
		dev:        dev,
		log:        log,
		registry:   registry,
		layouts:    layouts,
		vertexType: vertexType,
		pipelines:  make(map[ShaderID]Pipeline),
	}
}

// GetOrCreate returns the pipeline for a shader, building it on first use.
// Returns ErrNotReady while the shader or its layout is still loading, and
// the recorded failure for a Failed shader; in both cases the caller renders
// with the fallback pipeline for this frame instead of stalling.
func (c *PipelineCache) GetOrCreate(id ShaderID) (Pipeline, error) {
	if p, ok := c.pipelines[id]; ok {
		return p, nil
	}

	entry, ok := c.registry.Entry(id)
	if !ok {
		return nil, ErrUnknownShader
	}
	switch entry.State {
	case Failed:
		return nil, fmt.Errorf("shader %q failed: %w", id, entry.Err)
	case Loaded:
	default:
		return nil, ErrNotReady
	}

	layout, err := c.layouts.GetOrCreate(id)
	if err != nil {
		return nil, err
	}

	p, err := c.dev.CreatePipeline(string(id), entry.Module, layout, c.vertexType)
	if err != nil {
		return nil, fmt.Errorf("pipeline for %q: %w", id, err)
	}
	c.pipelines[id] = p
	c.log.Debugf("pipeline for %q built", id)
	return p, nil
}

// Invalidate releases the pipeline for a shader whose module or layout was
// replaced. The next GetOrCreate rebuilds it from current state.
func (c *PipelineCache) Invalidate(id ShaderID) {
	if p, ok := c.pipelines[id]; ok {
		p.Release()
		delete(c.pipelines, id)
	}
}

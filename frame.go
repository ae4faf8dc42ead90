package lumen

import (
	"errors"
	"sort"
)

// Drawable pairs a mesh with the material it renders with for one frame.
type Drawable struct {
	Mesh     *Mesh
	Material *Material
}

// DrawStats reports what a batch submission did, mostly for tests and debug
// overlays.
type DrawStats struct {
	Draws            int
	PipelineSwitches int
	FallbackDraws    int
}

type resolvedDraw struct {
	mesh     *Mesh
	shader   ShaderID
	pipeline Pipeline
	binding  BindGroup
	group    uint32
}

// DrawBatch submits drawables batched by shader identifier: drawables are
// sorted so the bound pipeline switches at most once per distinct shader in
// the batch. Drawables whose shader, pipeline, or material binding is not
// available render with the fallback pipeline instead of stalling or being
// dropped. The submission order within a shader batch is stable.
func (r *Renderer) DrawBatch(pass PassEncoder, drawables []Drawable) DrawStats {
	var stats DrawStats

	fallback, err := r.Pipelines.GetOrCreate(FallbackShaderID)
	if err != nil {
		// Cannot happen after construction; the fallback entry is loaded
		// before anything else.
		panic("lumen: fallback pipeline unavailable: " + err.Error())
	}

	resolved := make([]resolvedDraw, 0, len(drawables))
	for _, d := range drawables {
		if d.Mesh == nil || d.Material == nil {
			continue
		}
		rd := resolvedDraw{mesh: d.Mesh}

		pipeline, perr := r.Pipelines.GetOrCreate(d.Material.Shader())
		var binding BindGroup
		if perr == nil {
			binding, err = r.ResolveBinding(d.Material)
			if err != nil {
				if !errors.Is(err, ErrNotReady) {
					r.log.Debugf("material %q: %v", d.Material.Name, err)
				}
				perr = err
			}
		}

		if perr != nil {
			rd.shader = FallbackShaderID
			rd.pipeline = fallback
			stats.FallbackDraws++
		} else {
			rd.shader = d.Material.Shader()
			rd.pipeline = pipeline
			rd.binding = binding
			if layout, lerr := r.Layouts.GetOrCreate(rd.shader); lerr == nil {
				rd.group = layout.MaterialGroup()
			}
		}
		resolved = append(resolved, rd)
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].shader < resolved[j].shader
	})

	var bound ShaderID
	first := true
	for _, rd := range resolved {
		if first || rd.shader != bound {
			pass.SetPipeline(rd.pipeline)
			bound = rd.shader
			first = false
			stats.PipelineSwitches++
		}
		if rd.binding != nil {
			pass.SetBindGroup(rd.group, rd.binding)
		}
		pass.DrawMesh(rd.mesh)
		stats.Draws++
	}
	return stats
}

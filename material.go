package lumen

import (
	"strings"

	"github.com/google/uuid"
)

type Provenance int

const (
	// ProvenanceCanonical marks a material owned by a loaded model's table.
	// Canonical materials are refreshed in place when the model reloads.
	ProvenanceCanonical Provenance = iota

	// ProvenanceInstance marks an independent user-edited copy. Instances
	// are persisted directly in world state and never touched by reloads.
	ProvenanceInstance
)

// Material describes what a drawable renders with: a shader identifier and a
// mapping from texture slot names (the shader's binding variable names, e.g.
// "t_diffuse") to texture resources. The derived GPU binding object is cached
// on the material and rebuilt lazily when shader, textures, or the shader's
// layout version change.
type Material struct {
	Name        string
	provenance  Provenance
	sourceModel string

	shader   ShaderID
	textures map[string]TextureID
	rev      uint64

	binding       BindGroup
	bindingRev    uint64
	bindingLayout uint64
}

func NewCanonicalMaterial(model, name string, shader ShaderID, textures map[string]TextureID) *Material {
	return &Material{
		Name:        name,
		provenance:  ProvenanceCanonical,
		sourceModel: model,
		shader:      shader,
		textures:    cloneTextures(textures),
		rev:         1,
	}
}

func NewInstanceMaterial(name string, shader ShaderID, textures map[string]TextureID) *Material {
	return &Material{
		Name:       name,
		provenance: ProvenanceInstance,
		shader:     shader,
		textures:   cloneTextures(textures),
		rev:        1,
	}
}

func (m *Material) Provenance() Provenance { return m.provenance }
func (m *Material) SourceModel() string    { return m.sourceModel }
func (m *Material) Shader() ShaderID       { return m.shader }

// Key returns the cache key of a canonical material ("model/name"). Instance
// materials key by their own name.
func (m *Material) Key() string {
	if m.provenance == ProvenanceCanonical {
		return m.sourceModel + "/" + m.Name
	}
	return m.Name
}

// Textures returns a copy of the slot mapping.
func (m *Material) Textures() map[string]TextureID {
	return cloneTextures(m.textures)
}

func (m *Material) Texture(slot string) (TextureID, bool) {
	id, ok := m.textures[slot]
	return id, ok
}

// SetShader switches the material to another shader and invalidates the
// binding object. Canonical materials are owned by their model; external
// callers edit them through Edit instead.
func (m *Material) SetShader(id ShaderID) {
	if m.shader == id {
		return
	}
	m.shader = id
	m.rev++
}

func (m *Material) SetTexture(slot string, id TextureID) {
	if m.textures == nil {
		m.textures = make(map[string]TextureID)
	}
	if m.textures[slot] == id {
		return
	}
	m.textures[slot] = id
	m.rev++
}

func (m *Material) RemoveTexture(slot string) {
	if _, ok := m.textures[slot]; !ok {
		return
	}
	delete(m.textures, slot)
	m.rev++
}

// refresh re-derives the material from a reloaded model definition. The
// material identity (pointer, name, provenance) is preserved so drawables
// holding it pick up the new state without re-resolution.
func (m *Material) refresh(shader ShaderID, textures map[string]TextureID) {
	m.shader = shader
	m.textures = cloneTextures(textures)
	m.rev++
}

// MaterialEdit carries the changes applied by Edit. A zero Shader keeps the
// source's shader; texture entries override slot by slot, and an empty
// TextureID clears a slot.
type MaterialEdit struct {
	Shader   ShaderID
	Textures map[string]TextureID
}

// Edit produces a new Instance material carrying the source's state merged
// with the edit. The source is never mutated, whatever its provenance; the
// caller redirects the owning drawable's material reference to the result.
func Edit(src *Material, edit MaterialEdit) *Material {
	shader := src.shader
	if edit.Shader != "" {
		shader = edit.Shader
	}
	textures := cloneTextures(src.textures)
	for slot, id := range edit.Textures {
		if id == "" {
			delete(textures, slot)
			continue
		}
		if textures == nil {
			textures = make(map[string]TextureID)
		}
		textures[slot] = id
	}
	return NewInstanceMaterial(instanceName(src.Name), shader, textures)
}

// instanceName derives a unique name for an edited copy: the source's base
// name plus a short random suffix. Editing an instance again does not stack
// suffixes.
func instanceName(source string) string {
	if i := strings.LastIndex(source, "#"); i >= 0 {
		source = source[:i]
	}
	return source + "#" + uuid.NewString()[:8]
}

func cloneTextures(in map[string]TextureID) map[string]TextureID {
	if in == nil {
		return nil
	}
	out := make(map[string]TextureID, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

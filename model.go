package lumen

// ModelVertex is the vertex layout shared by all model pipelines. The tags
// drive vertex buffer layout generation in the wgpu backend.
type ModelVertex struct {
	Position  [3]float32 `lumen:"layout" format:"float3" location:"0"`
	TexCoords [2]float32 `lumen:"layout" format:"float2" location:"1"`
	Normal    [3]float32 `lumen:"layout" format:"float3" location:"2"`
}

type Mesh struct {
	Name        string
	Vertices    []ModelVertex
	Indices     []uint32
	MaterialKey string // "model/name", or "default" when the mesh has none
	GPU         MeshBuffers
}

// Model owns its meshes and its canonical material table, keyed by plain
// material name. Reloading the model refreshes the canonical materials in
// place and replaces the meshes.
type Model struct {
	Name      string
	Meshes    []*Mesh
	Materials map[string]*Material
}

// MaterialKeys lists the canonical keys ("model/name") of this model's table.
func (m *Model) MaterialKeys() []string {
	keys := make([]string, 0, len(m.Materials))
	for name := range m.Materials {
		keys = append(keys, m.Name+"/"+name)
	}
	return keys
}

// ModelTable is the renderer-owned registry of loaded models, keyed by model
// name (the file path stem). Mutated only from PollCompletions.
type ModelTable struct {
	log    Logger
	models map[string]*Model
}

func NewModelTable(log Logger) *ModelTable {
	if log == nil {
		log = NewNopLogger()
	}
	return &ModelTable{log: log, models: make(map[string]*Model)}
}

func (t *ModelTable) Get(name string) (*Model, bool) {
	m, ok := t.models[name]
	return m, ok
}

// LookupMaterial resolves a canonical key of the form "model/name".
func (t *ModelTable) LookupMaterial(key string) (*Material, bool) {
	model, name, ok := splitMaterialKey(key)
	if !ok {
		return nil, false
	}
	m, ok := t.models[model]
	if !ok {
		return nil, false
	}
	mat, ok := m.Materials[name]
	return mat, ok
}

// apply merges a completed model load. A first load installs the model; a
// reload keeps the Model and its canonical Material pointers alive and
// refreshes their definitions, so drawables and references stay valid.
// Materials gone from the new definition are dropped from the table;
// instance materials copied from this model are unaffected by design.
func (t *ModelTable) apply(def *modelDef, meshes []*Mesh, defaultShader ShaderID) *Model {
	model, reload := t.models[def.Name]
	if !reload {
		model = &Model{Name: def.Name, Materials: make(map[string]*Material)}
		t.models[def.Name] = model
	}

	for _, old := range model.Meshes {
		if old.GPU != nil {
			old.GPU.Release()
		}
	}
	model.Meshes = meshes

	seen := make(map[string]bool, len(def.Materials))
	for _, md := range def.Materials {
		seen[md.Name] = true
		textures := map[string]TextureID{}
		if md.DiffuseTexture != "" {
			textures[diffuseSlot] = TextureID(md.DiffuseTexture)
		}
		if existing, ok := model.Materials[md.Name]; ok {
			existing.refresh(defaultShader, textures)
		} else {
			model.Materials[md.Name] = NewCanonicalMaterial(def.Name, md.Name, defaultShader, textures)
		}
	}
	for name := range model.Materials {
		if !seen[name] {
			delete(model.Materials, name)
		}
	}

	if reload {
		t.log.Infof("model %q reloaded: %d meshes, %d materials", def.Name, len(meshes), len(model.Materials))
	} else {
		t.log.Infof("model %q loaded: %d meshes, %d materials", def.Name, len(meshes), len(model.Materials))
	}
	return model
}

// diffuseSlot is the texture slot name MTL diffuse maps bind to. It matches
// the binding variable in the built-in textured shader.
const diffuseSlot = "t_diffuse"

func splitMaterialKey(key string) (model, name string, ok bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}

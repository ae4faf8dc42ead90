package lumen

import (
	"fmt"
	"strings"
	"sync"
)

// fakeDevice implements Device without a GPU, recording object creation for
// assertions. Shader sources containing "BROKEN" fail to compile.
type fakeDevice struct {
	compiles   int
	pipelines  int
	bindGroups int
	textures   int
	meshes     int
}

type fakeHandle struct {
	label    string
	released bool
}

func (h *fakeHandle) Release() { h.released = true }

type fakeModule struct {
	fakeHandle
	source string
}

func (d *fakeDevice) CompileShader(label, source string) (ShaderModule, error) {
	if strings.Contains(source, "BROKEN") {
		return nil, fmt.Errorf("compile error in %s", label)
	}
	d.compiles++
	return &fakeModule{fakeHandle: fakeHandle{label: label}, source: source}, nil
}

type fakePipeline struct {
	fakeHandle
	shader ShaderID
}

func (d *fakeDevice) CreatePipeline(label string, module ShaderModule, layout *LayoutDescriptor, vertexType any) (Pipeline, error) {
	d.pipelines++
	return &fakePipeline{fakeHandle: fakeHandle{label: label}, shader: layout.Shader}, nil
}

type fakeBindGroup struct {
	fakeHandle
	resources []BoundResource
}

func (d *fakeDevice) CreateBindGroup(label string, pipeline Pipeline, layout *LayoutDescriptor, resources []BoundResource) (BindGroup, error) {
	d.bindGroups++
	return &fakeBindGroup{fakeHandle: fakeHandle{label: label}, resources: resources}, nil
}

func (d *fakeDevice) CreateTexture(label string, width, height uint32, texels []byte) (Texture, error) {
	d.textures++
	return &fakeHandle{label: label}, nil
}

func (d *fakeDevice) CreateSampler(label string) (Sampler, error) {
	return &fakeHandle{label: label}, nil
}

func (d *fakeDevice) CreateMeshBuffers(label string, vertices []ModelVertex, indices []uint32) (MeshBuffers, error) {
	d.meshes++
	return &fakeHandle{label: label}, nil
}

// fakeSource serves assets from in-memory maps. Safe for concurrent reads
// from worker schedulers.
type fakeSource struct {
	mu       sync.Mutex
	shaders  map[ShaderID]string
	files    map[string]string
	textures map[string][]byte
	reads    int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		shaders:  map[ShaderID]string{},
		files:    map[string]string{},
		textures: map[string][]byte{},
	}
}

func (s *fakeSource) ReadShaderSource(id ShaderID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	src, ok := s.shaders[id]
	if !ok {
		return nil, fmt.Errorf("no shader %q", id)
	}
	return []byte(src), nil
}

func (s *fakeSource) ReadModelFile(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	data, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("no file %q", path)
	}
	return []byte(data), nil
}

func (s *fakeSource) ReadTexture(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.textures[path]
	if !ok {
		return nil, fmt.Errorf("no texture %q", path)
	}
	return data, nil
}

// fakePass records the submission sequence DrawBatch produced.
type fakePass struct {
	pipelines  []Pipeline
	bindGroups []BindGroup
	draws      []*Mesh
}

func (p *fakePass) SetPipeline(pl Pipeline) { p.pipelines = append(p.pipelines, pl) }
func (p *fakePass) DrawMesh(m *Mesh)        { p.draws = append(p.draws, m) }

func (p *fakePass) SetBindGroup(group uint32, bg BindGroup) {
	p.bindGroups = append(p.bindGroups, bg)
}

// testRenderer builds a renderer over the fake device with a cooperative
// scheduler, so tests control exactly when loads run.
func testRenderer(t interface{ Fatalf(string, ...any) }) (*Renderer, *fakeDevice, *fakeSource, *CoopScheduler) {
	dev := &fakeDevice{}
	src := newFakeSource()
	sched := NewCoopScheduler()
	r, err := NewRenderer(RendererConfig{
		Device:    dev,
		Source:    src,
		Scheduler: sched,
	})
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r, dev, src, sched
}

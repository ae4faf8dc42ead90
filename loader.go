package lumen

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
)

// Source is the asset source collaborator. The loader is its only consumer;
// the render core performs no file or network I/O of its own.
type Source interface {
	ReadShaderSource(id ShaderID) ([]byte, error)
	ReadModelFile(path string) ([]byte, error)
	ReadTexture(path string) ([]byte, error)
}

// OSSource reads assets from a directory tree on disk.
type OSSource struct {
	Root string
}

func (s OSSource) ReadShaderSource(id ShaderID) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(string(id))))
}

func (s OSSource) ReadModelFile(p string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(p)))
}

func (s OSSource) ReadTexture(p string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(p)))
}

// Scheduler runs load jobs off the frame loop's critical path. The two
// implementations give the same observable behavior: jobs never touch
// renderer state; they only post results back to the loader's queue.
type Scheduler interface {
	Dispatch(job func())
}

// WorkerScheduler runs jobs on a fixed pool of goroutines. Jobs may block on
// I/O; the frame loop never waits on them.
type WorkerScheduler struct {
	jobs chan func()
	wg   sync.WaitGroup
}

func NewWorkerScheduler(workers int) *WorkerScheduler {
	if workers < 1 {
		workers = 1
	}
	s := &WorkerScheduler{jobs: make(chan func(), 64)}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer s.wg.Done()
			for job := range s.jobs {
				job()
			}
		}()
	}
	return s
}

func (s *WorkerScheduler) Dispatch(job func()) {
	s.jobs <- job
}

// Close stops accepting jobs and waits for in-flight ones to finish.
func (s *WorkerScheduler) Close() {
	close(s.jobs)
	s.wg.Wait()
}

// CoopScheduler queues jobs and runs them on the calling thread when the
// host's main loop grants time via Step. For single-threaded hosts where
// spawning workers is not an option; completion logic still goes through the
// loader's queue, never inline into renderer state.
type CoopScheduler struct {
	queue []func()
}

func NewCoopScheduler() *CoopScheduler {
	return &CoopScheduler{}
}

func (s *CoopScheduler) Dispatch(job func()) {
	s.queue = append(s.queue, job)
}

// Step runs up to budget queued jobs and reports how many ran. A budget < 1
// drains everything queued so far.
func (s *CoopScheduler) Step(budget int) int {
	if budget < 1 || budget > len(s.queue) {
		budget = len(s.queue)
	}
	ran := 0
	for ; ran < budget; ran++ {
		job := s.queue[0]
		s.queue = s.queue[1:]
		job()
	}
	return ran
}

func (s *CoopScheduler) Pending() int {
	return len(s.queue)
}

type AssetKind int

const (
	KindShader AssetKind = iota
	KindModel
)

// LoadRequest identifies one unit of out-of-band work. Requests for an
// identifier already in flight are coalesced: no second load is issued.
type LoadRequest struct {
	Kind AssetKind
	Path string
}

// LoadResult carries a finished load back to the frame thread. Results are
// applied in completion order, which is not guaranteed to match request
// order.
type LoadResult struct {
	Request      LoadRequest
	ShaderSource string
	Model        *modelPayload
	Err          error
}

// modelPayload bundles everything a model load job produced on the
// scheduler: the parsed definition plus its decoded textures. GPU upload
// happens on the frame thread.
type modelPayload struct {
	def      *modelDef
	textures map[TextureID]*decodedTexture
}

// Loader coordinates out-of-band loading of shaders and models. Requests are
// dispatched to the scheduler; completed results accumulate in a queue that
// the frame thread drains once per frame. The completion queue is the only
// state shared with the scheduler's execution context.
type Loader struct {
	log   Logger
	src   Source
	sched Scheduler

	pending map[LoadRequest]bool

	mu        sync.Mutex
	completed []LoadResult
}

func NewLoader(src Source, sched Scheduler, log Logger) *Loader {
	if log == nil {
		log = NewNopLogger()
	}
	return &Loader{
		log:     log,
		src:     src,
		sched:   sched,
		pending: make(map[LoadRequest]bool),
	}
}

// RequestShader schedules a shader source read. Coalesced while in flight.
func (l *Loader) RequestShader(id ShaderID) {
	req := LoadRequest{Kind: KindShader, Path: string(id)}
	if l.pending[req] {
		return
	}
	l.pending[req] = true
	l.sched.Dispatch(func() {
		l.complete(l.loadShader(req))
	})
}

// RequestModel schedules a model file read, including its material libraries
// and textures. Coalesced while in flight.
func (l *Loader) RequestModel(p string) {
	req := LoadRequest{Kind: KindModel, Path: p}
	if l.pending[req] {
		return
	}
	l.pending[req] = true
	l.sched.Dispatch(func() {
		l.complete(l.loadModel(req))
	})
}

// InFlight reports how many requests have not yet been drained.
func (l *Loader) InFlight() int {
	return len(l.pending)
}

// Drain removes and returns all results completed so far, in completion
// order. Called once per frame from PollCompletions; this is the single
// point where loader output crosses back into renderer state.
func (l *Loader) Drain() []LoadResult {
	l.mu.Lock()
	results := l.completed
	l.completed = nil
	l.mu.Unlock()

	for _, res := range results {
		delete(l.pending, res.Request)
	}
	return results
}

func (l *Loader) complete(res LoadResult) {
	l.mu.Lock()
	l.completed = append(l.completed, res)
	l.mu.Unlock()
}

func (l *Loader) loadShader(req LoadRequest) LoadResult {
	data, err := l.src.ReadShaderSource(ShaderID(req.Path))
	if err != nil {
		return LoadResult{Request: req, Err: fmt.Errorf("read shader %q: %w", req.Path, err)}
	}
	return LoadResult{Request: req, ShaderSource: string(data)}
}

func (l *Loader) loadModel(req LoadRequest) LoadResult {
	data, err := l.src.ReadModelFile(req.Path)
	if err != nil {
		return LoadResult{Request: req, Err: fmt.Errorf("read model %q: %w", req.Path, err)}
	}

	def, err := parseOBJ(modelNameFromPath(req.Path), string(data))
	if err != nil {
		return LoadResult{Request: req, Err: err}
	}

	dir := path.Dir(req.Path)
	for _, lib := range def.mtlLibs {
		mtlData, err := l.src.ReadModelFile(resolveRelative(dir, lib))
		if err != nil {
			// A missing material library degrades to untextured
			// materials, it does not fail the model.
			l.log.Warnf("model %q: material library %q: %v", req.Path, lib, err)
			continue
		}
		def.Materials = append(def.Materials, parseMTL(string(mtlData))...)
	}

	payload := &modelPayload{def: def, textures: make(map[TextureID]*decodedTexture)}
	for i, md := range def.Materials {
		if md.DiffuseTexture == "" {
			continue
		}
		texPath := resolveRelative(dir, md.DiffuseTexture)
		def.Materials[i].DiffuseTexture = texPath
		if _, ok := payload.textures[TextureID(texPath)]; ok {
			continue
		}
		texData, err := l.src.ReadTexture(texPath)
		if err != nil {
			l.log.Warnf("model %q: texture %q: %v", req.Path, texPath, err)
			def.Materials[i].DiffuseTexture = ""
			continue
		}
		decoded, err := decodeTexture(texData)
		if err != nil {
			l.log.Warnf("model %q: texture %q: %v", req.Path, texPath, err)
			def.Materials[i].DiffuseTexture = ""
			continue
		}
		payload.textures[TextureID(texPath)] = decoded
	}

	return LoadResult{Request: req, Model: payload}
}

func resolveRelative(dir, p string) string {
	if dir == "." || path.IsAbs(p) {
		return p
	}
	return path.Join(dir, p)
}

package scene

import (
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-oit/engine/draw_call"
	"github.com/Carmen-Shannon/oxy-oit/engine/game_object"
)

// Scene holds the objects of a frame. Update steps every object on a persistent worker pool and
// Entries snapshots the enabled objects for the draw-call compiler.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the name of the scene.
	//
	// Returns:
	//   - string: the scene name
	Name() string

	// Add registers an object and returns its ID. Objects without an ID are assigned the next
	// free one.
	//
	// Parameters:
	//   - obj: the object to add
	//
	// Returns:
	//   - uint64: the object ID
	Add(obj game_object.GameObject) uint64

	// Get returns the object with the given ID, or nil.
	//
	// Parameters:
	//   - id: the object ID
	//
	// Returns:
	//   - game_object.GameObject: the object or nil
	Get(id uint64) game_object.GameObject

	// Remove unregisters an object.
	//
	// Parameters:
	//   - id: the object ID
	//
	// Returns:
	//   - bool: true if the object was registered
	Remove(id uint64) bool

	// Clear removes every object.
	Clear()

	// Count returns the number of registered objects.
	//
	// Returns:
	//   - int: the object count
	Count() int

	// Objects returns the registered objects in ID order.
	Objects() []game_object.GameObject

	// Entries returns the draw-call compiler input of the enabled objects in ID order.
	//
	// Returns:
	//   - []draw_call.Entry: one entry per enabled object
	Entries() []draw_call.Entry

	// Update steps every object by dt. Objects are updated in parallel and Update returns once
	// all of them are done.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	Update(dt float32)

	// ComputeWorkers returns the size of the update worker pool.
	ComputeWorkers() int
}

type scene struct {
	mu *sync.RWMutex

	name     string
	registry map[uint64]game_object.GameObject
	nextID   uint64
	logger   *slog.Logger

	// computePool runs object updates. Workers persist across frames, avoiding per-frame
	// goroutine spawn and teardown.
	computePool    worker.DynamicWorkerPool
	computeWorkers int
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates an empty scene.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:             &sync.RWMutex{},
		name:           name,
		registry:       make(map[uint64]game_object.GameObject),
		nextID:         1,
		logger:         slog.Default(),
		computeWorkers: max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(s)
	}

	// Initialize the compute pool after options so WithComputeWorkers can override the default.
	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) ComputeWorkers() int {
	return s.computeWorkers
}

// addLocked registers obj. Caller must hold s.mu write lock.
func (s *scene) addLocked(obj game_object.GameObject) uint64 {
	id := obj.ID()
	if id == 0 {
		id = s.nextID
		obj.SetID(id)
	}
	if _, taken := s.registry[id]; taken {
		s.logger.Warn("scene object replaced", "scene", s.name, "id", id)
	}
	s.registry[id] = obj
	s.nextID = max(s.nextID, id+1)
	return id
}

func (s *scene) Add(obj game_object.GameObject) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(obj)
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Remove(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registry[id]; !ok {
		return false
	}
	delete(s.registry, id)
	return true
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = make(map[uint64]game_object.GameObject)
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

func (s *scene) Objects() []game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0, len(s.registry))
	for id := range s.registry {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]game_object.GameObject, len(ids))
	for i, id := range ids {
		out[i] = s.registry[id]
	}
	return out
}

func (s *scene) Entries() []draw_call.Entry {
	objects := s.Objects()
	out := make([]draw_call.Entry, 0, len(objects))
	for _, obj := range objects {
		if obj.Enabled() {
			out = append(out, obj.Entry())
		}
	}
	return out
}

func (s *scene) Update(dt float32) {
	objects := s.Objects()

	// A WaitGroup provides the per-frame barrier since pool.Wait() blocks until workers
	// idle-exit, which is unsuitable for frame-rate workloads.
	var wg sync.WaitGroup
	for i, obj := range objects {
		wg.Add(1)
		s.computePool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				obj.Update(dt)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// Package tasks tracks live download task state across concurrent workers.
package tasks

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle phase of a download task.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrAlreadyRunning is returned by Start when a task with the same id is
// still in flight. Since ids derive from the URL, this is how duplicate
// submissions of one URL are rejected.
var ErrAlreadyRunning = errors.New("tasks: task already running")

// taskNamespace scopes the deterministic task UUIDs.
var taskNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("crate/tasks"))

// ID derives the task identifier from the source URL. It is a UUIDv5 of the
// URL concatenated with its reverse, so repeated submissions of the same
// URL always collide into the same id.
func ID(url string) uuid.UUID {
	return uuid.NewSHA1(taskNamespace, []byte(url+reverse(url)))
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// Task is one in-flight or completed download attempt.
type Task struct {
	ID       uuid.UUID
	URL      string
	Name     string
	State    State
	Progress float64
	LastLine string
	Error    string
}

// Registry is a concurrency-safe map of task id to task state. Progress
// callbacks from parallel downloads all funnel through here; callback
// bodies are short, so a single lock is enough.
type Registry struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[uuid.UUID]*Task)}
}

// Start registers a new running task. It fails with ErrAlreadyRunning when
// the same id is still in flight; a finished task with the same id is
// replaced.
func (r *Registry) Start(id uuid.UUID, url, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tasks[id]; ok && existing.State == StateRunning {
		return ErrAlreadyRunning
	}
	r.tasks[id] = &Task{ID: id, URL: url, Name: name, State: StateRunning}
	return nil
}

// UpdateProgress overwrites the last known progress for id. Unknown ids are
// ignored: a late callback after Fail/End must not resurrect a task.
func (r *Registry) UpdateProgress(id uuid.UUID, percent float64, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.State != StateRunning {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	t.Progress = percent
	if line != "" {
		t.LastLine = line
	}
}

// End transitions the task to Succeeded, keeping finalLine as its last
// output.
func (r *Registry) End(id uuid.UUID, finalLine string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return
	}
	t.State = StateSucceeded
	t.Progress = 100
	if finalLine != "" {
		t.LastLine = finalLine
	}
}

// Fail transitions the task to Failed with a user-facing message.
func (r *Registry) Fail(id uuid.UUID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return
	}
	t.State = StateFailed
	t.Error = message
}

// Drop removes a task from the registry entirely. Used for canceled tasks,
// which end silently with no error surfaced.
func (r *Registry) Drop(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// Get returns a copy of the task for id.
func (r *Registry) Get(id uuid.UUID) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// List returns copies of all tasks, ordered by URL for stable output.
func (r *Registry) List() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

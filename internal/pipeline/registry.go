package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/recipeworks/ingest-pipeline/internal/jobs"
)

var (
	// ErrDuplicateAction is returned when a (queue, action) pair is registered twice
	ErrDuplicateAction = errors.New("action already registered")

	// ErrUnknownAction is returned when resolving an unregistered action name
	ErrUnknownAction = errors.New("unknown action")

	// ErrUnknownQueue is returned when resolving a queue with no pipeline
	ErrUnknownQueue = errors.New("unknown queue")
)

// Registry maps (queue, action name) to a constructible step. Registration
// happens once at startup, so every failure here is a programming error
// surfaced before the first job is dispatched. Not safe for concurrent
// registration; resolution after startup is read-only.
type Registry struct {
	factories map[jobs.QueueName]map[jobs.ActionName]Factory
	order     map[jobs.QueueName][]jobs.ActionName
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[jobs.QueueName]map[jobs.ActionName]Factory),
		order:     make(map[jobs.QueueName][]jobs.ActionName),
	}
}

// Register binds an action name to its factory on a queue. The registration
// order fixes the queue's pipeline order.
func (r *Registry) Register(queue jobs.QueueName, name jobs.ActionName, factory Factory) error {
	if !queue.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, queue)
	}
	if factory == nil {
		return fmt.Errorf("nil factory for action %s on queue %s", name, queue)
	}

	byName, ok := r.factories[queue]
	if !ok {
		byName = make(map[jobs.ActionName]Factory)
		r.factories[queue] = byName
	}

	if _, exists := byName[name]; exists {
		return fmt.Errorf("%w: %s on queue %s", ErrDuplicateAction, name, queue)
	}

	byName[name] = factory
	r.order[queue] = append(r.order[queue], name)
	return nil
}

// Create constructs a single action. Fails fast on unknown names.
func (r *Registry) Create(queue jobs.QueueName, name jobs.ActionName, deps *Dependencies) (Action, error) {
	byName, ok := r.factories[queue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, queue)
	}
	factory, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s on queue %s", ErrUnknownAction, name, queue)
	}
	return factory(deps), nil
}

// Build constructs the full ordered pipeline for a queue.
func (r *Registry) Build(queue jobs.QueueName, deps *Dependencies, logger *slog.Logger) (*Pipeline, error) {
	names, ok := r.order[queue]
	if !ok || len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, queue)
	}

	actions := make([]Action, 0, len(names))
	for _, name := range names {
		action, err := r.Create(queue, name, deps)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}

	return &Pipeline{
		queue:   queue,
		actions: actions,
		logger:  logger,
	}, nil
}

// Actions returns the registered pipeline order for a queue.
func (r *Registry) Actions(queue jobs.QueueName) []jobs.ActionName {
	out := make([]jobs.ActionName, len(r.order[queue]))
	copy(out, r.order[queue])
	return out
}

// Package predict orchestrates one prediction request end to end: payload
// fetch, inference, result rendering, side-channel uploads and terminal
// record emission.
package predict

import (
	"context"

	"github.com/turtacn/VisionServe/internal/content"
	"github.com/turtacn/VisionServe/pkg/errors"
)

// Outcome is what a predictor returns for one request.  Results holds one
// entry per input unit.  Count is the billable unit count; predictors
// that do not meter explicitly leave HasCount false and the service bills
// one unit per request.
type Outcome struct {
	Results  []interface{}
	Metrics  interface{}
	Count    int
	HasCount bool
}

// Predictor runs inference over fetched content units.
type Predictor interface {
	Predict(ctx context.Context, items []content.Item, params map[string]interface{}) (*Outcome, error)
}

// Renderer produces uploadable artifacts from inference results, one item
// per upload destination.  Visual tasks draw overlays; file tasks emit
// one output document per configured MIME.
type Renderer interface {
	Render(ctx context.Context, items []content.Item, results []interface{}, args map[string]interface{}) ([]content.Item, error)
}

// Task binds a task name to its predictor and rendering setup.
type Task struct {
	Name      string
	Predictor Predictor
	Renderer  Renderer
	// Defaults are parameter values merged under the request's params.
	Defaults map[string]interface{}
	// DrawArgs are passed to the renderer unchanged.
	DrawArgs map[string]interface{}
}

// Registry resolves task names.  It is populated at startup and read-only
// afterwards, so lookups need no locking.
type Registry struct {
	tasks map[string]*Task
}

// NewRegistry builds a registry from the given tasks.
func NewRegistry(tasks ...*Task) *Registry {
	m := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		m[t.Name] = t
	}
	return &Registry{tasks: m}
}

// Lookup resolves name or fails with a task-not-found error.
func (r *Registry) Lookup(name string) (*Task, error) {
	t, ok := r.tasks[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeTaskNotFound, "unknown task").WithDetail(name)
	}
	return t, nil
}

// Names lists registered task names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	return names
}

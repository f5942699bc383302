package component

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Pret-a-LLOD/Fintan/config"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/observability"
	"github.com/Pret-a-LLOD/Fintan/resilience"
)

// FactorySuffix is appended to a class name when the plain name does not
// resolve.
const FactorySuffix = "Factory"

// Spec is what a Factory receives about the component to build.
type Spec struct {
	// Instance is the unique instance identifier.
	Instance string
	// Class is the fully qualified registered name that resolved.
	Class string
	// Node is the raw configuration fragment.
	Node config.Node
}

// Dependencies are the shared services handed to every factory.
type Dependencies struct {
	Logger     *logger.Logger
	Metrics    *observability.PipelineMetrics
	HTTPClient *http.Client
	Retry      resilience.RetryConfig
}

// Factory builds a component from its configuration. Errors abort the
// whole build.
type Factory func(spec Spec, deps Dependencies) (StreamComponent, error)

// Registry maps fully qualified class names to factories.
type Registry struct {
	mu         sync.RWMutex
	factories  map[string]Factory
	namespaces []string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithNamespaces sets the ordered namespaces tried for unqualified names.
func WithNamespaces(namespaces ...string) RegistryOption {
	return func(r *Registry) {
		r.namespaces = append([]string(nil), namespaces...)
	}
}

// NewRegistry creates an empty registry using config.DefaultNamespaces.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		factories:  make(map[string]Factory),
		namespaces: append([]string(nil), config.DefaultNamespaces...),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a factory under a fully qualified name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("component type %s already registered", name)
	}
	r.factories[name] = f

	logger.Debug("Component type registered", logger.Fields(logger.FieldClass, name))
	return nil
}

// MustRegister is Register that panics on duplicates. It is meant for
// process start-up registration tables.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Namespaces returns the ordered namespace list.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.namespaces)
}

// Names returns every registered name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.factories)
}

// Candidates lists the names tried for class, in order: the name itself,
// the name under each namespace, then the same with the Factory suffix.
func (r *Registry) Candidates(class string) []string {
	namespaces := r.Namespaces()
	out := make([]string, 0, 2*(len(namespaces)+1))
	for _, name := range []string{class, class + FactorySuffix} {
		if strings.HasSuffix(class, FactorySuffix) && name != class {
			continue
		}
		out = append(out, name)
		for _, ns := range namespaces {
			out = append(out, ns+"."+name)
		}
	}
	return out
}

// Resolve finds the factory for class and returns the name it resolved to.
func (r *Registry) Resolve(class string) (string, Factory, error) {
	candidates := r.Candidates(class)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range candidates {
		if f, ok := r.factories[name]; ok {
			return name, f, nil
		}
	}
	return "", nil, apperrors.TypeNotFound(class, candidates)
}

// Build resolves the node's class, runs its factory and leaves the
// component in state Configured. Nodes without componentInstance get a
// generated identifier.
func (r *Registry) Build(node config.Node, deps Dependencies) (StreamComponent, error) {
	class := node.Class()
	if class == "" {
		return nil, apperrors.ConfigInvalid("component configuration has no 'class'")
	}
	name, f, err := r.Resolve(class)
	if err != nil {
		return nil, err
	}

	instance := node.Instance()
	if instance == "" {
		instance = uuid.NewString()
	}

	c, err := f(Spec{Instance: instance, Class: name, Node: node}, deps)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid) {
			return nil, err
		}
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("cannot build '%s' (%s): %v", instance, name, err)).WithCause(err)
	}
	if err := c.Transition(StateConfigured); err != nil {
		return nil, err
	}

	logger.Debug("Component built", logger.Fields(
		logger.FieldClass, name,
		logger.FieldInstance, instance,
	))
	return c, nil
}

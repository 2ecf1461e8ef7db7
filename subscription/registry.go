package subscription

import (
	"fmt"
	"sort"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/c360/gqlbridge/errors"
)

// Definition describes one known subscription: the GraphQL document to
// execute and where its data is published.
type Definition struct {
	// Name is the unique catalog key and the operation id on the wire.
	Name string `json:"name"`

	// Query is the GraphQL subscription document.
	Query string `json:"query"`

	// Resource is the logical path readers use to fetch cached data.
	Resource string `json:"resource"`

	// Description is a human-readable summary for status output.
	Description string `json:"description,omitempty"`

	// AutoStart includes this definition in the auto-start sweep.
	AutoStart bool `json:"auto_start"`
}

// Registry is an immutable index of subscription definitions. Build one
// with NewRegistry; lookups are safe for concurrent use.
type Registry struct {
	byName     map[string]Definition
	byResource map[string]Definition
	names      []string
}

// NewRegistry validates and indexes the given definitions. Names and
// resource paths must be unique, and every query must parse as a GraphQL
// document containing a subscription operation.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		byName:     make(map[string]Definition, len(defs)),
		byResource: make(map[string]Definition, len(defs)),
		names:      make([]string, 0, len(defs)),
	}

	for _, def := range defs {
		if def.Name == "" {
			return nil, errors.Wrap(errors.ErrInvalidConfig, "registry", "new", "validate definition name")
		}
		if def.Query == "" {
			return nil, errors.Wrap(errors.ErrInvalidConfig, "registry", "new",
				fmt.Sprintf("validate %q query", def.Name))
		}
		if _, exists := r.byName[def.Name]; exists {
			return nil, errors.Wrap(errors.ErrDuplicateSubscription, "registry", "new",
				fmt.Sprintf("register %q", def.Name))
		}
		if def.Resource != "" {
			if prior, exists := r.byResource[def.Resource]; exists {
				return nil, errors.Wrap(errors.ErrDuplicateSubscription, "registry", "new",
					fmt.Sprintf("register %q resource (held by %q)", def.Name, prior.Name))
			}
		}
		if err := validateQuery(def); err != nil {
			return nil, err
		}

		r.byName[def.Name] = def
		if def.Resource != "" {
			r.byResource[def.Resource] = def
		}
		r.names = append(r.names, def.Name)
	}

	sort.Strings(r.names)
	return r, nil
}

// validateQuery parses the definition's document and confirms it declares
// a subscription operation. Variable declarations are allowed; values are
// supplied at start time.
func validateQuery(def Definition) error {
	doc, err := parser.ParseQuery(&ast.Source{Name: def.Name, Input: def.Query})
	if err != nil {
		return errors.WrapInvalid(err, "registry", "new",
			fmt.Sprintf("parse %q query", def.Name))
	}

	for _, op := range doc.Operations {
		if op.Operation == ast.Subscription {
			return nil
		}
	}
	return errors.WrapInvalid(
		fmt.Errorf("document contains no subscription operation: %w", errors.ErrInvalidConfig),
		"registry", "new", fmt.Sprintf("validate %q operation", def.Name))
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (Definition, bool) {
	def, ok := r.byName[name]
	return def, ok
}

// ByResource returns the definition publishing to the given resource path.
func (r *Registry) ByResource(path string) (Definition, bool) {
	def, ok := r.byResource[path]
	return def, ok
}

// Names returns the sorted definition names.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All returns every definition sorted by name.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.names)
}

// logFileSubscriptionName is the catalog entry the auto-start sequencer
// parameterizes with a file path.
const logFileSubscriptionName = "logFileSubscription"

// DefaultCatalog returns the definitions shipped with the daemon.
func DefaultCatalog() []Definition {
	return []Definition{
		{
			Name: logFileSubscriptionName,
			Query: `subscription LogFileSubscription($path: String!) {
    logFile(path: $path) {
        path
        content
        totalLines
    }
}`,
			Resource:    "bridge://logs/stream",
			Description: "Real-time log file streaming",
			AutoStart:   false,
		},
	}
}

// Package resolve follows schema references and flattens composition over an
// immutable schema dictionary. Every recursive call threads the set of
// reference names already on the current path, so cycles surface as
// CyclicReference errors instead of unbounded recursion.
package resolve

import (
	"strings"

	"github.com/mark3labs/oapi-typegen/internal/diag"
	"github.com/mark3labs/oapi-typegen/internal/spec"
)

// Visited is the set of reference names on the current resolution path.
// It is copied on extension, so sibling branches never see each other's names.
type Visited struct {
	names []string
}

// Has reports whether name is already on the path.
func (v Visited) Has(name string) bool {
	for _, n := range v.names {
		if n == name {
			return true
		}
	}
	return false
}

// With returns a new path extended by name.
func (v Visited) With(name string) Visited {
	out := make([]string, len(v.names), len(v.names)+1)
	copy(out, v.names)
	return Visited{names: append(out, name)}
}

// Path returns the names in visiting order.
func (v Visited) Path() []string { return append([]string(nil), v.names...) }

// Resolver answers reference and composition queries against one dictionary.
type Resolver struct {
	dict *spec.Dictionary
}

func New(dict *spec.Dictionary) *Resolver {
	if dict == nil {
		dict = spec.NewDictionary()
	}
	return &Resolver{dict: dict}
}

// Dictionary returns the dictionary the resolver reads from.
func (r *Resolver) Dictionary() *spec.Dictionary { return r.dict }

// Ref returns the schema a reference string points at. Chains of bare
// top-level references are followed to their final target, whose name is
// returned together with the visited path extended by every name crossed.
func (r *Resolver) Ref(ref string, visited Visited) (*spec.Schema, string, Visited, error) {
	name := spec.RefName(ref)
	for {
		if visited.Has(name) {
			return nil, "", visited, cycleError(visited, name)
		}
		target, ok := r.dict.Lookup(name)
		if !ok {
			return nil, "", visited, &diag.Error{
				Code:    diag.UnresolvedReference,
				Subject: name,
				Pointer: ref,
				Message: "unresolved reference " + ref + ": no schema named " + quote(name),
			}
		}
		visited = visited.With(name)
		if !target.IsRef() {
			return target, name, visited, nil
		}
		ref = target.Ref
		name = target.RefName()
	}
}

// Follow returns the final target name of a reference without returning the
// schema. It is used to turn an alias chain into a single catalog name.
func (r *Resolver) Follow(ref string) (string, error) {
	_, name, _, err := r.Ref(ref, Visited{})
	return name, err
}

// Deref returns s itself when it is not a reference, and the referenced
// schema otherwise.
func (r *Resolver) Deref(s *spec.Schema, visited Visited) (*spec.Schema, Visited, error) {
	if !s.IsRef() {
		return s, visited, nil
	}
	target, _, next, err := r.Ref(s.Ref, visited)
	return target, next, err
}

func cycleError(visited Visited, name string) error {
	chain := append(visited.Path(), name)
	start := 0
	for i, n := range chain {
		if n == name {
			start = i
			break
		}
	}
	return &diag.Error{
		Code:    diag.CyclicReference,
		Subject: name,
		Pointer: spec.Pointer("components", "schemas", name),
		Message: "cyclic reference: " + strings.Join(chain[start:], " -> "),
	}
}

func quote(s string) string { return "\"" + s + "\"" }

package resolve

import (
	"github.com/mark3labs/oapi-typegen/internal/diag"
	"github.com/mark3labs/oapi-typegen/internal/spec"
)

// MergeAllOf flattens the allOf chain of s. Members are resolved in order,
// nested allOf first; a later member's property overwrites an earlier one of
// the same name in place, required names are unioned, and the schema's own
// properties and required names are applied last. An untyped schema takes
// the type of its last typed member. The result has no allOf. A schema
// without allOf is returned unchanged.
func (r *Resolver) MergeAllOf(s *spec.Schema) (*spec.Schema, error) {
	return r.mergeAllOf(s, Visited{})
}

// MergeAllOfFrom is MergeAllOf for a schema reached through visited, such as
// a named dictionary entry whose own name must count towards cycles.
func (r *Resolver) MergeAllOfFrom(s *spec.Schema, visited Visited) (*spec.Schema, error) {
	return r.mergeAllOf(s, visited)
}

func (r *Resolver) mergeAllOf(s *spec.Schema, visited Visited) (*spec.Schema, error) {
	if s == nil || len(s.AllOf) == 0 {
		return s, nil
	}

	var props propertySet
	var required requiredSet
	var shape *spec.Schema

	for _, member := range s.AllOf {
		target, next, err := r.Deref(member, visited)
		if err != nil {
			return nil, err
		}
		flat, err := r.mergeAllOf(target, next)
		if err != nil {
			return nil, err
		}
		for _, p := range flat.Properties {
			props.put(p)
		}
		for _, name := range flat.Required {
			required.add(name)
		}
		if flat.Kind != spec.KindAbsent {
			shape = flat
		}
	}
	for _, p := range s.Properties {
		props.put(p)
	}
	for _, name := range s.Required {
		required.add(name)
	}

	out := s.Clone()
	out.AllOf = nil
	out.Properties = props.list
	out.Required = required.list
	if out.Kind == spec.KindAbsent && shape != nil {
		adoptShape(out, shape)
	}
	if out.Kind == spec.KindAbsent && len(out.Properties) > 0 {
		out.Kind = spec.KindObject
	}
	return out, nil
}

// adoptShape gives an untyped allOf the type of its last typed member, so
// allOf: [$ref: Name] over a primitive stays that primitive.
func adoptShape(out, shape *spec.Schema) {
	out.Kind = shape.Kind
	if out.Format == "" {
		out.Format = shape.Format
	}
	if out.Items == nil {
		out.Items = shape.Items
	}
	if out.AdditionalProperties.Absent() {
		out.AdditionalProperties = shape.AdditionalProperties
	}
	if len(out.Enum) == 0 {
		out.Enum = append([]any(nil), shape.Enum...)
	}
}

type propertySet struct {
	list  []spec.Property
	index map[string]int
}

func (p *propertySet) put(prop spec.Property) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if at, ok := p.index[prop.Name]; ok {
		p.list[at] = prop
		return
	}
	p.index[prop.Name] = len(p.list)
	p.list = append(p.list, prop)
}

type requiredSet struct {
	list []string
	seen map[string]struct{}
}

func (r *requiredSet) add(name string) {
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	if _, ok := r.seen[name]; ok {
		return
	}
	r.seen[name] = struct{}{}
	r.list = append(r.list, name)
}

// SingleRef returns the reference member when s is an inline allOf with
// exactly one reference member and nothing else of its own, the usual way
// to attach a description to a reference.
func SingleRef(s *spec.Schema) (*spec.Schema, bool) {
	if s == nil || s.IsRef() || len(s.AllOf) != 1 || !s.AllOf[0].IsRef() {
		return nil, false
	}
	if len(s.Properties) > 0 || len(s.OneOf) > 0 || len(s.AnyOf) > 0 || len(s.Enum) > 0 {
		return nil, false
	}
	return s.AllOf[0], true
}

// Membership is the reverse index from a referenced schema name to the sum
// type that lists it as a member.
type Membership struct {
	parent  map[string]string
	members map[string][]string
}

// BuildMembership scans the dictionary in declaration order and records
// every reference member of a oneOf, and of a discriminated anyOf. When a
// name is claimed by a second parent the later registration wins and an
// AmbiguousOneOfMembership warning is recorded.
func BuildMembership(dict *spec.Dictionary, warnings *diag.Collector) *Membership {
	m := &Membership{parent: make(map[string]string), members: make(map[string][]string)}
	for _, name := range dict.Names() {
		s, _ := dict.Lookup(name)
		if s == nil || s.IsRef() {
			continue
		}
		for _, member := range sumMembers(s) {
			if !member.IsRef() {
				continue
			}
			m.Register(name, member.RefName(), warnings)
		}
	}
	return m
}

func sumMembers(s *spec.Schema) []*spec.Schema {
	if len(s.OneOf) > 0 {
		return s.OneOf
	}
	if len(s.AnyOf) > 0 && s.Discriminator != nil {
		return s.AnyOf
	}
	return nil
}

// Register records member as belonging to parent.
func (m *Membership) Register(parent, member string, warnings *diag.Collector) {
	if prev, ok := m.parent[member]; ok && prev != parent && warnings != nil {
		warnings.Warnf(diag.AmbiguousOneOfMembership, member, spec.Pointer("components", "schemas", member),
			"schema %q is a member of both %q and %q; using %q", member, prev, parent, parent)
	}
	m.parent[member] = parent
	for _, existing := range m.members[parent] {
		if existing == member {
			return
		}
	}
	m.members[parent] = append(m.members[parent], member)
}

// ParentOf returns the sum type name that owns member.
func (m *Membership) ParentOf(member string) (string, bool) {
	if m == nil {
		return "", false
	}
	p, ok := m.parent[member]
	return p, ok
}

// MembersOf returns the members of parent in registration order, excluding
// names that a later parent took over.
func (m *Membership) MembersOf(parent string) []string {
	if m == nil {
		return nil
	}
	var out []string
	for _, member := range m.members[parent] {
		if m.parent[member] == parent {
			out = append(out, member)
		}
	}
	return out
}

// AnyOfShape classifies an anyOf schema.
type AnyOfShape int

const (
	// AnyOfNone means the schema has no anyOf.
	AnyOfNone AnyOfShape = iota
	// AnyOfDiscriminated is modeled as a sum type.
	AnyOfDiscriminated
	// AnyOfSingle has one member and is an alias of it.
	AnyOfSingle
	// AnyOfWrapper is a heterogeneous union held as one dynamic value.
	AnyOfWrapper
)

func (s AnyOfShape) String() string {
	switch s {
	case AnyOfDiscriminated:
		return "discriminated"
	case AnyOfSingle:
		return "single"
	case AnyOfWrapper:
		return "wrapper"
	}
	return "none"
}

// ClassifyAnyOf decides how an anyOf schema is represented.
func ClassifyAnyOf(s *spec.Schema) AnyOfShape {
	switch {
	case s == nil || len(s.AnyOf) == 0:
		return AnyOfNone
	case s.Discriminator != nil:
		return AnyOfDiscriminated
	case len(s.AnyOf) == 1:
		return AnyOfSingle
	default:
		return AnyOfWrapper
	}
}

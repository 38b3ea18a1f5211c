// Package model derives the named type catalog from a schema dictionary.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/oapi-typegen/internal/diag"
	"github.com/mark3labs/oapi-typegen/internal/typemap"
)

// Kind classifies a NamedType.
type Kind string

const (
	KindRecord  Kind = "record"
	KindEnum    Kind = "enum"
	KindSum     Kind = "sum"
	KindWrapper Kind = "wrapper"
	KindAlias   Kind = "alias"
)

// Field is one property of a record or wrapper. Name is the source property
// name; Identifier is the camelCase name emitters declare.
type Field struct {
	Name        string               `json:"name"`
	Identifier  string               `json:"identifier"`
	Type        typemap.ResolvedType `json:"type"`
	Required    bool                 `json:"required"`
	Description string               `json:"description,omitempty"`
	Default     typemap.Default      `json:"default,omitempty"`
	// Override marks a field that satisfies a property of a sum type the
	// record belongs to, such as the discriminator.
	Override bool `json:"override,omitempty"`
}

type EnumMember struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// MappingEntry pairs a discriminator value with the variant it selects.
type MappingEntry struct {
	Value  string `json:"value"`
	Target string `json:"target"`
}

type Discriminator struct {
	Property string               `json:"property"`
	Type     typemap.ResolvedType `json:"type"`
	Mapping  []MappingEntry       `json:"mapping,omitempty"`
}

// NamedType is one entry of the catalog. Only the fields of its Kind are set.
type NamedType struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
	Synthesized bool   `json:"synthesized,omitempty"`

	// record, wrapper; for a sum, the properties its members share
	Fields     []Field  `json:"fields,omitempty"`
	Implements []string `json:"implements,omitempty"`

	// enum
	ValueType *typemap.ResolvedType `json:"valueType,omitempty"`
	Members   []EnumMember          `json:"members,omitempty"`

	// sum
	Discriminator *Discriminator         `json:"discriminator,omitempty"`
	Variants      []typemap.ResolvedType `json:"variants,omitempty"`

	// alias
	Target *typemap.ResolvedType `json:"target,omitempty"`

	// CollisionGroup is the lower-cased name shared with other entries that
	// differ from this one only by case.
	CollisionGroup string `json:"collisionGroup,omitempty"`
}

// Field returns the field with source name name.
func (t *NamedType) Field(name string) (*Field, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// Catalog holds NamedTypes in derivation order.
type Catalog struct {
	types []*NamedType
	index map[string]int
}

func NewCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// reserve appends an empty entry for name and returns it for filling in.
func (c *Catalog) reserve(name string) *NamedType {
	t := &NamedType{Name: name}
	c.index[name] = len(c.types)
	c.types = append(c.types, t)
	return t
}

func (c *Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

func (c *Catalog) Lookup(name string) (*NamedType, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.types[i], true
}

// Types returns the entries in derivation order.
func (c *Catalog) Types() []*NamedType {
	return append([]*NamedType(nil), c.types...)
}

func (c *Catalog) Len() int { return len(c.types) }

// Count returns the number of entries of each kind.
func (c *Catalog) Count() map[Kind]int {
	out := make(map[Kind]int)
	for _, t := range c.types {
		out[t.Kind]++
	}
	return out
}

// markCollisions tags every entry whose name equals another one ignoring case.
func (c *Catalog) markCollisions() {
	groups := make(map[string][]*NamedType)
	for _, t := range c.types {
		key := strings.ToLower(t.Name)
		groups[key] = append(groups[key], t)
	}
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		for _, t := range members {
			t.CollisionGroup = key
		}
	}
}

// Collisions returns the names of every collision group, groups ordered by
// key and names by derivation order.
func (c *Catalog) Collisions() [][]string {
	byKey := make(map[string][]string)
	for _, t := range c.types {
		if t.CollisionGroup != "" {
			byKey[t.CollisionGroup] = append(byKey[t.CollisionGroup], t.Name)
		}
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out
}

// Validate fails with UnresolvedReference when any type in the catalog
// references a name with no entry. External references are exempt.
func (c *Catalog) Validate() error {
	for _, t := range c.types {
		for _, ref := range c.refsOf(t) {
			if err := c.CheckRef(ref, t.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckRef fails when ref names a catalog entry that does not exist.
func (c *Catalog) CheckRef(ref typemap.ResolvedType, from string) error {
	for _, named := range ref.NamedRefs() {
		if named.External || c.Has(named.Name) {
			continue
		}
		return &diag.Error{
			Code:    diag.UnresolvedReference,
			Subject: named.Name,
			Message: fmt.Sprintf("%s references %q, which has no catalog entry", from, named.Name),
		}
	}
	return nil
}

func (c *Catalog) refsOf(t *NamedType) []typemap.ResolvedType {
	var refs []typemap.ResolvedType
	for _, f := range t.Fields {
		refs = append(refs, f.Type)
	}
	refs = append(refs, t.Variants...)
	if t.Target != nil {
		refs = append(refs, *t.Target)
	}
	if t.Discriminator != nil {
		refs = append(refs, t.Discriminator.Type)
	}
	return refs
}

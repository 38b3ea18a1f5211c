package model

import (
	"fmt"
	"strconv"

	"github.com/mark3labs/oapi-typegen/internal/diag"
	"github.com/mark3labs/oapi-typegen/internal/naming"
	"github.com/mark3labs/oapi-typegen/internal/resolve"
	"github.com/mark3labs/oapi-typegen/internal/spec"
	"github.com/mark3labs/oapi-typegen/internal/typemap"
)

// Deriver builds the catalog. It is also the typemap.Declarer for the
// mapper it is created with, so inline structured schemas met anywhere
// become synthesized catalog entries.
type Deriver struct {
	res        *resolve.Resolver
	mapper     *typemap.Mapper
	warnings   *diag.Collector
	membership *resolve.Membership
	catalog    *Catalog
	// sum types in derivation order, wired to their members by Finish
	sums []string
}

// NewDeriver builds the membership index and installs itself as the
// mapper's declarer.
func NewDeriver(res *resolve.Resolver, mapper *typemap.Mapper, warnings *diag.Collector) *Deriver {
	if warnings == nil {
		warnings = &diag.Collector{}
	}
	d := &Deriver{
		res:        res,
		mapper:     mapper,
		warnings:   warnings,
		membership: resolve.BuildMembership(res.Dictionary(), warnings),
		catalog:    NewCatalog(),
	}
	mapper.SetDeclarer(d)
	return d
}

// Catalog returns the catalog as derived so far.
func (d *Deriver) Catalog() *Catalog { return d.catalog }

// DeriveAll derives an entry for every dictionary schema, skipping bare
// references and overridden names.
func (d *Deriver) DeriveAll() error {
	dict := d.res.Dictionary()
	for _, name := range dict.Names() {
		s, _ := dict.Lookup(name)
		if s == nil || s.IsRef() {
			continue
		}
		if _, overridden := d.mapper.Override(name); overridden {
			continue
		}
		if d.catalog.Has(name) {
			continue
		}
		visited := resolve.Visited{}.With(name)
		if err := d.derive(name, s, spec.Pointer("components", "schemas", name), visited, false); err != nil {
			return err
		}
	}
	return nil
}

// Finish wires sum type members, marks case-insensitive collisions and
// checks that no reference dangles.
func (d *Deriver) Finish() (*Catalog, error) {
	for _, sum := range d.sums {
		if err := d.wireSum(sum); err != nil {
			return nil, err
		}
	}
	d.catalog.markCollisions()
	if err := d.catalog.Validate(); err != nil {
		return nil, err
	}
	return d.catalog, nil
}

// Declare derives an inline structured schema under a synthesized name. A
// name already taken by the dictionary or the catalog gets a numeric suffix.
func (d *Deriver) Declare(name string, s *spec.Schema, pointer string) (typemap.ResolvedType, error) {
	unique := d.uniqueName(name)
	if err := d.derive(unique, s, pointer, resolve.Visited{}, true); err != nil {
		return typemap.ResolvedType{}, err
	}
	return typemap.Named(unique, d.mapper.Config().ModelsPackage()), nil
}

func (d *Deriver) uniqueName(name string) string {
	taken := func(n string) bool {
		if d.catalog.Has(n) {
			return true
		}
		_, inDict := d.res.Dictionary().Lookup(n)
		return inDict
	}
	if !taken(name) {
		return name
	}
	for i := 2; ; i++ {
		candidate := name + strconv.Itoa(i)
		if !taken(candidate) {
			return candidate
		}
	}
}

func (d *Deriver) derive(name string, s *spec.Schema, pointer string, visited resolve.Visited, synthesized bool) error {
	merged, err := d.res.MergeAllOfFrom(s, visited)
	if err != nil {
		return err
	}

	t := d.catalog.reserve(name)
	t.Description = merged.Description
	t.Source = pointer
	t.Synthesized = synthesized

	switch {
	case len(merged.Enum) > 0:
		return d.enum(t, merged)
	case len(merged.OneOf) > 0:
		return d.sum(t, merged, "oneOf", merged.OneOf)
	case len(merged.AnyOf) > 0:
		switch resolve.ClassifyAnyOf(merged) {
		case resolve.AnyOfDiscriminated:
			return d.sum(t, merged, "anyOf", merged.AnyOf)
		case resolve.AnyOfSingle:
			return d.alias(t, merged.AnyOf[0], typemap.Site{Name: name + "Variant1", Pointer: spec.AppendPointer(pointer, "anyOf", "0")}, merged.Nullable)
		default:
			return d.wrapper(t, merged)
		}
	case len(merged.Properties) > 0:
		return d.record(t, merged)
	default:
		return d.alias(t, merged, typemap.Site{Name: name, Pointer: pointer}, false)
	}
}

func (d *Deriver) enum(t *NamedType, s *spec.Schema) error {
	t.Kind = KindEnum
	values := uniqueLiterals(s.Enum)
	names := naming.EnumMembers(values)
	for i, v := range values {
		t.Members = append(t.Members, EnumMember{Name: names[i], Value: v})
	}
	vt := enumValueType(s, values)
	t.ValueType = &vt
	return nil
}

func uniqueLiterals(values []any) []any {
	seen := make(map[string]struct{}, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		key := fmt.Sprintf("%T:%v", v, v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func enumValueType(s *spec.Schema, values []any) typemap.ResolvedType {
	switch s.Kind {
	case spec.KindInteger:
		if s.Format == "int64" {
			return typemap.Primitive(typemap.Int64, s.Format)
		}
		return typemap.Primitive(typemap.Int32, s.Format)
	case spec.KindNumber:
		return typemap.Primitive(typemap.Float64, s.Format)
	case spec.KindBoolean:
		return typemap.Primitive(typemap.Boolean, s.Format)
	case spec.KindString:
		return typemap.Primitive(typemap.String, s.Format)
	}
	for _, v := range values {
		switch v.(type) {
		case bool:
			return typemap.Primitive(typemap.Boolean, "")
		case float64, float32, int, int64:
			return typemap.Primitive(typemap.Float64, "")
		}
	}
	return typemap.Primitive(typemap.String, "")
}

func (d *Deriver) record(t *NamedType, s *spec.Schema) error {
	t.Kind = KindRecord
	fields, err := d.fields(t.Name, s, t.Source)
	if err != nil {
		return err
	}
	t.Fields = fields
	return nil
}

func (d *Deriver) fields(owner string, s *spec.Schema, pointer string) ([]Field, error) {
	cfg := d.mapper.Config()
	fields := make([]Field, 0, len(s.Properties))
	for _, p := range s.Properties {
		required := s.IsRequired(p.Name)
		site := typemap.Site{
			Name:    owner + naming.Pascal(p.Name),
			Pointer: spec.AppendPointer(pointer, "properties", p.Name),
		}
		ft, err := d.mapper.Map(p.Schema, site, !required)
		if err != nil {
			return nil, err
		}
		f := Field{
			Name:     p.Name,
			Type:     ft,
			Required: required,
		}
		if p.Schema != nil {
			f.Description = p.Schema.Description
		}
		if !required && cfg.GenerateDefaults {
			f.Default = typemap.DefaultFor(ft)
		}
		fields = append(fields, f)
	}
	assignIdentifiers(fields)
	return fields, nil
}

func (d *Deriver) alias(t *NamedType, s *spec.Schema, site typemap.Site, nullable bool) error {
	t.Kind = KindAlias
	target, err := d.mapper.Map(s, site, nullable)
	if err != nil {
		return err
	}
	t.Target = &target
	return nil
}

func (d *Deriver) wrapper(t *NamedType, s *spec.Schema) error {
	t.Kind = KindWrapper
	t.Fields = []Field{{
		Name:       "value",
		Identifier: "value",
		Type:       typemap.Dynamic(typemap.JSONValue).WithNullable(s.Nullable),
		Required:   true,
	}}
	return nil
}

func (d *Deriver) sum(t *NamedType, s *spec.Schema, key string, members []*spec.Schema) error {
	t.Kind = KindSum
	for i, member := range members {
		if member.IsRef() {
			if parent, ok := d.membership.ParentOf(member.RefName()); ok && parent != t.Name && !t.Synthesized {
				continue
			}
			vt, err := d.mapper.Ref(member, typemap.Site{Pointer: t.Source})
			if err != nil {
				return err
			}
			t.Variants = append(t.Variants, vt)
			continue
		}
		name := t.Name + "Variant" + strconv.Itoa(i+1)
		ptr := spec.AppendPointer(t.Source, key, strconv.Itoa(i))
		vt, err := d.Declare(name, member, ptr)
		if err != nil {
			return err
		}
		t.Variants = append(t.Variants, vt)
	}

	if len(s.Properties) > 0 {
		shared, err := d.fields(t.Name, s, t.Source)
		if err != nil {
			return err
		}
		t.Fields = shared
	}

	if s.Discriminator != nil && s.Discriminator.PropertyName != "" {
		disc, err := d.discriminator(t, s)
		if err != nil {
			return err
		}
		t.Discriminator = disc
	}
	d.sums = append(d.sums, t.Name)
	return nil
}

package model

import (
	"sort"

	"github.com/mark3labs/oapi-typegen/internal/diag"
	"github.com/mark3labs/oapi-typegen/internal/naming"
	"github.com/mark3labs/oapi-typegen/internal/spec"
	"github.com/mark3labs/oapi-typegen/internal/typemap"
)

// discriminator resolves the discriminator property type and the value to
// variant mapping of a sum type. Explicit mapping entries come first, by
// value; every variant without one is selected by its own name. An explicit
// entry whose target is not a variant of t is dropped with a warning.
func (d *Deriver) discriminator(t *NamedType, s *spec.Schema) (*Discriminator, error) {
	prop := s.Discriminator.PropertyName
	disc := &Discriminator{Property: prop, Type: typemap.Primitive(typemap.String, "")}
	if f, ok := t.Field(prop); ok {
		disc.Type = f.Type.WithNullable(false)
	}

	values := make([]string, 0, len(s.Discriminator.Mapping))
	for v := range s.Discriminator.Mapping {
		values = append(values, v)
	}
	sort.Strings(values)

	mapped := make(map[string]bool)
	for _, v := range values {
		target := s.Discriminator.Mapping[v]
		ptr := spec.AppendPointer(t.Source, "discriminator", "mapping", v)
		vt, err := d.mapper.Ref(spec.NewRef(target), typemap.Site{Pointer: ptr})
		if err != nil {
			return nil, err
		}
		if !hasVariant(t.Variants, vt.Name) {
			d.warnings.Warnf(diag.DiscriminatorMappingDropped, t.Name, ptr,
				"discriminator value %q of %s selects %s, which is not one of its variants; dropping it", v, t.Name, vt.Name)
			continue
		}
		disc.Mapping = append(disc.Mapping, MappingEntry{Value: v, Target: vt.Name})
		mapped[vt.Name] = true
	}
	for _, variant := range t.Variants {
		if variant.Tag != typemap.TagNamed || mapped[variant.Name] {
			continue
		}
		disc.Mapping = append(disc.Mapping, MappingEntry{Value: variant.Name, Target: variant.Name})
	}
	return disc, nil
}

// wireSum makes every record variant of a sum type implement it. Fields
// matching a property the sum declares, the discriminator included, become
// override fields without defaults. A declared discriminator field takes the
// discriminator type but keeps its own requiredness; a variant missing the
// property gets a synthesized required one.
func (d *Deriver) wireSum(name string) error {
	sum, ok := d.catalog.Lookup(name)
	if !ok {
		return nil
	}
	for _, variant := range sum.Variants {
		if variant.Tag != typemap.TagNamed || variant.External {
			continue
		}
		member, ok := d.catalog.Lookup(variant.Name)
		if !ok || member.Kind != KindRecord {
			continue
		}
		member.Implements = appendUnique(member.Implements, sum.Name)

		for i := range member.Fields {
			f := &member.Fields[i]
			if _, shared := sum.Field(f.Name); shared {
				markOverride(f)
			}
		}

		if sum.Discriminator == nil {
			continue
		}
		prop := sum.Discriminator.Property
		if f, ok := member.Field(prop); ok {
			markOverride(f)
			f.Type = sum.Discriminator.Type.WithNullable(!f.Required)
			continue
		}
		d.warnings.Warnf(diag.MissingDiscriminatorProperty, member.Name, member.Source,
			"%s is a member of %s but does not declare discriminator property %q; adding it", member.Name, sum.Name, prop)
		member.Fields = append(member.Fields, Field{
			Name:     prop,
			Type:     sum.Discriminator.Type,
			Required: true,
			Override: true,
		})
		assignIdentifiers(member.Fields)
	}
	return nil
}

func hasVariant(variants []typemap.ResolvedType, name string) bool {
	for _, v := range variants {
		if v.Tag == typemap.TagNamed && v.Name == name {
			return true
		}
	}
	return false
}

// assignIdentifiers derives field identifiers from source names, suffixing
// clashes in field order.
func assignIdentifiers(fields []Field) {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	for i, id := range naming.FieldIdentifiers(names) {
		fields[i].Identifier = id
	}
}

func markOverride(f *Field) {
	f.Override = true
	f.Default = typemap.DefaultNone
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

package typemap

import (
	"fmt"

	"github.com/mark3labs/oapi-typegen/internal/diag"
	"github.com/mark3labs/oapi-typegen/internal/resolve"
	"github.com/mark3labs/oapi-typegen/internal/spec"
)

// Site describes where a schema occurs. Name is the type name an inline
// structured schema found there would receive, and the name consulted in
// the special registry when the schema is untyped.
type Site struct {
	Name    string
	Pointer string
}

// Child returns the site of a nested occurrence: the name gains suffix and
// the pointer gains segs. An anonymous site stays anonymous.
func (s Site) Child(suffix string, segs ...string) Site {
	c := Site{Pointer: s.Pointer}
	if s.Name != "" {
		c.Name = s.Name + suffix
	}
	if s.Pointer != "" {
		c.Pointer = spec.AppendPointer(s.Pointer, segs...)
	}
	return c
}

// Declarer turns an inline structured schema into a catalog entry and
// returns a reference to it.
type Declarer interface {
	Declare(name string, s *spec.Schema, pointer string) (ResolvedType, error)
}

// Mapper maps schema occurrences to ResolvedTypes.
type Mapper struct {
	cfg       Config
	overrides map[string]ResolvedType
	res       *resolve.Resolver
	warnings  *diag.Collector
	declarer  Declarer
}

// NewMapper parses the override table and returns a mapper over res.
// Warnings are recorded into warnings.
func NewMapper(cfg Config, res *resolve.Resolver, warnings *diag.Collector) (*Mapper, error) {
	if warnings == nil {
		warnings = &diag.Collector{}
	}
	if cfg.DynamicHandling == "" {
		cfg.DynamicHandling = DynamicWarn
	}
	overrides, err := cfg.ParseOverrides()
	if err != nil {
		return nil, err
	}
	return &Mapper{cfg: cfg, overrides: overrides, res: res, warnings: warnings}, nil
}

// SetDeclarer installs the hook used for inline structured schemas.
func (m *Mapper) SetDeclarer(d Declarer) { m.declarer = d }

func (m *Mapper) Config() Config { return m.cfg }

// Override returns the override type configured for name.
func (m *Mapper) Override(name string) (ResolvedType, bool) {
	t, ok := m.overrides[name]
	return t, ok
}

// Ref maps a reference to the catalog name it resolves to.
func (m *Mapper) Ref(s *spec.Schema, site Site) (ResolvedType, error) {
	name := s.RefName()
	if t, ok := m.Override(name); ok {
		return t, nil
	}
	if _, ok := m.res.Dictionary().Lookup(name); !ok {
		if t, ok := Special(name); ok {
			return t, nil
		}
		return ResolvedType{}, &diag.Error{
			Code:    diag.UnresolvedReference,
			Subject: name,
			Pointer: site.Pointer,
			Message: fmt.Sprintf("unresolved reference %s at %s: no schema named %q", s.Ref, orUnknown(site.Pointer), name),
		}
	}
	final, err := m.res.Follow(s.Ref)
	if err != nil {
		return ResolvedType{}, err
	}
	if t, ok := m.Override(final); ok {
		return t, nil
	}
	return Named(final, m.cfg.ModelsPackage()), nil
}

// Map returns the type for s at site. The result is nullable when s is
// nullable or nullable is true.
func (m *Mapper) Map(s *spec.Schema, site Site, nullable bool) (ResolvedType, error) {
	t, err := m.mapBase(s, site)
	if err != nil {
		return ResolvedType{}, err
	}
	own := s != nil && s.Nullable
	return t.WithNullable(t.Nullable || own || nullable), nil
}

func (m *Mapper) mapBase(s *spec.Schema, site Site) (ResolvedType, error) {
	if s == nil {
		return m.untyped(&spec.Schema{}, site)
	}
	if s.IsRef() {
		return m.Ref(s, site)
	}
	if ref, ok := resolve.SingleRef(s); ok {
		return m.Ref(ref, site)
	}
	if s.HasStructure() {
		return m.structured(s, site)
	}

	switch s.Kind {
	case spec.KindAbsent:
		return m.untyped(s, site)
	case spec.KindArray:
		if s.Items == nil {
			return Collection(Dynamic(JSONValue)), nil
		}
		elem, err := m.Map(s.Items, site.Child("Item", "items"), false)
		if err != nil {
			return ResolvedType{}, err
		}
		return Collection(elem), nil
	case spec.KindObject:
		return m.object(s, site)
	case spec.KindString, spec.KindNumber, spec.KindInteger, spec.KindBoolean:
		return scalarFor(s.Kind, s.Format), nil
	}
	// Unknown kinds, such as Swagger 2 "file", carry no structure.
	return Primitive(String, string(s.Kind)), nil
}

func (m *Mapper) structured(s *spec.Schema, site Site) (ResolvedType, error) {
	if m.declarer != nil && site.Name != "" {
		return m.declarer.Declare(site.Name, s, site.Pointer)
	}
	if len(s.Enum) > 0 && s.Kind.IsPrimitive() {
		return scalarFor(s.Kind, s.Format), nil
	}
	m.warnings.Warnf(diag.UnnamedInlineSchema, site.Name, site.Pointer,
		"inline schema at %s has structure but no name to declare it under; using a dynamic object", orUnknown(site.Pointer))
	return Dynamic(JSONObject), nil
}

func (m *Mapper) object(s *spec.Schema, site Site) (ResolvedType, error) {
	ap := s.AdditionalProperties
	switch {
	case ap.Schema != nil:
		value, err := m.Map(ap.Schema, site.Child("Value", "additionalProperties"), false)
		if err != nil {
			return ResolvedType{}, err
		}
		return Dictionary(Primitive(String, ""), value), nil
	case ap.Allowed != nil && !*ap.Allowed:
		return Dynamic(AnyValue), nil
	default:
		return Dictionary(Primitive(String, ""), Dynamic(JSONValue)), nil
	}
}

func (m *Mapper) untyped(s *spec.Schema, site Site) (ResolvedType, error) {
	if site.Name != "" {
		if t, ok := Special(site.Name); ok {
			return t, nil
		}
	}
	if m.cfg.InferDynamicTypes {
		return Dynamic(infer(s)), nil
	}
	subject := site.Name
	if subject == "" {
		subject = "unnamed"
	}
	switch m.cfg.DynamicHandling {
	case DynamicAllow:
		return Dynamic(AnyValue), nil
	case DynamicFail:
		return ResolvedType{}, &diag.Error{
			Code:    diag.UntypedSchemaRejected,
			Subject: subject,
			Pointer: site.Pointer,
			Message: fmt.Sprintf(`schema %q at %s has no type definition
to fix this, either:
  1. enable inferDynamicTypes to map untyped schemas to JSON values
  2. add a type override: typeOverrides[%q] = "JsonElement"
  3. declare a type for the schema in the API description`, subject, orUnknown(site.Pointer), subject),
		}
	default:
		m.warnings.Warnf(diag.DynamicTypeUsed, subject, site.Pointer,
			"schema %q has no type definition and is mapped to a fully dynamic value; enable inferDynamicTypes or add a type override", subject)
		return Dynamic(AnyValue), nil
	}
}

func infer(s *spec.Schema) Granularity {
	switch {
	case len(s.Properties) > 0 || !s.AdditionalProperties.Absent():
		return JSONObject
	case s.Items != nil:
		return JSONArray
	default:
		return JSONValue
	}
}

func scalarFor(kind spec.Kind, format string) ResolvedType {
	switch kind {
	case spec.KindString:
		switch format {
		case "date":
			return Primitive(Date, format)
		case "date-time":
			return Primitive(Instant, format)
		}
		return Primitive(String, format)
	case spec.KindInteger:
		if format == "int64" {
			return Primitive(Int64, format)
		}
		return Primitive(Int32, format)
	case spec.KindNumber:
		if format == "float" {
			return Primitive(Float32, format)
		}
		return Primitive(Float64, format)
	case spec.KindBoolean:
		return Primitive(Boolean, format)
	}
	return Primitive(String, format)
}

func orUnknown(pointer string) string {
	if pointer == "" {
		return "<unknown location>"
	}
	return pointer
}

// Package typemap maps resolved schema nodes to concrete target types.
package typemap

import (
	"strings"
)

// Tag identifies the variant of a ResolvedType.
type Tag string

const (
	TagPrimitive  Tag = "primitive"
	TagNamed      Tag = "named"
	TagCollection Tag = "collection"
	TagDictionary Tag = "dictionary"
	TagDynamic    Tag = "dynamic"
)

// Scalar is the concrete primitive a (kind, format) pair maps to.
type Scalar string

const (
	String  Scalar = "string"
	Int32   Scalar = "int32"
	Int64   Scalar = "int64"
	Float32 Scalar = "float32"
	Float64 Scalar = "float64"
	Boolean Scalar = "boolean"
	Date    Scalar = "date"
	Instant Scalar = "instant"
)

// Granularity says how much is known about a dynamic value.
type Granularity string

const (
	AnyValue      Granularity = "any"
	JSONValue     Granularity = "value"
	JSONObject    Granularity = "object"
	JSONArray     Granularity = "array"
	JSONPrimitive Granularity = "primitive"
)

// ResolvedType is the concrete type assigned to one schema occurrence. Only
// the fields of its Tag are set; two values are equal when Equal says so.
type ResolvedType struct {
	Tag         Tag           `json:"tag"`
	Scalar      Scalar        `json:"scalar,omitempty"`
	Format      string        `json:"format,omitempty"`
	Name        string        `json:"name,omitempty"`
	Package     string        `json:"package,omitempty"`
	External    bool          `json:"external,omitempty"`
	Elem        *ResolvedType `json:"elem,omitempty"`
	Key         *ResolvedType `json:"key,omitempty"`
	Granularity Granularity   `json:"granularity,omitempty"`
	Nullable    bool          `json:"nullable"`
}

func Primitive(s Scalar, format string) ResolvedType {
	return ResolvedType{Tag: TagPrimitive, Scalar: s, Format: format}
}

// Named references a catalog entry. pkg qualifies the name for emitters.
func Named(name, pkg string) ResolvedType {
	return ResolvedType{Tag: TagNamed, Name: name, Package: pkg}
}

// ExternalNamed references a type defined outside the catalog, such as a
// dotted override target.
func ExternalNamed(qualified string) ResolvedType {
	pkg, name := "", qualified
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		pkg, name = qualified[:i], qualified[i+1:]
	}
	return ResolvedType{Tag: TagNamed, Name: name, Package: pkg, External: true}
}

func Collection(elem ResolvedType) ResolvedType {
	return ResolvedType{Tag: TagCollection, Elem: &elem}
}

func Dictionary(key, value ResolvedType) ResolvedType {
	return ResolvedType{Tag: TagDictionary, Key: &key, Elem: &value}
}

func Dynamic(g Granularity) ResolvedType {
	return ResolvedType{Tag: TagDynamic, Granularity: g}
}

// WithNullable returns t with nullability set to n.
func (t ResolvedType) WithNullable(n bool) ResolvedType {
	t.Nullable = n
	return t
}

// Equal compares tag, payload and nullability.
func (t ResolvedType) Equal(o ResolvedType) bool {
	if t.Tag != o.Tag || t.Nullable != o.Nullable {
		return false
	}
	switch t.Tag {
	case TagPrimitive:
		return t.Scalar == o.Scalar && t.Format == o.Format
	case TagNamed:
		return t.Name == o.Name && t.Package == o.Package && t.External == o.External
	case TagCollection:
		return ptrEqual(t.Elem, o.Elem)
	case TagDictionary:
		return ptrEqual(t.Key, o.Key) && ptrEqual(t.Elem, o.Elem)
	case TagDynamic:
		return t.Granularity == o.Granularity
	}
	return true
}

func ptrEqual(a, b *ResolvedType) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// NamedRefs returns every catalog name t mentions, outermost first.
func (t ResolvedType) NamedRefs() []ResolvedType {
	var out []ResolvedType
	var walk func(ResolvedType)
	walk = func(x ResolvedType) {
		switch x.Tag {
		case TagNamed:
			out = append(out, x)
		case TagCollection:
			walk(*x.Elem)
		case TagDictionary:
			walk(*x.Key)
			walk(*x.Elem)
		}
	}
	walk(t)
	return out
}

// String renders t in a compact notation, e.g. List<Pet>?.
func (t ResolvedType) String() string {
	var s string
	switch t.Tag {
	case TagPrimitive:
		s = string(t.Scalar)
		if t.Format != "" && t.Format != string(t.Scalar) {
			s += "(" + t.Format + ")"
		}
	case TagNamed:
		s = t.Name
		if t.External && t.Package != "" {
			s = t.Package + "." + t.Name
		}
	case TagCollection:
		s = "List<" + t.Elem.String() + ">"
	case TagDictionary:
		s = "Map<" + t.Key.String() + ", " + t.Elem.String() + ">"
	case TagDynamic:
		s = "Dynamic(" + string(t.Granularity) + ")"
	default:
		s = "?"
	}
	if t.Nullable {
		s += "?"
	}
	return s
}

package spec

import (
    "fmt"
    "strings"
)

// Raw schema graph handed to the resolution passes. Nodes are immutable once
// BuildDocument returns; derived values are produced with Clone.

type HttpMethod string

const (
    GET     HttpMethod = "get"
    POST    HttpMethod = "post"
    PUT     HttpMethod = "put"
    DELETE  HttpMethod = "delete"
    PATCH   HttpMethod = "patch"
    HEAD    HttpMethod = "head"
    OPTIONS HttpMethod = "options"
    TRACE   HttpMethod = "trace"
)

// knownMethods lists every method an operation can be declared under.
var knownMethods = []HttpMethod{GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS, TRACE}

// ParseMethod accepts an HTTP method name in any case.
func ParseMethod(s string) (HttpMethod, error) {
    m := HttpMethod(strings.ToLower(strings.TrimSpace(s)))
    for _, known := range knownMethods {
        if m == known {
            return m, nil
        }
    }
    return "", fmt.Errorf("unknown HTTP method %q", s)
}

// Kind is the nominal type of a schema. KindAbsent means no type was declared.
type Kind string

const (
    KindAbsent  Kind = ""
    KindString  Kind = "string"
    KindNumber  Kind = "number"
    KindInteger Kind = "integer"
    KindBoolean Kind = "boolean"
    KindArray   Kind = "array"
    KindObject  Kind = "object"
)

// IsPrimitive reports whether k is string, number, integer or boolean.
func (k Kind) IsPrimitive() bool {
    switch k {
    case KindString, KindNumber, KindInteger, KindBoolean:
        return true
    }
    return false
}

const componentsPrefix = "#/components/schemas/"

// Document is the input contract of the engine.
type Document struct {
    Title           string
    Version         string
    Location        string
    Schemas         *Dictionary
    Paths           []PathItem
    SecuritySchemes []SecurityScheme
}

// UsesOAuth2 reports whether any security scheme has type oauth2.
func (d *Document) UsesOAuth2() bool {
    if d == nil {
        return false
    }
    for _, s := range d.SecuritySchemes {
        if strings.EqualFold(s.Type, "oauth2") {
            return true
        }
    }
    return false
}

type SecurityScheme struct {
    Name string
    Type string // apiKey|http|oauth2|openIdConnect
}

type PathItem struct {
    Path       string
    Operations []OperationSource
}

// OperationSource is one method entry under a path, as declared.
type OperationSource struct {
    Method      HttpMethod
    OperationID string
    Summary     string
    Description string
    Tags        []string
    Deprecated  bool
    Parameters  []Parameter
    RequestBody *RequestBody
    Responses   []Response // declaration order
}

type Parameter struct {
    Name        string
    In          string // path|query|header|cookie
    Required    bool
    Description string
    Schema      *Schema
}

type RequestBody struct {
    Required bool
    Content  []MediaType // declaration order
}

type Response struct {
    Status      string // 200, 2XX, default
    Description string
    Content     []MediaType
}

type MediaType struct {
    ContentType string
    Schema      *Schema
}

// Dictionary maps component names to schemas and remembers declaration order.
type Dictionary struct {
    names  []string
    byName map[string]*Schema
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
    return &Dictionary{byName: make(map[string]*Schema)}
}

// Put adds or replaces a named schema. A replaced name keeps its position.
func (d *Dictionary) Put(name string, s *Schema) {
    if _, exists := d.byName[name]; !exists {
        d.names = append(d.names, name)
    }
    d.byName[name] = s
}

// Lookup returns the schema registered under name.
func (d *Dictionary) Lookup(name string) (*Schema, bool) {
    if d == nil {
        return nil, false
    }
    s, ok := d.byName[name]
    return s, ok
}

// Names returns component names in declaration order.
func (d *Dictionary) Names() []string {
    if d == nil {
        return nil
    }
    return append([]string(nil), d.names...)
}

func (d *Dictionary) Len() int {
    if d == nil {
        return 0
    }
    return len(d.names)
}

type Discriminator struct {
    PropertyName string
    Mapping      map[string]string
}

// AdditionalProperties is absent when both fields are nil.
type AdditionalProperties struct {
    Allowed *bool
    Schema  *Schema
}

func (a AdditionalProperties) Absent() bool { return a.Allowed == nil && a.Schema == nil }

type Property struct {
    Name   string
    Schema *Schema
}

// Schema is a node of the schema dictionary. A schema with Ref set carries no
// other semantic content.
type Schema struct {
    Ref                  string
    Kind                 Kind
    Format               string
    Nullable             bool
    Description          string
    Default              any
    Enum                 []any
    Properties           []Property
    Required             []string
    Items                *Schema
    AllOf                []*Schema
    OneOf                []*Schema
    AnyOf                []*Schema
    Discriminator        *Discriminator
    AdditionalProperties AdditionalProperties
}

// NewRef returns a reference node for a component name or full reference string.
func NewRef(ref string) *Schema {
    if !strings.HasPrefix(ref, "#") && !strings.Contains(ref, "/") {
        ref = componentsPrefix + ref
    }
    return &Schema{Ref: ref}
}

func (s *Schema) IsRef() bool { return s != nil && s.Ref != "" }

// RefName returns the component name a reference points at: the last
// segment of the reference string.
func (s *Schema) RefName() string {
    if s == nil || s.Ref == "" {
        return ""
    }
    return RefName(s.Ref)
}

// RefName extracts the target name from a reference string such as
// "#/components/schemas/Pet", "#/definitions/Pet" or "other.yaml#/components/schemas/Pet".
func RefName(ref string) string {
    if i := strings.LastIndex(ref, "/"); i >= 0 {
        return unescapePointer(ref[i+1:])
    }
    if i := strings.LastIndex(ref, "#"); i >= 0 {
        return ref[i+1:]
    }
    return ref
}

// Property returns the named property schema.
func (s *Schema) Property(name string) (*Schema, bool) {
    if s == nil {
        return nil, false
    }
    for _, p := range s.Properties {
        if p.Name == name {
            return p.Schema, true
        }
    }
    return nil, false
}

// IsRequired reports whether name is listed in required.
func (s *Schema) IsRequired(name string) bool {
    if s == nil {
        return false
    }
    for _, r := range s.Required {
        if r == name {
            return true
        }
    }
    return false
}

// HasStructure reports whether the schema needs a named type of its own:
// an enum, a composition or declared properties.
func (s *Schema) HasStructure() bool {
    if s == nil || s.IsRef() {
        return false
    }
    return len(s.Enum) > 0 || len(s.AllOf) > 0 || len(s.OneOf) > 0 || len(s.AnyOf) > 0 || len(s.Properties) > 0
}

// Clone returns a shallow copy whose slices can be replaced without
// affecting the original.
func (s *Schema) Clone() *Schema {
    if s == nil {
        return nil
    }
    c := *s
    c.Enum = append([]any(nil), s.Enum...)
    c.Properties = append([]Property(nil), s.Properties...)
    c.Required = append([]string(nil), s.Required...)
    c.AllOf = append([]*Schema(nil), s.AllOf...)
    c.OneOf = append([]*Schema(nil), s.OneOf...)
    c.AnyOf = append([]*Schema(nil), s.AnyOf...)
    return &c
}

func unescapePointer(seg string) string {
    seg = strings.ReplaceAll(seg, "~1", "/")
    return strings.ReplaceAll(seg, "~0", "~")
}

func escapePointer(seg string) string {
    seg = strings.ReplaceAll(seg, "~", "~0")
    return strings.ReplaceAll(seg, "/", "~1")
}

// Pointer joins segments into a JSON pointer fragment, e.g. "#/components/schemas/Pet".
func Pointer(segs ...string) string {
    return AppendPointer("#", segs...)
}

// AppendPointer extends a pointer fragment with more segments.
func AppendPointer(base string, segs ...string) string {
    var b strings.Builder
    b.WriteString(base)
    for _, s := range segs {
        b.WriteString("/")
        b.WriteString(escapePointer(s))
    }
    return b.String()
}

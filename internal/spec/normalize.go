package spec

import (
    "context"
    "fmt"
    "regexp"
    "strings"

    "github.com/getkin/kin-openapi/openapi3"
)

// BuildOption configures which operations BuildDocument keeps.
type BuildOption func(*buildConfig)

type buildConfig struct {
    includeTags map[string]struct{}
    excludeTags map[string]struct{}
    methods     map[HttpMethod]struct{}
    pathRes     []*regexp.Regexp
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) BuildOption {
    return func(c *buildConfig) {
        if len(tags) == 0 {
            return
        }
        if c.includeTags == nil {
            c.includeTags = make(map[string]struct{}, len(tags))
        }
        for _, t := range tags {
            t = strings.TrimSpace(t)
            if t == "" {
                continue
            }
            c.includeTags[t] = struct{}{}
        }
    }
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) BuildOption {
    return func(c *buildConfig) {
        if len(tags) == 0 {
            return
        }
        if c.excludeTags == nil {
            c.excludeTags = make(map[string]struct{}, len(tags))
        }
        for _, t := range tags {
            t = strings.TrimSpace(t)
            if t == "" {
                continue
            }
            c.excludeTags[t] = struct{}{}
        }
    }
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) BuildOption {
    return func(c *buildConfig) {
        if len(methods) == 0 {
            return
        }
        if c.methods == nil {
            c.methods = make(map[HttpMethod]struct{}, len(methods))
        }
        for _, m := range methods {
            c.methods[m] = struct{}{}
        }
    }
}

// WithPathPatterns keeps only operations whose path matches at least one of the
// provided regular expressions. An invalid pattern matches nothing.
func WithPathPatterns(patterns []string) BuildOption {
    return func(c *buildConfig) {
        for _, p := range patterns {
            p = strings.TrimSpace(p)
            if p == "" {
                continue
            }
            re, err := regexp.Compile(p)
            if err != nil {
                re = regexp.MustCompile("a^$")
            }
            c.pathRes = append(c.pathRes, re)
        }
    }
}

// BuildDocument converts a loaded source into the raw schema graph. Schemas,
// paths, content entries and responses keep declaration order; filters apply
// to operations only.
func BuildDocument(ctx context.Context, src *Source, opts ...BuildOption) (*Document, error) {
    if src == nil || src.Doc == nil {
        return nil, fmt.Errorf("nil document")
    }
    if err := ctx.Err(); err != nil {
        return nil, err
    }

    cfg := &buildConfig{}
    for _, opt := range opts {
        opt(cfg)
    }

    doc := src.Doc
    n := &normalizer{order: src.Order}
    out := &Document{
        Location: src.Location,
        Schemas:  NewDictionary(),
    }
    if doc.Info != nil {
        out.Title = safeStr(doc.Info.Title)
        out.Version = safeStr(doc.Info.Version)
    }

    if doc.Components != nil {
        names := make([]string, 0, len(doc.Components.Schemas))
        for name := range doc.Components.Schemas {
            names = append(names, name)
        }
        for _, name := range n.order.Ordered(names, "components", "schemas") {
            ref := doc.Components.Schemas[name]
            if ref == nil {
                continue
            }
            out.Schemas.Put(name, n.schema(ref, "components", "schemas", name))
        }

        schemes := make([]string, 0, len(doc.Components.SecuritySchemes))
        for name := range doc.Components.SecuritySchemes {
            schemes = append(schemes, name)
        }
        for _, name := range n.order.Ordered(schemes, "components", "securitySchemes") {
            ref := doc.Components.SecuritySchemes[name]
            if ref == nil || ref.Value == nil {
                continue
            }
            out.SecuritySchemes = append(out.SecuritySchemes, SecurityScheme{Name: name, Type: safeStr(ref.Value.Type)})
        }
    }

    if doc.Paths != nil {
        pathKeys := make([]string, 0, len(doc.Paths))
        for p := range doc.Paths {
            pathKeys = append(pathKeys, p)
        }
        for _, p := range n.order.Ordered(pathKeys, "paths") {
            item := doc.Paths[p]
            if item == nil {
                continue
            }
            pi := PathItem{Path: p}

            // Supported HTTP methods in a stable order
            ops := []struct {
                m HttpMethod
                o *openapi3.Operation
            }{
                {GET, item.Get},
                {POST, item.Post},
                {PUT, item.Put},
                {DELETE, item.Delete},
                {PATCH, item.Patch},
                {HEAD, item.Head},
                {OPTIONS, item.Options},
                {TRACE, item.Trace},
            }

            for _, pair := range ops {
                if pair.o == nil {
                    continue
                }
                if len(cfg.methods) > 0 {
                    if _, ok := cfg.methods[pair.m]; !ok {
                        continue
                    }
                }
                if len(cfg.pathRes) > 0 {
                    matched := false
                    for _, re := range cfg.pathRes {
                        if re.MatchString(p) {
                            matched = true
                            break
                        }
                    }
                    if !matched {
                        continue
                    }
                }

                tags := make([]string, 0, len(pair.o.Tags))
                for _, t := range pair.o.Tags {
                    t = strings.TrimSpace(t)
                    if t != "" {
                        tags = append(tags, t)
                    }
                }
                if !allowByTags(tags, cfg) {
                    continue
                }

                pi.Operations = append(pi.Operations, n.operation(p, pair.m, item, pair.o, tags))
            }
            if len(pi.Operations) > 0 {
                out.Paths = append(out.Paths, pi)
            }
        }
    }

    return out, nil
}

type normalizer struct {
    order *KeyOrder
}

func (n *normalizer) operation(path string, method HttpMethod, item *openapi3.PathItem, op *openapi3.Operation, tags []string) OperationSource {
    base := []string{"paths", path, string(method)}
    src := OperationSource{
        Method:      method,
        OperationID: safeStr(op.OperationID),
        Summary:     safeStr(op.Summary),
        Description: safeStr(op.Description),
        Tags:        tags,
        Deprecated:  op.Deprecated,
    }

    // Merge parameters: path-level first, overridden in place by op-level.
    var params []Parameter
    index := make(map[string]int)
    for i, pref := range item.Parameters {
        pm, ok := n.parameter(pref, "paths", path, "parameters", fmt.Sprint(i))
        if !ok {
            continue
        }
        index[paramKey(pm.In, pm.Name)] = len(params)
        params = append(params, pm)
    }
    for i, pref := range op.Parameters {
        pm, ok := n.parameter(pref, append(base, "parameters", fmt.Sprint(i))...)
        if !ok {
            continue
        }
        if at, exists := index[paramKey(pm.In, pm.Name)]; exists {
            params[at] = pm
            continue
        }
        index[paramKey(pm.In, pm.Name)] = len(params)
        params = append(params, pm)
    }
    src.Parameters = params

    if op.RequestBody != nil && op.RequestBody.Value != nil {
        src.RequestBody = &RequestBody{
            Required: op.RequestBody.Value.Required,
            Content:  n.content(op.RequestBody.Value.Content, append(base, "requestBody", "content")...),
        }
    }

    if op.Responses != nil {
        // In kin-openapi v0.116, Responses is a map[string]*ResponseRef
        codes := make([]string, 0, len(op.Responses))
        for code := range op.Responses {
            codes = append(codes, code)
        }
        for _, code := range n.order.Ordered(codes, append(base, "responses")...) {
            rref := op.Responses[code]
            if rref == nil || rref.Value == nil {
                continue
            }
            desc := ""
            if rref.Value.Description != nil {
                desc = safeStr(*rref.Value.Description)
            }
            src.Responses = append(src.Responses, Response{
                Status:      code,
                Description: desc,
                Content:     n.content(rref.Value.Content, append(base, "responses", code, "content")...),
            })
        }
    }
    return src
}

func (n *normalizer) parameter(pref *openapi3.ParameterRef, path ...string) (Parameter, bool) {
    if pref == nil || pref.Value == nil {
        return Parameter{}, false
    }
    p := pref.Value
    pm := Parameter{
        Name:        safeStr(p.Name),
        In:          safeStr(p.In),
        Required:    p.Required,
        Description: safeStr(p.Description),
    }
    if p.Schema != nil {
        pm.Schema = n.schema(p.Schema, append(path, "schema")...)
    } else if len(p.Content) > 0 {
        if media := n.content(p.Content, append(path, "content")...); len(media) > 0 {
            pm.Schema = media[0].Schema
        }
    }
    return pm, true
}

func (n *normalizer) content(content openapi3.Content, path ...string) []MediaType {
    if len(content) == 0 {
        return nil
    }
    keys := make([]string, 0, len(content))
    for k := range content {
        keys = append(keys, k)
    }
    out := make([]MediaType, 0, len(keys))
    for _, mime := range n.order.Ordered(keys, path...) {
        mt := content[mime]
        if mt == nil {
            continue
        }
        var schema *Schema
        if mt.Schema != nil {
            schema = n.schema(mt.Schema, append(path, mime, "schema")...)
        }
        out = append(out, MediaType{ContentType: mime, Schema: schema})
    }
    return out
}

// schema converts a kin-openapi schema ref. References are preserved and not
// expanded, so cycles in the source graph never recurse here.
func (n *normalizer) schema(ref *openapi3.SchemaRef, path ...string) *Schema {
    if ref == nil {
        return nil
    }
    if ref.Ref != "" {
        return &Schema{Ref: ref.Ref}
    }
    if ref.Value == nil {
        return &Schema{}
    }
    v := ref.Value
    s := &Schema{
        Kind:        Kind(safeStr(v.Type)),
        Format:      safeStr(v.Format),
        Nullable:    v.Nullable,
        Description: safeStr(v.Description),
        Default:     v.Default,
        Required:    append([]string(nil), v.Required...),
    }
    if len(v.Enum) > 0 {
        s.Enum = append([]any(nil), v.Enum...)
    }
    if v.Items != nil {
        s.Items = n.schema(v.Items, append(path, "items")...)
    }
    if len(v.Properties) > 0 {
        names := make([]string, 0, len(v.Properties))
        for name := range v.Properties {
            names = append(names, name)
        }
        for _, name := range n.order.Ordered(names, append(path, "properties")...) {
            s.Properties = append(s.Properties, Property{
                Name:   name,
                Schema: n.schema(v.Properties[name], append(path, "properties", name)...),
            })
        }
    }
    for i, r := range v.AllOf {
        s.AllOf = append(s.AllOf, n.schema(r, append(path, "allOf", fmt.Sprint(i))...))
    }
    for i, r := range v.OneOf {
        s.OneOf = append(s.OneOf, n.schema(r, append(path, "oneOf", fmt.Sprint(i))...))
    }
    for i, r := range v.AnyOf {
        s.AnyOf = append(s.AnyOf, n.schema(r, append(path, "anyOf", fmt.Sprint(i))...))
    }
    if v.Discriminator != nil && v.Discriminator.PropertyName != "" {
        d := &Discriminator{PropertyName: v.Discriminator.PropertyName}
        if len(v.Discriminator.Mapping) > 0 {
            d.Mapping = make(map[string]string, len(v.Discriminator.Mapping))
            for k, val := range v.Discriminator.Mapping {
                d.Mapping[k] = val
            }
        }
        s.Discriminator = d
    }
    if v.AdditionalProperties.Has != nil {
        allowed := *v.AdditionalProperties.Has
        s.AdditionalProperties.Allowed = &allowed
    }
    if v.AdditionalProperties.Schema != nil {
        s.AdditionalProperties.Allowed = nil
        s.AdditionalProperties.Schema = n.schema(v.AdditionalProperties.Schema, append(path, "additionalProperties")...)
    }
    return s
}

func allowByTags(tags []string, cfg *buildConfig) bool {
    if len(cfg.includeTags) > 0 {
        ok := false
        for _, t := range tags {
            if _, yes := cfg.includeTags[t]; yes {
                ok = true
                break
            }
        }
        if !ok {
            return false
        }
    }
    for _, t := range tags {
        if _, blocked := cfg.excludeTags[t]; blocked {
            return false
        }
    }
    return true
}

func paramKey(in, name string) string { return in + ":" + name }

func safeStr(s string) string { return strings.TrimSpace(s) }

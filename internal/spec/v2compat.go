package spec

import (
    "fmt"
    "sort"
    "strings"

    "gopkg.in/yaml.v3"
)

// v2Rewrite records one change made to a Swagger 2.0 operation before conversion.
type v2Rewrite struct {
    Method string
    Path   string
    Action string
}

func (r v2Rewrite) String() string {
    return fmt.Sprintf("%s %s: %s", strings.ToUpper(r.Method), r.Path, r.Action)
}

var v2Methods = map[string]bool{
    "get": true, "put": true, "post": true, "delete": true,
    "options": true, "head": true, "patch": true,
}

// rewriteV2Operations makes Swagger 2.0 operations that kin-openapi refuses to convert
// convertible:
//   - several body parameters collapse into one object body, one property per parameter;
//   - body parameters mixed with formData become formData, and the operation consumes
//     multipart/form-data.
//
// Paths and methods are visited in lexical order so the rewritten bytes are stable.
// On a parse error the input is returned untouched.
func rewriteV2Operations(data []byte) ([]byte, []v2Rewrite, error) {
    var doc map[string]any
    if err := yaml.Unmarshal(data, &doc); err != nil {
        return data, nil, err
    }
    paths, _ := doc["paths"].(map[string]any)
    var rewrites []v2Rewrite
    for _, path := range sortedKeys(paths) {
        item, _ := paths[path].(map[string]any)
        for _, method := range sortedKeys(item) {
            if !v2Methods[strings.ToLower(method)] {
                continue
            }
            op, _ := item[method].(map[string]any)
            if op == nil {
                continue
            }
            if action := rewriteV2Operation(op); action != "" {
                rewrites = append(rewrites, v2Rewrite{Method: method, Path: path, Action: action})
            }
        }
    }
    if len(rewrites) == 0 {
        return data, nil, nil
    }
    out, err := yaml.Marshal(doc)
    if err != nil {
        return data, nil, err
    }
    return out, rewrites, nil
}

// rewriteV2Operation edits op in place and describes what it did, or returns "".
func rewriteV2Operation(op map[string]any) string {
    params, _ := op["parameters"].([]any)
    var body, form int
    for _, p := range params {
        switch paramLocation(p) {
        case "body":
            body++
        case "formdata":
            form++
        }
    }
    switch {
    case body > 0 && form > 0:
        kept := make([]any, 0, len(params))
        for _, p := range params {
            pm, _ := p.(map[string]any)
            if pm == nil {
                continue
            }
            if paramLocation(pm) == "body" {
                pm = bodyParamAsFormData(pm)
            }
            kept = append(kept, pm)
        }
        op["parameters"] = kept
        consumes, _ := op["consumes"].([]any)
        if !containsString(consumes, "multipart/form-data") {
            op["consumes"] = append(consumes, "multipart/form-data")
        }
        return fmt.Sprintf("converted %d body parameter(s) to formData", body)
    case body > 1:
        props := map[string]any{}
        var required []any
        rest := make([]any, 0, len(params))
        for _, p := range params {
            pm, _ := p.(map[string]any)
            if pm == nil || paramLocation(pm) != "body" {
                rest = append(rest, p)
                continue
            }
            name := paramName(pm)
            props[name] = paramSchema(pm)
            if req, _ := pm["required"].(bool); req {
                required = append(required, name)
            }
        }
        schema := map[string]any{"type": "object", "properties": props}
        if len(required) > 0 {
            schema["required"] = required
        }
        merged := map[string]any{"in": "body", "name": "body", "schema": schema}
        if len(required) > 0 {
            merged["required"] = true
        }
        op["parameters"] = append([]any{merged}, rest...)
        return fmt.Sprintf("merged %d body parameters into one object body", body)
    }
    return ""
}

func paramLocation(p any) string {
    pm, _ := p.(map[string]any)
    if pm == nil {
        return ""
    }
    in, _ := pm["in"].(string)
    return strings.ToLower(in)
}

func paramName(pm map[string]any) string {
    if name, _ := pm["name"].(string); name != "" {
        return name
    }
    return "field"
}

// paramSchema returns the body schema, or one built from the v2 type/items/format
// keys, defaulting to string.
func paramSchema(pm map[string]any) map[string]any {
    if sch, ok := pm["schema"].(map[string]any); ok {
        return sch
    }
    typ, _ := pm["type"].(string)
    if typ == "" {
        return map[string]any{"type": "string"}
    }
    out := map[string]any{"type": typ}
    if items, ok := pm["items"].(map[string]any); ok {
        out["items"] = items
    }
    if format, _ := pm["format"].(string); format != "" {
        out["format"] = format
    }
    return out
}

// bodyParamAsFormData keeps name, description and required; a referenced body
// schema has no formData form and degrades to string.
func bodyParamAsFormData(pm map[string]any) map[string]any {
    out := map[string]any{"in": "formData", "name": paramName(pm)}
    if desc, _ := pm["description"].(string); desc != "" {
        out["description"] = desc
    }
    if req, ok := pm["required"].(bool); ok {
        out["required"] = req
    }
    src := pm
    if sch, ok := pm["schema"].(map[string]any); ok {
        src = sch
    }
    typ, _ := src["type"].(string)
    if typ == "" {
        typ = "string"
    }
    out["type"] = typ
    if items, ok := src["items"].(map[string]any); ok {
        out["items"] = items
    }
    if format, _ := src["format"].(string); format != "" {
        out["format"] = format
    }
    return out
}

func containsString(list []any, want string) bool {
    for _, v := range list {
        if s, ok := v.(string); ok && s == want {
            return true
        }
    }
    return false
}

func sortedKeys(m map[string]any) []string {
    keys := make([]string, 0, len(m))
    for k := range m {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    return keys
}

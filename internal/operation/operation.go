// Package operation extracts callable operation signatures from the path
// graph of a document.
package operation

import (
	"strconv"
	"strings"

	"github.com/mark3labs/oapi-typegen/internal/diag"
	"github.com/mark3labs/oapi-typegen/internal/naming"
	"github.com/mark3labs/oapi-typegen/internal/spec"
	"github.com/mark3labs/oapi-typegen/internal/typemap"
)

type Parameter struct {
	Name        string               `json:"name"`
	Identifier  string               `json:"identifier"`
	In          string               `json:"in"`
	Required    bool                 `json:"required"`
	Description string               `json:"description,omitempty"`
	Type        typemap.ResolvedType `json:"type"`
}

// Payload is a request or response body.
type Payload struct {
	ContentType string               `json:"contentType"`
	Type        typemap.ResolvedType `json:"type"`
	Required    bool                 `json:"required,omitempty"`
	Status      string               `json:"status,omitempty"`
}

type Operation struct {
	ID          string          `json:"id"`
	Synthesized bool            `json:"synthesizedId,omitempty"`
	Method      spec.HttpMethod `json:"method"`
	Path        string          `json:"path"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Deprecated  bool            `json:"deprecated,omitempty"`
	Parameters  []Parameter     `json:"parameters,omitempty"`
	Request     *Payload        `json:"request,omitempty"`
	Response    *Payload        `json:"response,omitempty"`
}

// Types returns every type the operation signature mentions.
func (o Operation) Types() []typemap.ResolvedType {
	var out []typemap.ResolvedType
	for _, p := range o.Parameters {
		out = append(out, p.Type)
	}
	if o.Request != nil {
		out = append(out, o.Request.Type)
	}
	if o.Response != nil {
		out = append(out, o.Response.Type)
	}
	return out
}

// Extract builds one Operation per path and method, in document order.
// Inline structured schemas are declared through the mapper's declarer.
func Extract(doc *spec.Document, mapper *typemap.Mapper, warnings *diag.Collector) ([]Operation, error) {
	if warnings == nil {
		warnings = &diag.Collector{}
	}
	var ops []Operation
	seen := make(map[string]string)
	for _, item := range doc.Paths {
		for _, src := range item.Operations {
			op, err := extract(item.Path, src, mapper)
			if err != nil {
				return nil, err
			}
			where := strings.ToUpper(string(op.Method)) + " " + op.Path
			if prev, dup := seen[op.ID]; dup {
				warnings.Warnf(diag.DuplicateOperationID, op.ID, spec.Pointer("paths", op.Path, string(op.Method)),
					"operation id %q is used by both %s and %s", op.ID, prev, where)
			} else {
				seen[op.ID] = where
			}
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func extract(path string, src spec.OperationSource, mapper *typemap.Mapper) (Operation, error) {
	op := Operation{
		ID:          strings.TrimSpace(src.OperationID),
		Method:      src.Method,
		Path:        path,
		Summary:     src.Summary,
		Description: src.Description,
		Tags:        append([]string(nil), src.Tags...),
		Deprecated:  src.Deprecated,
	}
	if op.ID == "" {
		op.ID = naming.OperationID(string(src.Method), path)
		op.Synthesized = true
	}
	owner := naming.Pascal(op.ID)
	base := spec.Pointer("paths", path, string(src.Method))

	for i, p := range src.Parameters {
		site := typemap.Site{
			Name:    owner + naming.Pascal(p.Name),
			Pointer: spec.AppendPointer(base, "parameters", strconv.Itoa(i)),
		}
		t, err := mapper.Map(p.Schema, site, !p.Required)
		if err != nil {
			return Operation{}, err
		}
		op.Parameters = append(op.Parameters, Parameter{
			Name:        p.Name,
			Identifier:  naming.Camel(p.Name),
			In:          p.In,
			Required:    p.Required,
			Description: p.Description,
			Type:        t.WithNullable(!p.Required),
		})
	}

	if body := src.RequestBody; body != nil {
		if mt, ok := firstWithSchema(body.Content); ok {
			site := typemap.Site{
				Name:    owner + "Request",
				Pointer: spec.AppendPointer(base, "requestBody", "content", mt.ContentType, "schema"),
			}
			t, err := mapper.Map(mt.Schema, site, !body.Required)
			if err != nil {
				return Operation{}, err
			}
			op.Request = &Payload{ContentType: mt.ContentType, Type: t, Required: body.Required}
		}
	}

	if resp, ok := firstSuccess(src.Responses); ok {
		if mt, ok := firstWithSchema(resp.Content); ok {
			site := typemap.Site{
				Name:    owner + "Response",
				Pointer: spec.AppendPointer(base, "responses", resp.Status, "content", mt.ContentType, "schema"),
			}
			t, err := mapper.Map(mt.Schema, site, false)
			if err != nil {
				return Operation{}, err
			}
			op.Response = &Payload{ContentType: mt.ContentType, Type: t, Status: resp.Status}
		}
	}
	return op, nil
}

// firstSuccess returns the first declared response whose status starts with 2.
func firstSuccess(responses []spec.Response) (spec.Response, bool) {
	for _, r := range responses {
		if strings.HasPrefix(r.Status, "2") {
			return r, true
		}
	}
	return spec.Response{}, false
}

func firstWithSchema(content []spec.MediaType) (spec.MediaType, bool) {
	if len(content) == 0 || content[0].Schema == nil {
		return spec.MediaType{}, false
	}
	return content[0], true
}

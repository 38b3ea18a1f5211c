package spec

import (
    "strings"
    "testing"
)

func TestKeyOrder_Ordered(t *testing.T) {
    t.Parallel()
    o := ParseKeyOrder([]byte(`
paths:
  /b: {}
  /a/{id}: {}
  "/c~d": {}
components:
  schemas:
    Zeta: {}
    Alpha: {}
`))

    got := o.Ordered([]string{"/a/{id}", "/b", "/c~d"}, "paths")
    if strings.Join(got, " ") != "/b /a/{id} /c~d" {
        t.Fatalf("paths: got %v", got)
    }
    got = o.Ordered([]string{"Alpha", "Zeta", "Late", "Extra"}, "components", "schemas")
    if strings.Join(got, " ") != "Zeta Alpha Extra Late" {
        t.Fatalf("unknown keys should follow lexically: got %v", got)
    }
}

func TestKeyOrder_EscapedSegments(t *testing.T) {
    t.Parallel()
    o := ParseKeyOrder([]byte(`
paths:
  /pets/{id}:
    get:
      responses:
        "404": {}
        "200": {}
`))
    got := o.Ordered([]string{"200", "404"}, "paths", "/pets/{id}", "get", "responses")
    if strings.Join(got, " ") != "404 200" {
        t.Fatalf("responses: got %v", got)
    }
}

func TestKeyOrder_UnparseableFallsBackToLexical(t *testing.T) {
    t.Parallel()
    o := ParseKeyOrder([]byte("::: not yaml ["))
    got := o.Ordered([]string{"b", "a"}, "paths")
    if strings.Join(got, " ") != "a b" {
        t.Fatalf("fallback: got %v", got)
    }
    var nilOrder *KeyOrder
    if got := nilOrder.Ordered([]string{"y", "x"}); strings.Join(got, " ") != "x y" {
        t.Fatalf("nil order: got %v", got)
    }
}

func TestPointer(t *testing.T) {
    t.Parallel()
    if got := Pointer("paths", "/pets/{id}", "get"); got != "#/paths/~1pets~1{id}/get" {
        t.Fatalf("pointer: got %s", got)
    }
    if got := AppendPointer(Pointer("components", "schemas", "A~B"), "properties", "x"); got != "#/components/schemas/A~0B/properties/x" {
        t.Fatalf("append: got %s", got)
    }
}

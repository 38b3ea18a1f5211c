package spec

import (
    "sort"
    "strconv"

    "gopkg.in/yaml.v3"
)

// KeyOrder remembers the declaration order of mapping keys in the raw
// document. kin-openapi decodes mappings into Go maps, which drops the order
// that "first declared content type" and "first 2xx response" depend on.
type KeyOrder struct {
    keys map[string][]string
}

// NewKeyOrder indexes every mapping node below root by its JSON pointer.
func NewKeyOrder(root *yaml.Node) *KeyOrder {
    o := &KeyOrder{keys: make(map[string][]string)}
    if root == nil {
        return o
    }
    node := root
    if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
        node = node.Content[0]
    }
    o.walk(node, nil)
    return o
}

// ParseKeyOrder indexes raw YAML or JSON bytes. Unparseable input yields an
// empty index, which falls back to lexical order.
func ParseKeyOrder(data []byte) *KeyOrder {
    var root yaml.Node
    if err := yaml.Unmarshal(data, &root); err != nil {
        return &KeyOrder{keys: map[string][]string{}}
    }
    return NewKeyOrder(&root)
}

func (o *KeyOrder) walk(n *yaml.Node, path []string) {
    switch n.Kind {
    case yaml.MappingNode:
        keys := make([]string, 0, len(n.Content)/2)
        for i := 0; i+1 < len(n.Content); i += 2 {
            k := n.Content[i].Value
            keys = append(keys, k)
            o.walk(n.Content[i+1], append(path, k))
        }
        o.keys[Pointer(path...)] = keys
    case yaml.SequenceNode:
        for i, child := range n.Content {
            o.walk(child, append(path, strconv.Itoa(i)))
        }
    case yaml.AliasNode:
        if n.Alias != nil {
            o.walk(n.Alias, path)
        }
    }
}

// Ordered returns present in declaration order for the mapping at path.
// Keys missing from the index follow in lexical order.
func (o *KeyOrder) Ordered(present []string, path ...string) []string {
    set := make(map[string]struct{}, len(present))
    for _, k := range present {
        set[k] = struct{}{}
    }
    out := make([]string, 0, len(present))
    if o != nil {
        for _, k := range o.keys[Pointer(path...)] {
            if _, ok := set[k]; ok {
                out = append(out, k)
                delete(set, k)
            }
        }
    }
    rest := make([]string, 0, len(set))
    for k := range set {
        rest = append(rest, k)
    }
    sort.Strings(rest)
    return append(out, rest...)
}

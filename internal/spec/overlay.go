package spec

import (
    "fmt"

    overlayloader "github.com/speakeasy-api/openapi-overlay/pkg/loader"
    "gopkg.in/yaml.v3"
)

// applyOverlay applies the OpenAPI Overlay document at overlayPath to raw
// and returns the rewritten document as YAML.
func applyOverlay(raw []byte, overlayPath string) ([]byte, error) {
    ov, err := overlayloader.LoadOverlay(overlayPath)
    if err != nil {
        return nil, fmt.Errorf("load overlay %s: %w", overlayPath, err)
    }
    if err := ov.Validate(); err != nil {
        return nil, fmt.Errorf("invalid overlay %s: %w", overlayPath, err)
    }

    var root yaml.Node
    if err := yaml.Unmarshal(raw, &root); err != nil {
        return nil, fmt.Errorf("parse spec for overlay: %w", err)
    }
    if err := ov.ApplyTo(&root); err != nil {
        return nil, fmt.Errorf("apply overlay %s: %w", overlayPath, err)
    }
    out, err := yaml.Marshal(&root)
    if err != nil {
        return nil, fmt.Errorf("serialize overlayed spec: %w", err)
    }
    return out, nil
}

package typemap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/oapi-typegen/internal/diag"
)

// DynamicHandling selects what happens to schemas without a declared type.
type DynamicHandling string

const (
	DynamicAllow DynamicHandling = "ALLOW"
	DynamicWarn  DynamicHandling = "WARN"
	DynamicFail  DynamicHandling = "FAIL"
)

// ParseDynamicHandling accepts ALLOW, WARN or FAIL in any case. The empty
// string selects WARN.
func ParseDynamicHandling(s string) (DynamicHandling, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return DynamicWarn, nil
	case "ALLOW":
		return DynamicAllow, nil
	case "WARN":
		return DynamicWarn, nil
	case "FAIL":
		return DynamicFail, nil
	}
	return "", fmt.Errorf("invalid dynamic type handling %q (want ALLOW, WARN or FAIL)", s)
}

// Config is the mapping policy.
type Config struct {
	BasePackage       string
	Overrides         map[string]string
	DynamicHandling   DynamicHandling
	InferDynamicTypes bool
	GenerateDefaults  bool
}

// DefaultConfig returns WARN handling with default values enabled.
func DefaultConfig() Config {
	return Config{DynamicHandling: DynamicWarn, GenerateDefaults: true}
}

// ModelsPackage is the package that qualifies catalog references.
func (c Config) ModelsPackage() string {
	if c.BasePackage == "" {
		return "models"
	}
	return c.BasePackage + ".models"
}

// ParseOverrides parses every override descriptor, in name order so the
// first reported error is stable.
func (c Config) ParseOverrides() (map[string]ResolvedType, error) {
	out := make(map[string]ResolvedType, len(c.Overrides))
	names := make([]string, 0, len(c.Overrides))
	for name := range c.Overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t, err := ParseOverride(c.Overrides[name], c.ModelsPackage())
		if err != nil {
			return nil, &diag.Error{
				Code:    diag.InvalidOverride,
				Subject: name,
				Message: fmt.Sprintf("type override for %q: %v", name, err),
				Cause:   err,
			}
		}
		out[name] = t
	}
	return out, nil
}

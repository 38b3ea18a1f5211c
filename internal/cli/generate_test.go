package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureConfig(t *testing.T) **GenerateConfig {
	t.Helper()
	var captured *GenerateConfig
	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })
	return &captured
}

func TestGenerateConfigFromFlags(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	got := captureConfig(t)

	root.SetArgs([]string{
		"--verbose",
		"--log-format", "JSON",
		"generate",
		"--input", "spec.yaml",
		"--out", "./build",
		"--overlay", "overlay.yaml",
		"--base-package", "com.example",
		"--dynamic-type-handling", "fail",
		"--infer-dynamic-types",
		"--default-values=false",
		"--type-override", "Metadata=JsonObject",
		"--type-override", "Money=com.example.Money",
		"--include-tags", "foo,bar",
		"--exclude-tags", "baz",
		"--methods", "GET,post",
		"--paths", "^/pets/{a,b}$",
		"--paths", "^/store",
		"--skip-validation",
		"--fail-on-warnings",
		"--dry-run",
		"--force",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	captured := *got
	if captured == nil {
		t.Fatalf("expected config to be captured")
	}

	if captured.Input != "spec.yaml" {
		t.Errorf("input mismatch: got %q", captured.Input)
	}
	if captured.Out != "./build" {
		t.Errorf("out mismatch: got %q", captured.Out)
	}
	if captured.Overlay != "overlay.yaml" {
		t.Errorf("overlay mismatch: got %q", captured.Overlay)
	}
	if captured.BasePackage != "com.example" {
		t.Errorf("base package mismatch: got %q", captured.BasePackage)
	}
	if captured.DynamicTypeHandling != "FAIL" {
		t.Errorf("dynamic type handling: got %q", captured.DynamicTypeHandling)
	}
	if !captured.InferDynamicTypes {
		t.Errorf("expected infer-dynamic-types true")
	}
	if captured.GenerateDefaults {
		t.Errorf("expected default values off")
	}
	if captured.TypeOverrides["Metadata"] != "JsonObject" || captured.TypeOverrides["Money"] != "com.example.Money" {
		t.Errorf("type overrides mismatch: got %v", captured.TypeOverrides)
	}
	if want := []string{"foo", "bar"}; !equalStringSlices(captured.IncludeTags, want) {
		t.Errorf("include tags mismatch: got %v", captured.IncludeTags)
	}
	if want := []string{"baz"}; !equalStringSlices(captured.ExcludeTags, want) {
		t.Errorf("exclude tags mismatch: got %v", captured.ExcludeTags)
	}
	if captured.ValidateSpec {
		t.Errorf("expected validation skipped")
	}
	if !captured.FailOnWarnings {
		t.Errorf("expected fail-on-warnings true")
	}
	if !captured.DryRun {
		t.Errorf("expected dry-run true")
	}
	if !captured.Force {
		t.Errorf("expected force true")
	}
	if !captured.Verbose {
		t.Errorf("expected verbose true")
	}
	if captured.LogFormat != "json" {
		t.Errorf("log format: got %q", captured.LogFormat)
	}
	if want := []string{"GET", "post"}; !equalStringSlices(captured.Methods, want) {
		t.Errorf("methods mismatch: got %v", captured.Methods)
	}
	if want := []string{"^/pets/{a,b}$", "^/store"}; !equalStringSlices(captured.PathPatterns, want) {
		t.Errorf("path patterns must not be split on commas: got %v", captured.PathPatterns)
	}
	methods, err := captured.methodFilter()
	if err != nil || len(methods) != 2 || methods[0] != "get" || methods[1] != "post" {
		t.Errorf("method filter: got %v %v", methods, err)
	}

	types := captured.typesConfig()
	if types.ModelsPackage() != "com.example.models" {
		t.Errorf("models package: got %q", types.ModelsPackage())
	}
}

func TestGenerateConfigDefaults(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	got := captureConfig(t)
	root.SetArgs([]string{"generate", "--input", "spec.yaml"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	captured := *got
	if captured.DynamicTypeHandling != "WARN" || !captured.GenerateDefaults || !captured.ValidateSpec {
		t.Fatalf("unexpected defaults: %+v", captured)
	}
	if captured.InferDynamicTypes || captured.FailOnWarnings || len(captured.TypeOverrides) != 0 {
		t.Fatalf("unexpected defaults: %+v", captured)
	}
	if captured.LogFormat != "text" || len(captured.Methods) != 0 || len(captured.PathPatterns) != 0 {
		t.Fatalf("unexpected defaults: %+v", captured)
	}
}

func TestGenerateConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`input: config-spec.yaml
out: from-config
basePackage: cfg.pkg
dynamicTypeHandling: ALLOW
generateDefaultValues: false
typeOverrides:
  Metadata: JsonElement
  Extra: Any
includeTags:
  - cfgFoo
excludeTags: cfgBar
methods: [put]
paths: ^/a,b
logFormat: json
validateSpec: false
dryRun: true
force: false
verbose: true
`) + "\n"

	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	got := captureConfig(t)

	root.SetArgs([]string{
		"--config", configPath,
		"generate",
		"--input", "flag-spec.yaml",
		"--include-tags", "flagTag",
		"--type-override", "Metadata=JsonObject",
		"--dry-run=false",
		"--force",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	captured := *got
	if captured == nil {
		t.Fatalf("expected config to be captured")
	}

	if captured.Input != "flag-spec.yaml" {
		t.Errorf("input: want %q got %q", "flag-spec.yaml", captured.Input)
	}
	if captured.Out != "from-config" {
		t.Errorf("out: want from-config got %q", captured.Out)
	}
	if captured.BasePackage != "cfg.pkg" {
		t.Errorf("base package: got %q", captured.BasePackage)
	}
	if captured.DynamicTypeHandling != "ALLOW" {
		t.Errorf("dynamic type handling: got %q", captured.DynamicTypeHandling)
	}
	if captured.GenerateDefaults {
		t.Errorf("expected default values off from config file")
	}
	if captured.TypeOverrides["Metadata"] != "JsonObject" || captured.TypeOverrides["Extra"] != "Any" {
		t.Errorf("type overrides: flag entries must replace file entries by name, got %v", captured.TypeOverrides)
	}
	if want := []string{"flagTag"}; !equalStringSlices(captured.IncludeTags, want) {
		t.Errorf("include tags: want %v got %v", want, captured.IncludeTags)
	}
	if want := []string{"cfgBar"}; !equalStringSlices(captured.ExcludeTags, want) {
		t.Errorf("exclude tags: want %v got %v", want, captured.ExcludeTags)
	}
	if want := []string{"put"}; !equalStringSlices(captured.Methods, want) {
		t.Errorf("methods: want %v got %v", want, captured.Methods)
	}
	if want := []string{"^/a,b"}; !equalStringSlices(captured.PathPatterns, want) {
		t.Errorf("paths: want %v got %v", want, captured.PathPatterns)
	}
	if captured.LogFormat != "json" {
		t.Errorf("log format: want json got %q", captured.LogFormat)
	}
	if captured.ValidateSpec {
		t.Errorf("expected validation off from config file")
	}
	if captured.DryRun {
		t.Errorf("expected dry-run false after flag override")
	}
	if !captured.Force {
		t.Errorf("expected force true after flag override")
	}
	if !captured.Verbose {
		t.Errorf("expected verbose true from config file")
	}
	if captured.ConfigPath != configPath {
		t.Errorf("config path mismatch: got %q", captured.ConfigPath)
	}
}

func TestGenerateConfigUnknownKey(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte("unknown: value\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	root.SetArgs([]string{
		"--config", configPath,
		"generate",
		"--input", "spec.yaml",
	})

	err := root.Execute()
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestGenerateConfigRejectsBadPolicy(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		"handling": {"generate", "--input", "spec.yaml", "--dynamic-type-handling", "sometimes"},
		"override": {"generate", "--input", "spec.yaml", "--type-override", "Metadata=List<String>"},
		"tags":     {"generate", "--input", "spec.yaml", "--include-tags", "a", "--exclude-tags", "a"},
		"input":    {"generate"},
		"method":   {"generate", "--input", "spec.yaml", "--methods", "fetch"},
		"path":     {"generate", "--input", "spec.yaml", "--paths", "^/pets/("},
		"logs":     {"--log-format", "xml", "generate", "--input", "spec.yaml"},
	}
	for name, args := range cases {
		root := NewRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs(args)
		err := root.Execute()
		if err == nil {
			t.Fatalf("%s: expected an error", name)
		}
		if !errors.Is(err, ErrUsage) {
			t.Fatalf("%s: expected usage error, got %v", name, err)
		}
	}
}

func TestDeriveOutDir(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Swagger Petstore":  "swagger-petstore-types",
		"Ory: Kratos/Admin": "ory-kratos-admin-types",
		"  ":                "oapi-types",
		"Ünïcode API":       "unicode-api-types",
	}
	for in, want := range cases {
		if got := deriveOutDir(in); got != want {
			t.Errorf("deriveOutDir(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	newLogger(&text, false, logFormatText).Warn("dropped", "code", "DynamicTypeUsed")
	newLogger(&js, false, logFormatJSON).Warn("dropped", "code", "DynamicTypeUsed")
	newLogger(&js, false, logFormatJSON).Debug("hidden")

	if !strings.Contains(text.String(), "msg=dropped code=DynamicTypeUsed") {
		t.Errorf("text handler output: %q", text.String())
	}
	if !strings.Contains(js.String(), `"msg":"dropped","code":"DynamicTypeUsed"`) {
		t.Errorf("json handler output: %q", js.String())
	}
	if strings.Contains(js.String(), "hidden") {
		t.Errorf("debug records need --verbose: %q", js.String())
	}

	var verbose bytes.Buffer
	newLogger(&verbose, true, logFormatJSON).Debug("shown")
	if !strings.Contains(verbose.String(), `"level":"DEBUG"`) {
		t.Errorf("verbose logger should emit debug: %q", verbose.String())
	}
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

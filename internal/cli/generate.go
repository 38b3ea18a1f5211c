package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oapi-typegen/internal/diag"
	"github.com/mark3labs/oapi-typegen/internal/emitter/catalog"
	"github.com/mark3labs/oapi-typegen/internal/generate"
	"github.com/mark3labs/oapi-typegen/internal/naming"
	"github.com/mark3labs/oapi-typegen/internal/spec"
	"github.com/mark3labs/oapi-typegen/internal/typemap"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input               string
	Out                 string
	Overlay             string
	BasePackage         string
	DynamicTypeHandling string
	InferDynamicTypes   bool
	GenerateDefaults    bool
	TypeOverrides       map[string]string
	IncludeTags         []string
	ExcludeTags         []string
	Methods             []string
	PathPatterns        []string
	ValidateSpec        bool
	FailOnWarnings      bool
	ConfigPath          string
	DryRun              bool
	Force               bool
	Verbose             bool
	LogFormat           string
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		DynamicTypeHandling: string(typemap.DynamicWarn),
		GenerateDefaults:    true,
		ValidateSpec:        true,
		LogFormat:           logFormatText,
	}
}

// typesConfig converts the CLI view into the mapping policy.
func (c *GenerateConfig) typesConfig() typemap.Config {
	handling, _ := typemap.ParseDynamicHandling(c.DynamicTypeHandling)
	return typemap.Config{
		BasePackage:       c.BasePackage,
		Overrides:         c.TypeOverrides,
		DynamicHandling:   handling,
		InferDynamicTypes: c.InferDynamicTypes,
		GenerateDefaults:  c.GenerateDefaults,
	}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Resolve an OpenAPI/Swagger document into a type catalog",
		Long: "Resolve references and compositions of an OpenAPI/Swagger document, map every schema " +
			"to a language-neutral type and write the resulting catalog and operations. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  oapi-typegen generate --input spec.yaml --out ./types
  oapi-typegen generate --input spec.yaml --type-override Metadata=JsonObject --dynamic-type-handling FAIL
  oapi-typegen --config oapi-typegen.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document")
	flags.String("out", "", "Output directory (derived from the document title when omitted)")
	flags.String("overlay", "", "OpenAPI Overlay document applied before parsing")
	flags.String("base-package", "", "Package that qualifies catalog references (models live under <base>.models)")
	flags.String("dynamic-type-handling", "", "Untyped schema policy: ALLOW, WARN or FAIL (default WARN)")
	flags.Bool("infer-dynamic-types", false, "Map untyped schemas to JSON object/array/value by their shape")
	flags.Bool("default-values", true, "Attach default values to optional fields")
	flags.StringToString("type-override", nil, "Override the type of a named schema (Name=Descriptor), repeatable")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include operations using these HTTP methods")
	flags.StringArray("paths", nil, "Only include operations whose path matches this regular expression, repeatable")
	flags.Bool("skip-validation", false, "Skip OpenAPI document validation")
	flags.Bool("fail-on-warnings", false, "Treat any warning as a fatal error")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	for _, name := range []string{"input", "out", "overlay", "base-package", "dynamic-type-handling", "log-format"} {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		value = strings.TrimSpace(value)
		switch name {
		case "input":
			cfg.Input = value
		case "out":
			cfg.Out = value
		case "overlay":
			cfg.Overlay = value
		case "base-package":
			cfg.BasePackage = value
		case "dynamic-type-handling":
			cfg.DynamicTypeHandling = value
		case "log-format":
			cfg.LogFormat = value
		}
	}
	bools := map[string]*bool{
		"infer-dynamic-types": &cfg.InferDynamicTypes,
		"default-values":      &cfg.GenerateDefaults,
		"fail-on-warnings":    &cfg.FailOnWarnings,
		"dry-run":             &cfg.DryRun,
		"force":               &cfg.Force,
		"verbose":             &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}
	if flags.Changed("skip-validation") {
		value, err := flags.GetBool("skip-validation")
		if err != nil {
			return err
		}
		cfg.ValidateSpec = !value
	}
	if flags.Changed("type-override") {
		value, err := flags.GetStringToString("type-override")
		if err != nil {
			return err
		}
		if cfg.TypeOverrides == nil {
			cfg.TypeOverrides = make(map[string]string, len(value))
		}
		for name, desc := range value {
			cfg.TypeOverrides[name] = desc
		}
	}
	if flags.Changed("include-tags") {
		value, err := flags.GetStringSlice("include-tags")
		if err != nil {
			return err
		}
		cfg.IncludeTags = sanitizeTags(value)
	}
	if flags.Changed("exclude-tags") {
		value, err := flags.GetStringSlice("exclude-tags")
		if err != nil {
			return err
		}
		cfg.ExcludeTags = sanitizeTags(value)
	}
	if flags.Changed("methods") {
		value, err := flags.GetStringSlice("methods")
		if err != nil {
			return err
		}
		cfg.Methods = value
	}
	if flags.Changed("paths") {
		value, err := flags.GetStringArray("paths")
		if err != nil {
			return err
		}
		cfg.PathPatterns = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	c.Overlay = strings.TrimSpace(c.Overlay)
	c.BasePackage = strings.Trim(strings.TrimSpace(c.BasePackage), ".")
	c.DynamicTypeHandling = strings.ToUpper(strings.TrimSpace(c.DynamicTypeHandling))
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Methods = sanitizeTags(c.Methods)
	c.PathPatterns = sanitizeTags(c.PathPatterns)
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = logFormatText
	}
	if len(c.TypeOverrides) > 0 {
		cleaned := make(map[string]string, len(c.TypeOverrides))
		for name, desc := range c.TypeOverrides {
			if name = strings.TrimSpace(name); name != "" {
				cleaned[name] = strings.TrimSpace(desc)
			}
		}
		c.TypeOverrides = cleaned
	}
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag or config file)")
	}

	handling, err := typemap.ParseDynamicHandling(c.DynamicTypeHandling)
	if err != nil {
		return newUsageError("generate: " + err.Error())
	}
	c.DynamicTypeHandling = string(handling)

	// overrides are parsed again by the mapper; failing here gives a usage error
	if _, err := c.typesConfig().ParseOverrides(); err != nil {
		return newUsageError("generate: " + err.Error())
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}

	if _, err := c.methodFilter(); err != nil {
		return newUsageError("generate: " + err.Error())
	}
	for _, p := range c.PathPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return newUsageError(fmt.Sprintf("generate: invalid path pattern %q: %v", p, err))
		}
	}

	if c.LogFormat != logFormatText && c.LogFormat != logFormatJSON {
		return newUsageError(fmt.Sprintf("generate: unknown log format %q (want text or json)", c.LogFormat))
	}

	return nil
}

func (c *GenerateConfig) methodFilter() ([]spec.HttpMethod, error) {
	methods := make([]spec.HttpMethod, 0, len(c.Methods))
	for _, m := range c.Methods {
		method, err := spec.ParseMethod(m)
		if err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}
	return methods, nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(os.Stderr, cfg.Verbose, cfg.LogFormat)

	// 1) Load the document (file or http/https URL), overlay, validate, convert
	src, err := spec.Load(ctx, cfg.Input,
		spec.WithOverlay(cfg.Overlay),
		spec.WithValidation(cfg.ValidateSpec),
		spec.WithLogger(logger),
	)
	if err != nil {
		return mapPipelineError(err)
	}

	// 2) Normalize with operation filters
	methods, err := cfg.methodFilter()
	if err != nil {
		return newUsageError("generate: " + err.Error())
	}
	doc, err := spec.BuildDocument(ctx, src,
		spec.WithIncludeTags(cfg.IncludeTags),
		spec.WithExcludeTags(cfg.ExcludeTags),
		spec.WithMethods(methods),
		spec.WithPathPatterns(cfg.PathPatterns),
	)
	if err != nil {
		return fmt.Errorf("build document: %w", err)
	}

	// 3) Resolve and map
	res, err := generate.Run(ctx, doc, generate.Config{
		Types:          cfg.typesConfig(),
		FailOnWarnings: cfg.FailOnWarnings,
	}, generate.WithLogger(logger))
	if err != nil {
		return mapPipelineError(err)
	}
	logger.Debug("resolved document", "title", res.Title, "types", res.Catalog.Len(),
		"operations", len(res.Operations), "warnings", len(res.Warnings))

	// 4) Emit
	outDir := cfg.Out
	if outDir == "" {
		outDir = deriveOutDir(res.Title)
	}
	absOut := outDir
	if ap, err := filepath.Abs(outDir); err == nil {
		absOut = ap
	}
	planned, err := catalog.Emit(ctx, res, catalog.Options{
		OutDir:  outDir,
		Force:   cfg.Force,
		DryRun:  cfg.DryRun,
		Verbose: cfg.Verbose,
		Logger:  logger,
	})
	if err != nil {
		return wrapOutputError(err, absOut)
	}
	if cfg.DryRun {
		paths := make([]string, 0, len(planned.Planned))
		for _, p := range planned.Planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(absOut, len(paths), paths)
	}
	return nil
}

const (
	logFormatText = "text"
	logFormatJSON = "json"
)

func newLogger(w io.Writer, verbose bool, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if format == logFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// mapPipelineError turns structured loader and engine errors into friendly
// usage errors.
func mapPipelineError(err error) error {
	var se *spec.SpecError
	if errors.As(err, &se) {
		msg := fmt.Sprintf("spec: %s", se.Message)
		if se.Location != "" {
			msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
		}
		if se.JSONPointer != "" {
			msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
		}
		return wrapUsageError(msg, err)
	}
	var de *diag.Error
	if errors.As(err, &de) {
		msg := fmt.Sprintf("generate: %s", de.Error())
		if de.Pointer != "" {
			msg = fmt.Sprintf("%s\nPointer: %s", msg, de.Pointer)
		}
		return wrapUsageError(msg, err)
	}
	return err
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

// deriveOutDir turns a document title into a directory name.
func deriveOutDir(title string) string {
	t := strings.ToLower(naming.FoldAccents(strings.TrimSpace(title)))
	repl := strings.NewReplacer("/", " ", "_", " ", ".", " ", ",", " ", ":", " ")
	var b strings.Builder
	for _, r := range strings.Join(strings.Fields(repl.Replace(t)), "-") {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "oapi-types"
	}
	return out + "-types"
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	// sorted so the first reported error is stable
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	strs := map[string]*string{
		"input":               &cfg.Input,
		"out":                 &cfg.Out,
		"overlay":             &cfg.Overlay,
		"basepackage":         &cfg.BasePackage,
		"dynamictypehandling": &cfg.DynamicTypeHandling,
		"logformat":           &cfg.LogFormat,
	}
	bools := map[string]*bool{
		"inferdynamictypes":     &cfg.InferDynamicTypes,
		"generatedefaultvalues": &cfg.GenerateDefaults,
		"validatespec":          &cfg.ValidateSpec,
		"failonwarnings":        &cfg.FailOnWarnings,
		"dryrun":                &cfg.DryRun,
		"force":                 &cfg.Force,
		"verbose":               &cfg.Verbose,
	}

	for _, key := range keys {
		value := raw[key]
		normalized := normalizeKey(key)
		if dst, ok := strs[normalized]; ok {
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = str
			continue
		}
		if dst, ok := bools[normalized]; ok {
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = val
			continue
		}
		switch normalized {
		case "includetags":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.IncludeTags = sanitizeTags(list)
		case "excludetags":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.ExcludeTags = sanitizeTags(list)
		case "methods":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Methods = list
		case "paths":
			list, err := valueAsStringList(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.PathPatterns = list
		case "typeoverrides":
			m, err := valueAsStringMap(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.TypeOverrides = m
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

// valueAsStringList is valueAsStringSlice without comma splitting, for values
// such as regular expressions that may contain commas.
func valueAsStringList(v any) ([]string, error) {
	if s, ok := v.(string); ok {
		if s = strings.TrimSpace(s); s == "" {
			return nil, nil
		}
		return []string{s}, nil
	}
	return valueAsStringSlice(v)
}

func valueAsStringMap(v any) (map[string]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		out := make(map[string]string, len(val))
		for name, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("entry %q: %w", name, err)
			}
			out[name] = str
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected mapping of name to type, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

package spec

import (
    "context"
    "errors"
    "fmt"
    "io"
    "log/slog"
    "net/http"
    "net/url"
    "os"
    "path/filepath"
    "regexp"
    "strings"
    "time"

    "github.com/Masterminds/semver/v3"
    openapi2 "github.com/getkin/kin-openapi/openapi2"
    "github.com/getkin/kin-openapi/openapi2conv"
    "github.com/getkin/kin-openapi/openapi3"
    "gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
    InputError      ErrorCode = "InputError"
    NetworkError    ErrorCode = "NetworkError"
    ParseError      ErrorCode = "ParseError"
    ValidationError ErrorCode = "ValidationError"
    ConversionError ErrorCode = "ConversionError"
    OverlayError    ErrorCode = "OverlayError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
    Code        ErrorCode
    Message     string
    Location    string // file path or URL
    JSONPointer string // e.g. "#/paths/~1pets/get"
    Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Settings configures loader behavior.
type Settings struct {
    // HTTPTimeout bounds each HTTP request.
    HTTPTimeout time.Duration
    // MaxRetries for transient HTTP failures (>=500, 429, or network errors).
    MaxRetries int
    // BackoffBase is the base delay for exponential backoff.
    BackoffBase time.Duration
    // AllowFileRefs controls whether file:// refs are allowed for external references.
    // Default false, but automatically allowed when the root input is a local file
    // to enable typical multi-file specs.
    AllowFileRefs bool
    // OverlayPath names an OpenAPI Overlay document applied before parsing.
    OverlayPath string
    // Validate runs kin-openapi validation after loading.
    Validate bool
    Logger   *slog.Logger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
    return Settings{
        HTTPTimeout:   10 * time.Second,
        MaxRetries:    3,
        BackoffBase:   200 * time.Millisecond,
        AllowFileRefs: false,
        Validate:      true,
    }
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option  { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option             { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option  { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option     { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithOverlay(path string) Option          { return func(s *Settings) { s.OverlayPath = strings.TrimSpace(path) } }
func WithValidation(enabled bool) Option      { return func(s *Settings) { s.Validate = enabled } }
func WithLogger(l *slog.Logger) Option        { return func(s *Settings) { s.Logger = l } }

// Source is a loaded OpenAPI v3 document plus what BuildDocument needs to
// keep declaration order.
type Source struct {
    Doc       *openapi3.T
    Order     *KeyOrder
    Location  string
    Version   string // version string declared by the input
    Converted bool   // true when the input was Swagger 2.0
}

// Load reads, validates, and returns an OpenAPI v3 document. If the input
// is Swagger v2.0, it converts it to v3 via kin-openapi openapi2conv.
//
// input may be a filesystem path or an http/https URL. file:// URLs are blocked
// by default (use WithAllowFileRefs(true) when loading from local files and you
// want to permit file-based external refs).
func Load(ctx context.Context, input string, opts ...Option) (*Source, error) {
    if strings.TrimSpace(input) == "" {
        return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
    }

    settings := resolveSettings(opts)

    // Classify input as URL or file path.
    u, uerr := url.Parse(input)
    isURL := uerr == nil && u.Scheme != "" && u.Host != ""

    if isURL {
        scheme := strings.ToLower(u.Scheme)
        if scheme == "file" {
            return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
        }
        if scheme != "http" && scheme != "https" {
            return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
        }

        raw, fetchErr := fetchWithRetry(ctx, input, settings)
        if fetchErr != nil {
            return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, fetchErr), Location: input, Cause: fetchErr}
        }
        return loadBytes(ctx, raw, input, u, false /*rootIsFile*/, settings)
    }

    // Treat as local filesystem path.
    abs, err := filepath.Abs(input)
    if err != nil {
        return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
    }
    raw, rerr := os.ReadFile(abs)
    if rerr != nil {
        return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, rerr), Location: abs, Cause: rerr}
    }
    return loadBytes(ctx, raw, abs, &url.URL{Path: filepath.ToSlash(abs)}, true /*rootIsFile*/, settings)
}

// LoadData loads an in-memory document. location is only used in errors and
// as the base for relative file references when file refs are allowed.
func LoadData(ctx context.Context, data []byte, location string, opts ...Option) (*Source, error) {
    if len(strings.TrimSpace(string(data))) == 0 {
        return nil, &SpecError{Code: InputError, Message: "spec: input is empty", Location: location}
    }
    settings := resolveSettings(opts)
    var base *url.URL
    if location != "" {
        base = &url.URL{Path: filepath.ToSlash(location)}
    }
    return loadBytes(ctx, data, location, base, settings.AllowFileRefs, settings)
}

func resolveSettings(opts []Option) Settings {
    settings := DefaultSettings()
    for _, opt := range opts {
        opt(&settings)
    }
    if settings.Logger == nil {
        settings.Logger = slog.Default()
    }
    return settings
}

func loadBytes(ctx context.Context, raw []byte, location string, base *url.URL, rootIsFile bool, settings Settings) (*Source, error) {
    if settings.OverlayPath != "" {
        applied, err := applyOverlay(raw, settings.OverlayPath)
        if err != nil {
            return nil, &SpecError{Code: OverlayError, Message: err.Error(), Location: settings.OverlayPath, Cause: err}
        }
        settings.Logger.Debug("applied overlay", "overlay", settings.OverlayPath, "input", location)
        raw = applied
    }

    major, declared, derr := detectSpecVersion(raw)
    if derr != nil {
        return nil, &SpecError{Code: ParseError, Message: derr.Error(), Location: location, Cause: derr}
    }

    switch major {
    case 3:
        loader := newLoader(settings, rootIsFile)
        doc, err := loader.LoadFromDataWithPath(raw, base)
        if err != nil {
            return nil, mapValidateOrParseErr(err, location)
        }
        if err := validate(ctx, doc, settings); err != nil {
            return nil, mapValidateOrParseErr(err, location)
        }
        return &Source{Doc: doc, Order: ParseKeyOrder(raw), Location: location, Version: declared}, nil
    case 2:
        if fixed, rewrites, err := rewriteV2Operations(raw); err == nil {
            for _, r := range rewrites {
                settings.Logger.Debug("rewrote swagger 2.0 operation for conversion", "input", location, "rewrite", r.String())
            }
            raw = fixed
        }
        v3doc, err := convertV2ToV3(raw)
        if err != nil {
            return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: location, Cause: err}
        }
        loader := newLoader(settings, rootIsFile)
        if err := loader.ResolveRefsIn(v3doc, nil); err != nil {
            settings.Logger.Warn("failed to resolve refs after conversion", "input", location, "error", err)
        }
        if err := validate(ctx, v3doc, settings); err != nil {
            return nil, mapValidateOrParseErr(err, location)
        }
        // Converted documents lose the v2 key order; BuildDocument falls back to lexical order.
        return &Source{Doc: v3doc, Order: &KeyOrder{keys: map[string][]string{}}, Location: location, Version: declared, Converted: true}, nil
    default:
        return nil, &SpecError{Code: ParseError, Message: "spec: unknown or unsupported OpenAPI/Swagger version", Location: location}
    }
}

func validate(ctx context.Context, doc *openapi3.T, settings Settings) error {
    if !settings.Validate {
        return nil
    }
    if err := doc.Validate(ctx); err != nil {
        if !canProceedDespiteValidation(err) {
            return err
        }
        settings.Logger.Warn("proceeding despite validation error", "error", err)
    }
    return nil
}

func newLoader(settings Settings, rootIsFile bool) *openapi3.Loader {
    loader := openapi3.NewLoader()
    loader.IsExternalRefsAllowed = true
    client := &http.Client{Timeout: settings.HTTPTimeout}
    // Allow file refs only when configured or when loading from a local file root.
    allowFile := settings.AllowFileRefs || rootIsFile
    loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
        switch strings.ToLower(uri.Scheme) {
        case "", "file":
            if !allowFile {
                return nil, fmt.Errorf("blocked file ref: %s", uri.String())
            }
            path := uri.Path
            if path == "" {
                path = uri.Opaque
            }
            return os.ReadFile(filepath.FromSlash(path))
        case "http", "https":
            req, err := http.NewRequest("GET", uri.String(), nil)
            if err != nil {
                return nil, err
            }
            resp, err := client.Do(req)
            if err != nil {
                return nil, err
            }
            defer resp.Body.Close()
            if resp.StatusCode >= 400 {
                return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
            }
            return io.ReadAll(resp.Body)
        default:
            return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
        }
    }
    return loader
}

// detectSpecVersion returns the major version (3 for OpenAPI, 2 for Swagger)
// and the declared version string.
func detectSpecVersion(data []byte) (int, string, error) {
    var root map[string]any
    if err := yaml.Unmarshal(data, &root); err != nil {
        return 0, "", fmt.Errorf("parse spec: %w", err)
    }
    if v, ok := root["openapi"]; ok {
        declared := strings.TrimSpace(fmt.Sprint(v))
        if ver, err := semver.NewVersion(declared); err == nil && ver.Major() == 3 {
            return 3, declared, nil
        }
    }
    if v, ok := root["swagger"]; ok {
        declared := strings.TrimSpace(fmt.Sprint(v))
        if ver, err := semver.NewVersion(declared); err == nil && ver.Major() == 2 {
            return 2, declared, nil
        }
    }
    return 0, "", fmt.Errorf("spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

func convertV2ToV3(data []byte) (*openapi3.T, error) {
    // For kin-openapi v0.116.0, convert by unmarshalling to v2 then calling ToV3.
    var v2 openapi2.T
    if err := yaml.Unmarshal(data, &v2); err != nil {
        return nil, err
    }
    return openapi2conv.ToV3(&v2)
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
    client := &http.Client{Timeout: settings.HTTPTimeout}
    var lastErr error
    backoff := settings.BackoffBase
    if backoff <= 0 {
        backoff = 200 * time.Millisecond
    }
    attempts := settings.MaxRetries
    if attempts <= 0 {
        attempts = 1
    }
    for i := 0; i < attempts; i++ {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
        if err != nil {
            return nil, err
        }
        resp, err := client.Do(req)
        if err == nil && resp != nil && resp.StatusCode < 300 {
            defer resp.Body.Close()
            return io.ReadAll(resp.Body)
        }
        if err != nil {
            lastErr = err
        } else {
            defer resp.Body.Close()
            if resp.StatusCode >= 500 || resp.StatusCode == 429 {
                lastErr = fmt.Errorf("transient http error %d", resp.StatusCode)
            } else {
                body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
                return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
            }
        }
        if i == attempts-1 {
            break
        }
        settings.Logger.Debug("retrying fetch", "url", rawURL, "attempt", i+1, "backoff", backoff, "error", lastErr)
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-time.After(backoff):
        }
        backoff *= 2
    }
    if lastErr == nil {
        lastErr = errors.New("fetch failed")
    }
    return nil, lastErr
}

func mapValidateOrParseErr(err error, location string) error {
    pointer := extractJSONPointer(err)
    code := ValidationError
    // Heuristics: some loader errors are parse errors.
    lower := strings.ToLower(err.Error())
    if strings.Contains(lower, "parse") || strings.Contains(lower, "invalid character") || strings.Contains(lower, "unmarshal") {
        code = ParseError
    }
    return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
    if err == nil {
        return ""
    }
    // Unwrap MultiError and take the first for brevity.
    if me, ok := err.(openapi3.MultiError); ok {
        if len(me) > 0 {
            return extractJSONPointer(me[0])
        }
    }
    var se *openapi3.SchemaError
    if errors.As(err, &se) {
        // v0.116 uses JSONPointer() []string
        if parts := se.JSONPointer(); len(parts) > 0 {
            return "#/" + strings.Join(parts, "/")
        }
        if se.SchemaField != "" {
            return se.SchemaField
        }
    }
    if m := jsonPtrRe.FindString(err.Error()); m != "" {
        return m
    }
    return ""
}

// canProceedDespiteValidation returns true for certain validation errors where
// a best-effort build can still proceed (e.g., unresolved $ref entries).
func canProceedDespiteValidation(err error) bool {
    if err == nil {
        return true
    }
    s := strings.ToLower(err.Error())
    return strings.Contains(s, "unresolved ref") || strings.Contains(s, "found unresolved ref")
}

// Package catalog writes a generation result to disk as JSON documents and a
// markdown summary.
package catalog

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/mark3labs/oapi-typegen/internal/diag"
	"github.com/mark3labs/oapi-typegen/internal/generate"
	"github.com/mark3labs/oapi-typegen/internal/model"
	"github.com/mark3labs/oapi-typegen/internal/operation"
)

const (
	TypesFile      = "types.json"
	OperationsFile = "operations.json"
	SummaryFile    = "summary.md"
	WarningsFile   = "warnings.json"
)

//go:embed templates/summary.md.tmpl
var templates embed.FS

var summaryTmpl = template.Must(
	template.New("summary.md.tmpl").Funcs(sprig.TxtFuncMap()).ParseFS(templates, "templates/summary.md.tmpl"),
)

// Options controls where and how the catalog is written.
type Options struct {
	OutDir  string // required
	Force   bool   // overwrite a non-empty directory
	DryRun  bool   // plan only
	Verbose bool   // log each written file
	Logger  *slog.Logger
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

type Result struct {
	Planned []PlannedFile
}

// Emit renders res into Options.OutDir. Nothing is written in dry-run mode.
func Emit(ctx context.Context, res *generate.Result, opts Options) (*Result, error) {
	if res == nil || res.Catalog == nil {
		return nil, fmt.Errorf("catalog: nil generation result")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("catalog: OutDir is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	files, err := render(res)
	if err != nil {
		return nil, err
	}

	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(files[rel]), Mode: 0o644})
	}

	if !opts.DryRun {
		if err := writeFiles(opts.OutDir, rels, files, opts.Force); err != nil {
			return nil, err
		}
		if opts.Verbose {
			for _, pf := range planned {
				logger.Info("wrote file", "path", filepath.Join(opts.OutDir, pf.RelPath), "bytes", pf.Size)
			}
		}
	}
	return &Result{Planned: planned}, nil
}

func render(res *generate.Result) (map[string][]byte, error) {
	files := map[string][]byte{}

	types := res.Catalog.Types()
	if types == nil {
		types = []*model.NamedType{}
	}
	b, err := marshal(types)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", TypesFile, err)
	}
	files[TypesFile] = b

	ops := res.Operations
	if ops == nil {
		ops = []operation.Operation{}
	}
	if b, err = marshal(ops); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", OperationsFile, err)
	}
	files[OperationsFile] = b

	if len(res.Warnings) > 0 {
		if b, err = marshal(res.Warnings); err != nil {
			return nil, fmt.Errorf("marshal %s: %w", WarningsFile, err)
		}
		files[WarningsFile] = b
	}

	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, newSummary(res)); err != nil {
		return nil, fmt.Errorf("render %s: %w", SummaryFile, err)
	}
	files[SummaryFile] = buf.Bytes()
	return files, nil
}

func marshal(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

type kindCount struct {
	Kind  model.Kind
	Count int
}

type summary struct {
	Title      string
	Version    string
	Kinds      []kindCount
	Types      int
	Operations int
	OAuth2     bool
	Collisions [][]string
	Warnings   []diag.Warning
}

var kindOrder = []model.Kind{model.KindRecord, model.KindEnum, model.KindSum, model.KindWrapper, model.KindAlias}

func newSummary(res *generate.Result) summary {
	counts := res.Catalog.Count()
	kinds := make([]kindCount, 0, len(kindOrder))
	for _, k := range kindOrder {
		kinds = append(kinds, kindCount{Kind: k, Count: counts[k]})
	}
	return summary{
		Title:      res.Title,
		Version:    res.Version,
		Kinds:      kinds,
		Types:      res.Catalog.Len(),
		Operations: len(res.Operations),
		OAuth2:     res.UsesOAuth2,
		Collisions: res.Catalog.Collisions(),
		Warnings:   res.Warnings,
	}
}

func writeFiles(outDir string, rels []string, files map[string][]byte, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	if st, err := os.Stat(abs); err == nil && st.IsDir() && !force {
		entries, rerr := os.ReadDir(abs)
		if rerr == nil && len(entries) > 0 {
			return fmt.Errorf("catalog: output directory %q is not empty (use --force to overwrite)", abs)
		}
	}
	for _, rel := range rels {
		p := filepath.Join(abs, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		// temp file + rename
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := os.WriteFile(tmp, files[rel], 0o644); err != nil {
			return fmt.Errorf("write temp %s: %w", rel, err)
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", rel, err)
		}
	}
	// a clean run must not leave warnings from an earlier one behind
	if _, ok := files[WarningsFile]; !ok {
		if err := os.Remove(filepath.Join(abs, WarningsFile)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale %s: %w", WarningsFile, err)
		}
	}
	return nil
}

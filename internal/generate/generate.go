// Package generate runs the resolution pipeline over a normalized document:
// model derivation, operation extraction and the final reference check.
package generate

import (
	"context"
	"log/slog"

	"github.com/mark3labs/oapi-typegen/internal/diag"
	"github.com/mark3labs/oapi-typegen/internal/model"
	"github.com/mark3labs/oapi-typegen/internal/operation"
	"github.com/mark3labs/oapi-typegen/internal/resolve"
	"github.com/mark3labs/oapi-typegen/internal/spec"
	"github.com/mark3labs/oapi-typegen/internal/typemap"
)

// Config selects the mapping policy and whether warnings are fatal.
type Config struct {
	Types          typemap.Config
	FailOnWarnings bool
}

func DefaultConfig() Config {
	return Config{Types: typemap.DefaultConfig()}
}

// Result is everything an emitter needs.
type Result struct {
	Title      string
	Version    string
	Catalog    *model.Catalog
	Operations []operation.Operation
	Warnings   []diag.Warning
	UsesOAuth2 bool
}

type settings struct {
	logger *slog.Logger
}

type Option func(*settings)

func WithLogger(l *slog.Logger) Option { return func(s *settings) { s.logger = l } }

// Run derives the catalog and the operations of doc. On error no partial
// result is returned.
func Run(ctx context.Context, doc *spec.Document, cfg Config, opts ...Option) (*Result, error) {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var warnings diag.Collector
	res := resolve.New(doc.Schemas)
	mapper, err := typemap.NewMapper(cfg.Types, res, &warnings)
	if err != nil {
		return nil, err
	}

	deriver := model.NewDeriver(res, mapper, &warnings)
	if err := deriver.DeriveAll(); err != nil {
		return nil, err
	}
	s.logger.Debug("derived schema types", "schemas", doc.Schemas.Len(), "types", deriver.Catalog().Len())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ops, err := operation.Extract(doc, mapper, &warnings)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("extracted operations", "operations", len(ops))

	catalog, err := deriver.Finish()
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		for _, t := range op.Types() {
			if err := catalog.CheckRef(t, op.ID); err != nil {
				return nil, err
			}
		}
	}

	list := warnings.Warnings()
	for _, w := range list {
		s.logger.Warn(w.Message, "code", string(w.Code), "subject", w.Subject, "pointer", w.Pointer)
	}
	if cfg.FailOnWarnings {
		if err := diag.Reject(list); err != nil {
			return nil, err
		}
	}

	return &Result{
		Title:      doc.Title,
		Version:    doc.Version,
		Catalog:    catalog,
		Operations: ops,
		Warnings:   list,
		UsesOAuth2: doc.UsesOAuth2(),
	}, nil
}

package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/po-reconciler/pkg/storage"
)

// Generator renders reports into a storage backend, one directory per run.
type Generator struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewGenerator creates a report generator.
func NewGenerator(store storage.Storage, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{store: store, logger: logger}
}

// Generate renders rep in every configured format and stores the files.
func (g *Generator) Generate(ctx context.Context, rep Report, cfg Config) ([]*storage.FileInfo, error) {
	if rep.Result == nil {
		return nil, errors.New("report has no comparison result")
	}
	base := cfg.BaseName
	if base == "" {
		base = DefaultConfig().BaseName
	}

	files := make([]*storage.FileInfo, 0, len(cfg.Formats))
	for _, format := range cfg.Formats {
		var buf bytes.Buffer
		if err := Render(&buf, format, rep, cfg); err != nil {
			return files, err
		}

		info, err := g.store.Save(ctx, rep.RunID, base+format.Extension(), format.ContentType(), &buf)
		if err != nil {
			return files, fmt.Errorf("failed to store %s report: %w", format, err)
		}
		files = append(files, info)

		g.logger.Info("report written",
			slog.String("run_id", rep.RunID.String()),
			slog.String("format", string(format)),
			slog.String("path", info.Path),
			slog.Int64("bytes", info.Size),
		)
	}
	return files, nil
}

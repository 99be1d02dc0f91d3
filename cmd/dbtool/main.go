// Command dbtool prepares the configured link store.
//
//	dbtool init                 create the schema for STORE_BACKEND
//	dbtool import <file.json>   upsert every record of a flat-file export
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sundayezeilo/geolinks/internal/app"
	"github.com/sundayezeilo/geolinks/internal/config"
	"github.com/sundayezeilo/geolinks/internal/errx"
	"github.com/sundayezeilo/geolinks/internal/geolink"
	"github.com/sundayezeilo/geolinks/internal/geolink/filestore"
)

const usage = `usage:
  dbtool init
  dbtool import <file.json>`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	if err := app.LoadEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadStorage()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := app.NewLogger(cfg.App.LogLevel)

	switch args[0] {
	case "init":
		if len(args) != 1 {
			return errors.New(usage)
		}
		return initStore(ctx, cfg, logger)

	case "import":
		if len(args) != 2 {
			return errors.New(usage)
		}
		return importFile(ctx, cfg, logger, args[1])

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

// initStore opens the backend, which creates its schema, and closes it again.
func initStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("initializing store schema", "backend", cfg.Store.Backend)

	_, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	if err := closeStore(); err != nil {
		return err
	}

	logger.Info("schema ready")
	return nil
}

func importFile(ctx context.Context, cfg *config.Config, logger *slog.Logger, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("import source: %w", err)
	}
	src, err := filestore.New(path)
	if err != nil {
		return err
	}

	dst, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open target store: %w", err)
	}
	defer closeStore()

	stats, err := importRecords(ctx, src, dst, logger)
	logger.Info("import finished",
		"source", path,
		"backend", cfg.Store.Backend,
		"created", stats.Created,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
	)
	return err
}

type importStats struct {
	Created int
	Updated int
	Skipped int
}

// importRecords upserts every record of src into dst. Invalid records are
// logged and skipped; any other failure stops the import.
func importRecords(ctx context.Context, src, dst geolink.Store, logger *slog.Logger) (importStats, error) {
	var stats importStats

	recs, err := src.FetchAll(ctx)
	if err != nil {
		return stats, fmt.Errorf("read source: %w", err)
	}

	for _, rec := range recs {
		status, err := dst.Upsert(ctx, rec)
		switch {
		case err == nil:
		case errx.KindOf(err) == errx.Invalid:
			logger.Warn("skipping invalid record", "link", rec.Link, "error", err.Error())
			stats.Skipped++
			continue
		default:
			return stats, fmt.Errorf("import %q: %w", rec.Link, err)
		}

		if status == geolink.Created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}
	return stats, nil
}

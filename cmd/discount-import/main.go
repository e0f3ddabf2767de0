// Command discount-import loads campaign code lists into discount_codes.
//
// Every input file is a gzip CSV of code,kind,value[,name[,active]] rows. A
// code that shows up in more than one file is ambiguous and is skipped.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/candle-checkout/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		opts        Options
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing the code lists")
	flag.StringVar(&pattern, "pattern", "*.csv.gz", "glob of code list files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.BloomCapacity, "bloom-capacity", 10_000_000, "expected codes per file")
	flag.IntVar(&opts.BatchSize, "batch-size", 1000, "codes per database batch")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "scan and report without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !opts.DryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, opts); err != nil {
		slog.Error("discount import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount import completed successfully")
}

func run(ctx context.Context, glob, databaseURL string, opts Options) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrapf(err, "glob %s", glob)
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", glob)
	}
	sort.Strings(files)

	var sink Upserter = discardUpserter{}
	if !opts.DryRun {
		slog.Info("connecting to database")

		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		sink = postgres.NewDiscountRepository(pool)
	}

	report, err := Import(ctx, files, sink, opts)
	if err != nil {
		return err
	}

	slog.Info("import report",
		slog.Int("files", len(files)),
		slog.Int("imported", report.Imported),
		slog.Int("collisions", len(report.Collisions)),
		slog.Int("invalid_rows", report.Invalid),
	)
	for i, code := range report.Collisions {
		if i == 20 {
			slog.Info("more collisions omitted", slog.Int("count", len(report.Collisions)-i))
			break
		}
		slog.Info("skipped ambiguous code", slog.String("code", code))
	}
	return nil
}

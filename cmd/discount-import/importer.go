package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/candle-checkout/internal/domain/discount"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	maxCodeLen    = 32
	maxFiles      = bits.UintSize
)

// Upserter is implemented by *postgres.DiscountRepository.
type Upserter interface {
	Upsert(ctx context.Context, codes []discount.Code) error
}

type discardUpserter struct{}

func (discardUpserter) Upsert(context.Context, []discount.Code) error { return nil }

// Options tune an import run.
type Options struct {
	BloomCapacity uint
	BatchSize     int
	DryRun        bool
}

// Report summarises an import run.
type Report struct {
	Imported   int
	Invalid    int
	Collisions []string
}

// Import runs three passes over files: one bloom filter per file, then the
// codes that hit another file's filter, then the upsert of every code that
// lives in exactly one file.
func Import(ctx context.Context, files []string, sink Upserter, opts Options) (Report, error) {
	if len(files) > maxFiles {
		return Report{}, errors.Errorf("at most %d files per run, got %d", maxFiles, len(files))
	}
	if opts.BloomCapacity == 0 {
		opts.BloomCapacity = 1_000_000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := buildBloomFilters(ctx, files, opts.BloomCapacity)
	if err != nil {
		return Report{}, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding codes present in several files")
	collisions, err := findCollisions(ctx, files, filters)
	if err != nil {
		return Report{}, errors.Wrap(err, "find collisions")
	}

	slog.Info("pass 3: writing codes", slog.Int("collisions", len(collisions)))
	report := Report{Collisions: make([]string, 0, len(collisions))}
	for code := range collisions {
		report.Collisions = append(report.Collisions, code)
	}
	sort.Strings(report.Collisions)

	batch := make([]discount.Code, 0, opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := sink.Upsert(ctx, batch); err != nil {
			return errors.Wrap(err, "upsert batch")
		}
		report.Imported += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, path := range files {
		err := streamRows(ctx, path, func(line int, rec []string) error {
			c, err := parseRow(rec)
			if err != nil {
				report.Invalid++
				slog.Warn("skipping row", slog.String("file", path), slog.Int("line", line), slog.String("error", err.Error()))
				return nil
			}
			if _, dup := collisions[c.Code]; dup {
				return nil
			}
			batch = append(batch, c)
			if len(batch) == opts.BatchSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return report, errors.Wrapf(err, "import %s", path)
		}
	}
	if err := flush(); err != nil {
		return report, err
	}
	return report, nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string, capacity uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(capacity, bloomFPR)
			var count uint64
			err := streamCodes(ctx, path, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Uint64("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findCollisions returns the codes present in two or more files. A bloom hit
// only marks a candidate; the merged per-file bitmask confirms it, so a false
// positive never drops a valid code.
func findCollisions(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	candidates := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			found := make(map[string]uint)
			fileBit := uint(1) << uint(i)
			err := streamCodes(ctx, path, func(code string) {
				for j, f := range filters {
					if j != i && f.TestString(code) {
						found[code] |= fileBit
						return
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s for collisions", path)
			}
			candidates[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, found := range candidates {
		for code, mask := range found {
			merged[code] |= mask
		}
	}
	out := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			out[code] = struct{}{}
		}
	}
	return out, nil
}

// streamCodes calls fn with the normalized code of every well-formed row.
func streamCodes(ctx context.Context, path string, fn func(code string)) error {
	return streamRows(ctx, path, func(_ int, rec []string) error {
		if code := discount.Normalize(rec[0]); validCode(code) {
			fn(code)
		}
		return nil
	})
}

// streamRows opens a gzip CSV file and calls fn for each record. A leading
// header row starting with "code" is skipped.
func streamRows(ctx context.Context, path string, fn func(line int, rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if len(rec) == 0 || (line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "code")) {
			continue
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}

func validCode(code string) bool {
	return code != "" && len(code) <= maxCodeLen
}

// parseRow turns code,kind,value[,name[,active]] into a Code. Active
// defaults to true.
func parseRow(rec []string) (discount.Code, error) {
	if len(rec) < 3 {
		return discount.Code{}, errors.Errorf("want at least 3 fields, got %d", len(rec))
	}
	code := discount.Normalize(rec[0])
	if !validCode(code) {
		return discount.Code{}, errors.Errorf("invalid code %q", rec[0])
	}
	kind, err := discount.ParseKind(rec[1])
	if err != nil {
		return discount.Code{}, err
	}
	value, err := pricing.ParseAmount(rec[2])
	if err == nil {
		err = pricing.CheckAmount(value)
	}
	if err != nil {
		return discount.Code{}, errors.Wrapf(err, "value %q", rec[2])
	}

	c := discount.Code{Code: code, Kind: kind, Value: value, Active: true}
	if len(rec) > 3 {
		c.Name = strings.TrimSpace(rec[3])
	}
	if len(rec) > 4 && strings.TrimSpace(rec[4]) != "" {
		active, err := strconv.ParseBool(strings.TrimSpace(rec[4]))
		if err != nil {
			return discount.Code{}, errors.Wrapf(err, "active %q", rec[4])
		}
		c.Active = active
	}
	return c, nil
}

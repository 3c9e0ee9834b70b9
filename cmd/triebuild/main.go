package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	cachememory "github.com/shruggr/geotrie/cache/memory"
	"github.com/shruggr/geotrie/edge"
	"github.com/shruggr/geotrie/indexer"
	"github.com/shruggr/geotrie/kvstore"
	"github.com/shruggr/geotrie/kvstore/badger"
	"github.com/shruggr/geotrie/kvstore/memory"
	"github.com/shruggr/geotrie/metadata/sqlite"
	"github.com/shruggr/geotrie/records"
	"github.com/shruggr/geotrie/triebuilder"
	"github.com/shruggr/geotrie/valuelist"
)

func main() {
	input := flag.String("input", "-", "Record file (key<TAB>value lines), or - for stdin")
	output := flag.String("output", "", "Also write the finished trie to this file")
	name := flag.String("name", "default", "Catalog name of the trie")
	storageType := flag.String("storage", "memory", "Storage type: memory or badger")
	dataDir := flag.String("data-dir", "./data", "Data directory for BadgerDB")
	catalogPath := flag.String("catalog", "", "SQLite catalog path (default: <data-dir>/catalog.db for badger, in-memory otherwise)")
	edgeType := flag.String("edge", "none", "Edge values: none or max")
	valueType := flag.String("values", "prefixed", "Value lists: prefixed or fixed")
	valueWidth := flag.Int("value-width", 4, "Value width in bytes for fixed value lists")
	valueFormat := flag.String("value-format", "text", "Value field format: text or uint32")
	sortInput := flag.Bool("sort", false, "Sort records before building")
	list := flag.Bool("list", false, "List cataloged tries and exit")
	deleteName := flag.String("delete", "", "Delete every build of this name and exit")
	cacheSize := flag.Int("cache-size", 64, "Number of trie blobs kept in memory")
	cacheBytes := flag.Int("cache-bytes", 64<<20, "Bytes of trie blobs kept in memory")
	spillDir := flag.String("spill-dir", "", "Write raw builder output to a temporary file here instead of memory")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	// Set up slog with the specified level
	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, logger, &config{
		input:       *input,
		output:      *output,
		name:        *name,
		storageType: *storageType,
		dataDir:     *dataDir,
		catalogPath: *catalogPath,
		edgeType:    *edgeType,
		valueType:   *valueType,
		valueWidth:  *valueWidth,
		valueFormat: *valueFormat,
		sortInput:   *sortInput,
		list:        *list,
		deleteName:  *deleteName,
		cacheSize:   *cacheSize,
		cacheBytes:  *cacheBytes,
		spillDir:    *spillDir,
	})
	if err != nil {
		logger.Error("Failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// config holds the parsed command line
type config struct {
	input       string
	output      string
	name        string
	storageType string
	dataDir     string
	catalogPath string
	edgeType    string
	valueType   string
	valueWidth  int
	valueFormat string
	sortInput   bool
	list        bool
	deleteName  string
	cacheSize   int
	cacheBytes  int
	spillDir    string
}

func run(ctx context.Context, logger *slog.Logger, cfg *config) error {
	// Initialize storage based on type
	var store kvstore.KVStore
	var err error

	catalogPath := cfg.catalogPath
	switch cfg.storageType {
	case "memory":
		logger.Debug("Using in-memory storage")
		store = memory.New()
		if catalogPath == "" {
			catalogPath = ":memory:"
		}
	case "badger":
		logger.Debug("Using BadgerDB storage", "dir", cfg.dataDir)
		store, err = badger.New(&badger.Config{
			DataDir: cfg.dataDir,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize BadgerDB: %w", err)
		}
		if catalogPath == "" {
			catalogPath = filepath.Join(cfg.dataDir, "catalog.db")
		}
	default:
		return fmt.Errorf("unknown storage type: %s (use 'memory' or 'badger')", cfg.storageType)
	}
	defer store.Close()

	catalog, err := sqlite.New(&sqlite.Config{DBPath: catalogPath})
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer catalog.Close()

	blobCache, err := cachememory.New(cfg.cacheSize, cfg.cacheBytes)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}

	parse, opts, err := buildOptions(cfg.valueFormat, cfg.valueType, cfg.valueWidth, cfg.edgeType)
	if err != nil {
		return err
	}

	idx, err := indexer.New(&indexer.Config{
		Store:     store,
		Catalog:   catalog,
		Cache:     blobCache,
		Logger:    logger,
		Options:   opts,
		ValueList: cfg.valueType,
		SpillDir:  cfg.spillDir,
	})
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}

	switch {
	case cfg.list:
		return listTries(ctx, idx, os.Stdout)
	case cfg.deleteName != "":
		n, err := idx.DeleteTrie(ctx, cfg.deleteName)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d build(s) of %s\n", n, cfg.deleteName)
		if bs, ok := store.(*badger.Store); ok {
			if err := bs.RunGC(0.5); err != nil {
				logger.Warn("BadgerDB garbage collection failed", "error", err)
			}
		}
		return nil
	default:
		return build(ctx, idx, cfg.input, cfg.output, cfg.name, parse, cfg.sortInput)
	}
}

func buildOptions(valueFormat, valueType string, valueWidth int, edgeType string) (records.ValueParser, triebuilder.Options, error) {
	var opts triebuilder.Options
	var parse records.ValueParser

	switch valueFormat {
	case "text":
		parse = records.ParseText
	case "uint32":
		parse = records.ParseUint32
	default:
		return nil, opts, fmt.Errorf("unknown value format: %s (use 'text' or 'uint32')", valueFormat)
	}

	switch valueType {
	case "prefixed":
		opts.NewValueList = valuelist.NewPrefixed
	case "fixed":
		if valueWidth <= 0 {
			return nil, opts, fmt.Errorf("value width must be positive, got %d", valueWidth)
		}
		if valueFormat == "uint32" && valueWidth != 4 {
			return nil, opts, fmt.Errorf("uint32 values are 4 bytes wide, got value width %d", valueWidth)
		}
		opts.NewValueList = valuelist.NewFixed(valueWidth)
		parse = fixedWidth(parse, valueWidth)
	default:
		return nil, opts, fmt.Errorf("unknown value list: %s (use 'prefixed' or 'fixed')", valueType)
	}

	switch edgeType {
	case "none":
		opts.EdgeBuilder = edge.Empty{}
	case "max":
		if valueFormat == "uint32" {
			opts.EdgeBuilder = edge.NewMaxValue(edge.LittleEndian32)
		} else {
			opts.EdgeBuilder = edge.NewMaxValue(edge.FirstByte)
		}
	default:
		return nil, opts, fmt.Errorf("unknown edge values: %s (use 'none' or 'max')", edgeType)
	}

	return parse, opts, nil
}

// fixedWidth rejects parsed values that do not fill exactly width bytes
func fixedWidth(parse records.ValueParser, width int) records.ValueParser {
	return func(field string) ([]byte, error) {
		value, err := parse(field)
		if err != nil {
			return nil, err
		}
		if len(value) != width {
			return nil, fmt.Errorf("value is %d bytes, fixed width is %d", len(value), width)
		}
		return value, nil
	}
}

func build(ctx context.Context, idx indexer.Indexer, input, output, name string, parse records.ValueParser, sortInput bool) error {
	var r io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	scanner := records.NewScanner(r, parse)

	// A read error midway must not leave a truncated trie behind
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var entries iter.Seq[triebuilder.Entry]
	if sortInput {
		all := slices.Collect(scanner.Entries())
		if err := scanner.Err(); err != nil {
			return err
		}
		records.Sort(all)
		entries = slices.Values(all)
	} else {
		entries = func(yield func(triebuilder.Entry) bool) {
			for e := range scanner.Entries() {
				if !yield(e) {
					return
				}
			}
			if err := scanner.Err(); err != nil {
				cancel(err)
			}
		}
	}

	meta, err := idx.BuildTrie(ctx, name, entries)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
		return err
	}

	if output != "" {
		blob, err := idx.LoadTrie(ctx, meta.Hash)
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, blob, 0o644); err != nil {
			return fmt.Errorf("failed to write trie: %w", err)
		}
	}

	fmt.Printf("%s\t%s\t%x\t%d lines\t%d keys\t%d bytes\n",
		meta.Name, meta.ID, meta.Hash[:], scanner.Lines(), meta.Keys, meta.Size)
	return nil
}

func listTries(ctx context.Context, idx indexer.Indexer, w io.Writer) error {
	tries, err := idx.ListTries(ctx)
	if err != nil {
		return err
	}
	for _, meta := range tries {
		fmt.Fprintf(w, "%s\t%s\t%x\t%d keys\t%d bytes\n", meta.Name, meta.ID, meta.Hash[:], meta.Keys, meta.Size)
	}
	return nil
}

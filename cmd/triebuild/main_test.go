package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shruggr/geotrie/records"
)

func testConfig(t *testing.T, records string) *config {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "records.tsv")
	if err := os.WriteFile(input, []byte(records), 0o644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}
	return &config{
		input:       input,
		output:      filepath.Join(dir, "out.trie"),
		name:        "words",
		storageType: "memory",
		edgeType:    "none",
		valueType:   "prefixed",
		valueWidth:  4,
		valueFormat: "uint32",
		cacheSize:   4,
		cacheBytes:  1 << 20,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunWritesTrie(t *testing.T) {
	cfg := testConfig(t, "ab\t1\nac\t2\nb\t3\n")
	cfg.valueType = "fixed"
	cfg.edgeType = "max"

	if err := run(context.Background(), quietLogger(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	trie, err := os.ReadFile(cfg.output)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	// Root: no values, two children
	if len(trie) == 0 || trie[0] != 0x02 {
		t.Errorf("Unexpected trie: %x", trie)
	}
}

func TestRunSortsInput(t *testing.T) {
	cfg := testConfig(t, "b\t3\nab\t1\nac\t2\n")

	err := run(context.Background(), quietLogger(), cfg)
	if err == nil {
		t.Fatal("Expected unsorted input to fail without -sort")
	}

	cfg.sortInput = true
	if err := run(context.Background(), quietLogger(), cfg); err != nil {
		t.Fatalf("run with sort failed: %v", err)
	}
}

func TestRunMalformedInput(t *testing.T) {
	cfg := testConfig(t, "a\t1\nb\tnot-a-number\n")

	err := run(context.Background(), quietLogger(), cfg)
	if !errors.Is(err, records.ErrMalformedLine) {
		t.Fatalf("Expected ErrMalformedLine, got %v", err)
	}
	if _, statErr := os.Stat(cfg.output); statErr == nil {
		t.Error("No trie should be written for malformed input")
	}
}

func TestRunFixedWidthMismatch(t *testing.T) {
	cfg := testConfig(t, "a\tabcd\nb\tabc\n")
	cfg.valueType = "fixed"
	cfg.valueFormat = "text"

	err := run(context.Background(), quietLogger(), cfg)
	if !errors.Is(err, records.ErrMalformedLine) {
		t.Fatalf("Expected ErrMalformedLine, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected the line number in %q", err)
	}

	cfg.sortInput = true
	if err := run(context.Background(), quietLogger(), cfg); !errors.Is(err, records.ErrMalformedLine) {
		t.Errorf("Expected ErrMalformedLine with sorting, got %v", err)
	}
}

func TestRunSpillDir(t *testing.T) {
	cfg := testConfig(t, "ab\t1\nac\t2\nb\t3\n")
	cfg.spillDir = t.TempDir()

	if err := run(context.Background(), quietLogger(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	spilled, err := os.ReadFile(cfg.output)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}

	cfg.spillDir = ""
	if err := run(context.Background(), quietLogger(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	inMemory, err := os.ReadFile(cfg.output)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}

	if string(spilled) != string(inMemory) {
		t.Errorf("Spilled build differs:\n got %x\nwant %x", spilled, inMemory)
	}
}

func TestRunBadgerCatalog(t *testing.T) {
	cfg := testConfig(t, "a\t1\n")
	cfg.storageType = "badger"
	cfg.dataDir = filepath.Join(t.TempDir(), "data")
	cfg.output = ""

	if err := run(context.Background(), quietLogger(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// The catalog and blob survive a reopen
	cfg.list = true
	if err := run(context.Background(), quietLogger(), cfg); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	cfg.list = false
	cfg.deleteName = "words"
	if err := run(context.Background(), quietLogger(), cfg); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := run(context.Background(), quietLogger(), cfg); err == nil {
		t.Error("Expected a second delete to fail")
	}
}

func TestBuildOptions(t *testing.T) {
	tests := []struct {
		name        string
		valueFormat string
		valueType   string
		valueWidth  int
		edgeType    string
		edgeSize    int
		wantErr     bool
	}{
		{name: "defaults", valueFormat: "text", valueType: "prefixed", edgeType: "none"},
		{name: "uint32 max", valueFormat: "uint32", valueType: "fixed", valueWidth: 4, edgeType: "max", edgeSize: 4},
		{name: "text max", valueFormat: "text", valueType: "prefixed", edgeType: "max", edgeSize: 1},
		{name: "bad format", valueFormat: "json", valueType: "prefixed", edgeType: "none", wantErr: true},
		{name: "bad list", valueFormat: "text", valueType: "packed", edgeType: "none", wantErr: true},
		{name: "bad width", valueFormat: "text", valueType: "fixed", edgeType: "none", wantErr: true},
		{name: "uint32 not 4 wide", valueFormat: "uint32", valueType: "fixed", valueWidth: 2, edgeType: "none", wantErr: true},
		{name: "text fixed", valueFormat: "text", valueType: "fixed", valueWidth: 3, edgeType: "none"},
		{name: "bad edge", valueFormat: "text", valueType: "prefixed", edgeType: "min", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			parse, opts, err := buildOptions(test.valueFormat, test.valueType, test.valueWidth, test.edgeType)
			if test.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if parse == nil || opts.NewValueList == nil {
				t.Fatal("Expected a parser and a value list")
			}
			if opts.EdgeBuilder.Size() != test.edgeSize {
				t.Errorf("Expected edge size %d, got %d", test.edgeSize, opts.EdgeBuilder.Size())
			}
		})
	}
}

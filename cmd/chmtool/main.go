// Command chmtool lists, extracts and serves the contents of compiled HTML
// help (.chm) files.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	chm "github.com/ZaparooProject/go-chm"
	"github.com/ZaparooProject/go-chm/hhc"
	"github.com/ZaparooProject/go-chm/itss"
)

const appVersion = "0.1.0"

type options struct {
	input      string
	match      string
	extract    string
	output     string
	extractAll string
	serve      string
	cache      int
	list       bool
	toc        bool
	hash       bool
	jsonOutput bool
	verbose    bool
	version    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	fset := flag.NewFlagSet("chmtool", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&o.input, "i", "", "input file path, may point inside a .zip, .7z or .rar (required)")
	fset.BoolVar(&o.list, "list", false, "list every entry, including internal streams")
	fset.StringVar(&o.match, "match", "", "only content files matching a glob such as '**/*.htm'")
	fset.BoolVar(&o.toc, "toc", false, "print the table of contents")
	fset.StringVar(&o.extract, "extract", "", "write one entry to stdout or -o")
	fset.StringVar(&o.output, "o", "", "output file for -extract")
	fset.StringVar(&o.extractAll, "extract-all", "", "extract content files into a directory")
	fset.BoolVar(&o.hash, "hash", false, "include the xxhash64 of each listed file")
	fset.BoolVar(&o.jsonOutput, "json", false, "output as JSON")
	fset.StringVar(&o.serve, "serve", "", "serve content files over HTTP on this address")
	fset.IntVar(&o.cache, "cache", itss.DefaultWindowCache, "number of decoded LZX windows to cache")
	fset.BoolVar(&o.verbose, "v", false, "debug logging")
	fset.BoolVar(&o.version, "version", false, "print version and exit")
	fset.Usage = func() {
		fmt.Fprintf(stderr, "Usage: chmtool -i <file> [options]\n\n")
		fmt.Fprintf(stderr, "Lists, extracts and serves compiled HTML help files.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fset.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  chmtool -i help.chm\n")
		fmt.Fprintf(stderr, "  chmtool -i manuals.zip/api/help.chm -toc\n")
		fmt.Fprintf(stderr, "  chmtool -i help.chm -match '**/*.htm' -hash -json\n")
		fmt.Fprintf(stderr, "  chmtool -i help.chm -extract /index.htm -o index.htm\n")
		fmt.Fprintf(stderr, "  chmtool -i help.chm -serve localhost:8080\n")
	}
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	return &o, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	if o.version {
		fmt.Fprintf(stdout, "chmtool version %s\n", appVersion)
		return 0
	}
	if o.input == "" {
		fmt.Fprintf(stderr, "Error: input file required (-i)\n")
		return 1
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	f, err := chm.Open(o.input, chm.WithLogger(logger), chm.WithWindowCache(o.cache))
	if err != nil {
		fmt.Fprintf(stderr, "Error opening help file: %v\n", err)
		return 1
	}
	defer func() { _ = f.Close() }()

	switch {
	case o.serve != "":
		err = serve(o.serve, f, logger)
	case o.extract != "":
		err = extract(f, o.extract, o.output, stdout)
	case o.extractAll != "":
		err = extractAll(f, o.extractAll, o.match, logger)
	case o.toc:
		err = printOutline(f, o.jsonOutput, stdout)
	default:
		err = printListing(f, o, stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type listing struct {
	Name    string `json:"name"`
	Hash    string `json:"xxhash64,omitempty"`
	Section uint64 `json:"section"`
	Offset  uint64 `json:"offset"`
	Length  uint64 `json:"length"`
}

func selectNames(f *chm.File, o *options) ([]string, error) {
	switch {
	case o.match != "":
		return f.Glob(o.match) //nolint:wrapcheck // message is already descriptive
	case o.list:
		return f.List() //nolint:wrapcheck // itss errors are typed
	default:
		return f.ContentFiles() //nolint:wrapcheck // itss errors are typed
	}
}

func printListing(f *chm.File, o *options, w io.Writer) error {
	names, err := selectNames(f, o)
	if err != nil {
		return err
	}

	rows := make([]listing, 0, len(names))
	for _, name := range names {
		e, err := f.Stat(name)
		if err != nil {
			return fmt.Errorf("stat %s: %w", name, err)
		}
		row := listing{Name: e.Name, Section: e.Section, Offset: e.Offset, Length: e.Length}
		if o.hash && !e.IsDir() {
			data, err := f.ReadEntry(name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			row.Hash = fmt.Sprintf("%016x", xxhash.Sum64(data))
		}
		rows = append(rows, row)
	}

	if o.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		return nil
	}
	for _, row := range rows {
		if row.Hash != "" {
			fmt.Fprintf(w, "%s  %10d  %s\n", row.Hash, row.Length, row.Name)
		} else {
			fmt.Fprintf(w, "%d %10d  %s\n", row.Section, row.Length, row.Name)
		}
	}
	return nil
}

func printOutline(f *chm.File, jsonOutput bool, w io.Writer) error {
	root, err := f.Outline()
	if err != nil {
		return err //nolint:wrapcheck // already names the sitemap
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(root); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		return nil
	}
	return root.Walk(func(n *hhc.Node, depth int) error { //nolint:wrapcheck // callback never fails
		if depth == 0 {
			return nil
		}
		indent := strings.Repeat("  ", depth-1)
		switch {
		case n.Local != "":
			fmt.Fprintf(w, "%s%s (%s)\n", indent, n.Name, n.Local)
		case n.URL != "":
			fmt.Fprintf(w, "%s%s <%s>\n", indent, n.Name, n.URL)
		default:
			fmt.Fprintf(w, "%s%s\n", indent, n.Name)
		}
		return nil
	})
}

func extract(f *chm.File, name, output string, stdout io.Writer) error {
	r, err := f.OpenEntry(name)
	if err != nil {
		return err //nolint:wrapcheck // itss errors name the entry
	}
	if output == "" {
		if _, err := io.Copy(stdout, r); err != nil {
			return fmt.Errorf("extract %s: %w", name, err)
		}
		return nil
	}

	out, err := os.Create(output) //nolint:gosec // user-provided output path
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// extractAll writes content files below dir, keeping their paths. Names
// that would escape dir are skipped.
func extractAll(f *chm.File, dir, match string, logger *slog.Logger) error {
	var names []string
	var err error
	if match != "" {
		names, err = f.Glob(match)
	} else {
		names, err = f.ContentFiles()
	}
	if err != nil {
		return err //nolint:wrapcheck // itss errors are typed
	}

	fsys := f.FS()
	for _, name := range names {
		rel := strings.TrimPrefix(name, "/")
		if !fs.ValidPath(rel) {
			logger.Warn("skipping entry with unsafe path", "name", name)
			continue
		}
		data, err := fs.ReadFile(fsys, rel)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		dest := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
		if err := os.WriteFile(dest, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		logger.Debug("extracted", "name", name, "size", len(data))
	}
	return nil
}

// newHandler serves the content files, logging each request at debug level.
func newHandler(f *chm.File, logger *slog.Logger) http.Handler {
	files := http.FileServerFS(f.FS())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		files.ServeHTTP(w, r)
	})
}

func serve(addr string, f *chm.File, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newHandler(f, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("serving help file", "addr", addr, "file", f.Name())

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Command pakx lists, extracts, and creates .pak containers.
//
// Usage:
//
//	pakx list    [-key K] [-v] ARCHIVE
//	pakx extract [-key K] [-index N | -name NAME | -all] [-out PATH] ARCHIVE
//	pakx create  [-key K] [-compression zstd] [-o OUT] DIR
//
// ARCHIVE is a file path or an http(s) URL. The key may also be given
// through the PAK_KEY environment variable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/meigma/pak"
	"github.com/meigma/pak/cache/disk"
	pakhttp "github.com/meigma/pak/http"
)

const keyEnv = "PAK_KEY"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	var err error
	switch args[0] {
	case "list", "ls":
		err = runList(ctx, args[1:], stdout, stderr)
	case "extract", "x":
		err = runExtract(ctx, args[1:], stdout, stderr)
	case "create", "c":
		err = runCreate(ctx, args[1:], stderr)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "pakx: unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintf(stderr, "pakx: %v\n", err)
		return 1
	}
}

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: pakx <command> [flags]

commands:
  list     print the entries of an archive
  extract  write one entry or every entry to disk
  create   build an archive from a directory

Run "pakx <command> -h" for the flags of a command.
`)
}

// common holds the flags shared by the reading commands.
type common struct {
	key      string
	verbose  bool
	cacheDir string
	noVerify bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.key, "key", "", "AES-256 key as hex or base64 (default $"+keyEnv+")")
	fs.BoolVar(&c.verbose, "v", false, "log debug output to stderr")
	fs.StringVar(&c.cacheDir, "cache", "", "directory for a disk cache of decoded entries")
	fs.BoolVar(&c.noVerify, "no-verify", false, "skip SHA-1 verification of entries")
}

func (c *common) logger(stderr io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

func (c *common) parseKey() (pak.Key, error) {
	text := c.key
	if text == "" {
		text = os.Getenv(keyEnv)
	}
	return pak.ParseKey(text)
}

// openArchive opens a local path or an http(s) URL. The returned close
// function releases the file handle, if any.
func (c *common) openArchive(ctx context.Context, location string, logger *slog.Logger) (*pak.Archive, func() error, error) {
	key, err := c.parseKey()
	if err != nil {
		return nil, nil, err
	}
	opts := []pak.Option{pak.WithLogger(logger), pak.WithVerify(!c.noVerify)}
	if c.cacheDir != "" {
		dc, err := disk.New(c.cacheDir)
		if err != nil {
			return nil, nil, fmt.Errorf("cache: %w", err)
		}
		opts = append(opts, pak.WithCache(dc))
	}

	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		src, err := pakhttp.NewSource(ctx, location)
		if err != nil {
			return nil, nil, err
		}
		a, err := pak.New(src, key, opts...)
		if err != nil {
			return nil, nil, err
		}
		return a, func() error { return nil }, nil
	}

	af, err := pak.Open(location, key, opts...)
	if err != nil {
		return nil, nil, err
	}
	return af.Archive, af.Close, nil
}

func runList(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: pakx list [flags] ARCHIVE")
		return errUsage
	}

	a, closeFn, err := c.openArchive(ctx, fs.Arg(0), c.logger(stderr))
	if err != nil {
		return err
	}
	defer closeFn() //nolint:errcheck // read-only handle

	fmt.Fprintf(stdout, "version: %d\nmount point: %s\nindex encrypted: %t\nindex digest: %s\nentries: %d\n\n",
		a.Version(), a.MountPoint(), a.IndexEncrypted(), a.IndexDigest(), a.Len())

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "INDEX\tSIZE\tSTORED\tCODEC\tFLAGS\t NAME")
	for i, e := range a.All() {
		flags := "-"
		switch {
		case e.Deleted:
			flags = "D"
		case e.Encrypted:
			flags = "E"
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t %s\n", i, e.UncompressedSize, e.Size, e.Compression, flags, e.Name)
	}
	return tw.Flush()
}

func runExtract(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	index := fs.Int("index", -1, "entry index to extract")
	name := fs.String("name", "", "entry name to extract")
	all := fs.Bool("all", false, "extract every entry into the -out directory")
	out := fs.String("out", "-", `destination file ("-" for stdout), or directory with -all`)
	prefix := fs.String("prefix", "", "with -all, only extract entries under this directory")
	overwrite := fs.Bool("overwrite", false, "replace existing files")
	workers := fs.Int("workers", 0, "with -all, number of parallel writers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	selected := 0
	for _, set := range []bool{*index >= 0, *name != "", *all} {
		if set {
			selected++
		}
	}
	if fs.NArg() != 1 || selected != 1 {
		fmt.Fprintln(stderr, "usage: pakx extract [flags] (-index N | -name NAME | -all) ARCHIVE")
		return errUsage
	}

	logger := c.logger(stderr)
	a, closeFn, err := c.openArchive(ctx, fs.Arg(0), logger)
	if err != nil {
		return err
	}
	defer closeFn() //nolint:errcheck // read-only handle

	if *all {
		if *out == "-" {
			*out = "."
		}
		opts := []pak.CopyOption{pak.CopyWithOverwrite(*overwrite), pak.CopyWithPrefix(*prefix)}
		if *workers > 0 {
			opts = append(opts, pak.CopyWithWorkers(*workers))
		}
		stats, err := a.CopyAll(ctx, *out, opts...)
		if err != nil {
			return err
		}
		logger.Info("extracted", "files", stats.Files, "skipped", stats.Skipped, "bytes", stats.Bytes, "dir", *out)
		return nil
	}

	i := *index
	if *name != "" {
		var ok bool
		if i, ok = a.Index(*name); !ok {
			return fmt.Errorf("%s: %w", *name, pak.ErrNotFound)
		}
	}
	if *out == "-" {
		_, err := a.WriteEntryTo(i, stdout)
		return err
	}
	return a.CopyEntry(i, filepath.Clean(*out), pak.CopyWithOverwrite(*overwrite))
}

func runCreate(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	key := fs.String("key", "", "AES-256 key as hex or base64 (default $"+keyEnv+")")
	out := fs.String("o", "out.pak", "output archive path")
	version := fs.Int("version", int(pak.VersionLatest), "container version")
	codec := fs.String("compression", "none", "codec: none, zlib, gzip, zstd, lz4")
	mount := fs.String("mount", pak.DefaultMountPoint, "mount point stored in the index")
	encryptIndex := fs.Bool("encrypt-index", false, "encrypt the index")
	encryptPayloads := fs.Bool("encrypt-payloads", false, "encrypt entry contents")
	verbose := fs.Bool("v", false, "log debug output to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: pakx create [flags] DIR")
		return errUsage
	}

	c := common{key: *key, verbose: *verbose}
	k, err := c.parseKey()
	if err != nil {
		return err
	}
	compression, err := pak.ParseCompression(*codec)
	if err != nil {
		return err
	}
	logger := c.logger(stderr)

	tmp, err := os.CreateTemp(filepath.Dir(*out), ".pakx-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	err = pak.Create(ctx, fs.Arg(0), tmp,
		pak.CreateWithVersion(int32(*version)), //nolint:gosec // validated by the writer
		pak.CreateWithCompression(compression),
		pak.CreateWithSkipCompression(pak.DefaultSkipCompression(256)),
		pak.CreateWithMountPoint(*mount),
		pak.CreateWithKey(k),
		pak.CreateWithIndexEncryption(*encryptIndex),
		pak.CreateWithPayloadEncryption(*encryptPayloads),
		pak.CreateWithLogger(logger),
	)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), *out)
}

package http_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meigma/pak"
	pakhttp "github.com/meigma/pak/http"
)

// countingServer serves data with range support and counts requests.
func countingServer(t *testing.T, data []byte, modTime time.Time) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		requests.Add(1)
		nethttp.ServeContent(w, r, "data.pak", modTime, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestSourceReadAt(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	server, _ := countingServer(t, data, time.Time{})

	src, err := pakhttp.NewSource(context.Background(), server.URL, pakhttp.WithTailPrefetch(100))
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if src.Size() != int64(len(data)) {
		t.Fatalf("Size() = %d, want %d", src.Size(), len(data))
	}

	tests := []struct {
		name    string
		off     int64
		len     int
		wantN   int
		wantEOF bool
	}{
		{name: "head", off: 0, len: 10, wantN: 10},
		{name: "inside tail", off: 950, len: 50, wantN: 50},
		{name: "across tail start", off: 890, len: 20, wantN: 20},
		{name: "past end from tail", off: 990, len: 20, wantN: 10, wantEOF: true},
		{name: "past end remote", off: 850, len: 200, wantN: 150, wantEOF: true},
		{name: "at end", off: 1000, len: 1, wantN: 0, wantEOF: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.len)
			n, err := src.ReadAt(buf, tt.off)
			if tt.wantEOF {
				if !errors.Is(err, io.EOF) {
					t.Fatalf("ReadAt() error = %v, want io.EOF", err)
				}
			} else if err != nil {
				t.Fatalf("ReadAt() error = %v", err)
			}
			if n != tt.wantN {
				t.Fatalf("ReadAt() n = %d, want %d", n, tt.wantN)
			}
			if !bytes.Equal(buf[:n], data[tt.off:tt.off+int64(n)]) {
				t.Fatalf("ReadAt() returned wrong bytes at %d", tt.off)
			}
		})
	}

	if _, err := src.ReadAt(make([]byte, 1), -1); err == nil {
		t.Fatal("ReadAt() with negative offset: expected error")
	}
}

func TestSourceTailPrefetch(t *testing.T) {
	data := bytes.Repeat([]byte("tail"), 256)
	server, requests := countingServer(t, data, time.Time{})

	src, err := pakhttp.NewSource(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("requests after NewSource = %d, want 2 (probe and tail)", got)
	}

	buf := make([]byte, 64)
	for _, off := range []int64{0, 100, 960} {
		if _, err := src.ReadAt(buf, off); err != nil {
			t.Fatalf("ReadAt(%d) error = %v", off, err)
		}
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("requests after reads = %d, want 2", got)
	}
}

func TestSourceRangeUnsupported(t *testing.T) {
	data := []byte("range unsupported")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)

	_, err := pakhttp.NewSource(context.Background(), server.URL)
	if !errors.Is(err, pakhttp.ErrRangeUnsupported) {
		t.Fatalf("NewSource() error = %v, want ErrRangeUnsupported", err)
	}
}

func TestSourceNotFound(t *testing.T) {
	server := httptest.NewServer(nethttp.NotFoundHandler())
	t.Cleanup(server.Close)

	_, err := pakhttp.NewSource(context.Background(), server.URL)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("NewSource() error = %v, want fs.ErrNotExist", err)
	}
}

func TestSourceHeaders(t *testing.T) {
	data := []byte("authorized content")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("Authorization") != "Bearer token" || r.Header.Get("X-Trace") != "1" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	if _, err := pakhttp.NewSource(context.Background(), server.URL); err == nil {
		t.Fatal("NewSource() without headers: expected error")
	}

	src, err := pakhttp.NewSource(context.Background(), server.URL,
		pakhttp.WithHeaders(nethttp.Header{"X-Trace": []string{"1"}}),
		pakhttp.WithHeader("Authorization", "Bearer token"),
		pakhttp.WithTailPrefetch(0),
		pakhttp.WithSourceID("custom"),
	)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if src.SourceID() != "custom" {
		t.Fatalf("SourceID() = %q, want %q", src.SourceID(), "custom")
	}
	buf := make([]byte, 10)
	if _, err := src.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt() error = %v", err)
	}
	if string(buf) != "authorized" {
		t.Fatalf("ReadAt() got %q", string(buf))
	}
}

func TestSourceConditionalRetry(t *testing.T) {
	data := []byte("conditional content")
	modTime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var conditional atomic.Int64
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("If-Unmodified-Since") != "" {
			conditional.Add(1)
			w.WriteHeader(nethttp.StatusPreconditionFailed)
			return
		}
		nethttp.ServeContent(w, r, "data", modTime, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	src, err := pakhttp.NewSource(context.Background(), server.URL,
		pakhttp.WithConditionalHeaders(),
		pakhttp.WithTailPrefetch(0))
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if want := "url:" + server.URL + "|mod:" + modTime.Format(nethttp.TimeFormat) + "|size:19"; src.SourceID() != want {
		t.Fatalf("SourceID() = %q, want %q", src.SourceID(), want)
	}

	buf := make([]byte, 11)
	if _, err := src.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt() error = %v", err)
	}
	if string(buf) != "conditional" {
		t.Fatalf("ReadAt() got %q", string(buf))
	}
	if conditional.Load() != 1 {
		t.Fatalf("conditional requests = %d, want 1", conditional.Load())
	}
}

func TestOpenArchiveOverHTTP(t *testing.T) {
	key := pak.Key(bytes.Repeat([]byte{0x11}, pak.KeySize))
	files := map[string][]byte{
		"Game/Content/a.txt": bytes.Repeat([]byte("remote archive "), 400),
		"Game/Content/b.bin": {1, 2, 3, 4, 5},
	}
	names := []string{"Game/Content/a.txt", "Game/Content/b.bin"}

	var buf bytes.Buffer
	w, err := pak.NewWriter(&buf,
		pak.CreateWithCompression(pak.CompressionZstd),
		pak.CreateWithKey(key),
		pak.CreateWithIndexEncryption(true),
		pak.CreateWithPayloadEncryption(true))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	for _, name := range names {
		if err := w.Add(name, files[name]); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	server, requests := countingServer(t, buf.Bytes(), time.Time{})
	src, err := pakhttp.NewSource(context.Background(), server.URL, pakhttp.WithTailPrefetch(64))
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	archive, err := pak.New(src, key)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if archive.Len() != len(names) {
		t.Fatalf("Len() = %d, want %d", archive.Len(), len(names))
	}
	opened := requests.Load()

	for _, name := range names {
		got, err := archive.ReadFile(name)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", name, err)
		}
		if !bytes.Equal(got, files[name]) {
			t.Fatalf("ReadFile(%s) content mismatch", name)
		}
	}
	if requests.Load() <= opened {
		t.Fatal("expected payload reads to go over HTTP")
	}
}

func TestSourceOutlivesConstructionContext(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 100)
	server, _ := countingServer(t, data, time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	src, err := pakhttp.NewSource(ctx, server.URL, pakhttp.WithTailPrefetch(0))
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	cancel()

	buf := make([]byte, 10)
	if _, err := src.ReadAt(buf, 20); err != nil {
		t.Fatalf("ReadAt() after cancel error = %v", err)
	}
	if string(buf) != "0123456789" {
		t.Fatalf("ReadAt() = %q", buf)
	}

	readCtx, readCancel := context.WithCancel(context.Background())
	readCancel()
	if _, err := src.ReadAtContext(readCtx, buf, 20); !errors.Is(err, context.Canceled) {
		t.Fatalf("ReadAtContext() error = %v, want context.Canceled", err)
	}
}

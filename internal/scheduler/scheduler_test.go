package scheduler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanq16/partdl/internal/engine"
	"github.com/tanq16/partdl/internal/output"
	"github.com/tanq16/partdl/internal/utils"
)

// abortingWriter sends remaining body bytes and then drops the connection.
type abortingWriter struct {
	http.ResponseWriter
	remaining int
}

func (w *abortingWriter) Write(p []byte) (int, error) {
	if len(p) >= w.remaining {
		w.ResponseWriter.Write(p[:w.remaining])
		if f, ok := w.ResponseWriter.(http.Flusher); ok {
			f.Flush()
		}
		panic(http.ErrAbortHandler)
	}
	w.remaining -= len(p)
	return w.ResponseWriter.Write(p)
}

type fileServer struct {
	files    map[string][]byte
	dropOnce atomic.Bool
	ranges   atomic.Int32
	drop     bool
}

func (s *fileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, ok := s.files[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	rangeHeader := r.Header.Get("Range")
	if rangeHeader != "" {
		s.ranges.Add(1)
		if s.drop && !strings.HasPrefix(rangeHeader, "bytes=0-") && s.dropOnce.CompareAndSwap(false, true) {
			w = &abortingWriter{ResponseWriter: w, remaining: 3 * utils.MiB}
		}
	}
	http.ServeContent(w, r, filepath.Base(r.URL.Path), time.Time{}, bytes.NewReader(data))
}

func randomData(n int) []byte {
	rng := rand.New(rand.NewPCG(7, 11))
	data := make([]byte, n)
	for i := 0; i+8 <= n; i += 8 {
		v := rng.Uint64()
		for j := range 8 {
			data[i+j] = byte(v >> (8 * j))
		}
	}
	return data
}

func fileDigest(t *testing.T, path string) [32]byte {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	h := sha256.New()
	_, err = io.Copy(h, f)
	require.NoError(t, err)
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func testOptions(buf *bytes.Buffer) Options {
	return Options{
		MaxConcurrency: 4,
		Backoff:        func(int64) time.Duration { return 10 * time.Millisecond },
		IdleTimeout:    10 * time.Second,
		Output:         output.NewManager(buf),
	}
}

func TestRunLargeFileWithDisconnect(t *testing.T) {
	const size = 120 * utils.MiB
	data := randomData(size)
	srv := &fileServer{files: map[string][]byte{"/big.bin": data}, drop: true}
	server := httptest.NewServer(srv)
	defer server.Close()
	dir := t.TempDir()
	dest := filepath.Join(dir, "big.bin")

	var buf bytes.Buffer
	results := Run(context.Background(), []utils.DownloadTask{utils.NewTask(server.URL+"/big.bin", dest)}, testOptions(&buf))

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, utils.StatusCompleted, results[0].Status)
	assert.Equal(t, engine.PartCount(size), results[0].Parts)
	assert.GreaterOrEqual(t, results[0].Parts, 2)
	assert.LessOrEqual(t, results[0].Parts, 4)
	assert.True(t, srv.dropOnce.Load(), "one part should have been disconnected")
	assert.Greater(t, int(srv.ranges.Load()), results[0].Parts, "the dropped part should have been retried")

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, int64(size), info.Size())
	assert.Equal(t, sha256.Sum256(data), fileDigest(t, dest))
	leftovers, err := filepath.Glob(dest + ".part*")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
	assert.Contains(t, buf.String(), "Completed 1 of 1")
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	small := randomData(64 * 1024)
	srv := &fileServer{files: map[string][]byte{
		"/one.bin": small,
		"/two.bin": small[:1000],
	}}
	server := httptest.NewServer(srv)
	defer server.Close()
	dir := t.TempDir()

	tasks := []utils.DownloadTask{
		utils.NewTask(server.URL+"/one.bin", filepath.Join(dir, "one.bin")),
		utils.NewTask(server.URL+"/missing.bin", filepath.Join(dir, "missing.bin")),
		utils.NewTask("ftp://example.com/x", filepath.Join(dir, "x")),
		utils.NewTask(server.URL+"/two.bin", filepath.Join(dir, "sub", "two.bin")),
	}
	var buf bytes.Buffer
	results := Run(context.Background(), tasks, testOptions(&buf))

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, tasks[i].ID, r.Task.ID, "results must keep input order")
	}
	assert.Equal(t, utils.StatusCompleted, results[0].Status)
	assert.ErrorIs(t, results[1].Err, utils.ErrMetadata)
	assert.ErrorIs(t, results[2].Err, utils.ErrUnsupportedURL)
	assert.Equal(t, utils.StatusCompleted, results[3].Status)

	got, err := os.ReadFile(filepath.Join(dir, "sub", "two.bin"))
	require.NoError(t, err)
	assert.Equal(t, small[:1000], got)
	assert.Contains(t, buf.String(), "Completed 2 of 4")
	assert.Contains(t, buf.String(), "Failed 2 of 4")
}

func TestRunSkipsCompletedFile(t *testing.T) {
	data := randomData(32 * 1024)
	srv := &fileServer{files: map[string][]byte{"/a.bin": data}}
	server := httptest.NewServer(srv)
	defer server.Close()
	dest := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(dest, data, 0644))

	var buf bytes.Buffer
	results := Run(context.Background(), []utils.DownloadTask{utils.NewTask(server.URL+"/a.bin", dest)}, testOptions(&buf))

	require.Len(t, results, 1)
	assert.Equal(t, utils.StatusSkipped, results[0].Status)
	assert.Zero(t, srv.ranges.Load())
	assert.Contains(t, buf.String(), "Skipped 1 of 1")
}

func TestRunResolvesRelativeOutput(t *testing.T) {
	data := randomData(48 * 1024)
	srv := &fileServer{files: map[string][]byte{"/a.bin": data}}
	server := httptest.NewServer(srv)
	defer server.Close()
	dir := t.TempDir()
	t.Chdir(dir)

	var buf bytes.Buffer
	task := utils.NewTask(server.URL+"/a.bin", filepath.Join("rel", "a.bin"))
	results := Run(context.Background(), []utils.DownloadTask{task}, testOptions(&buf))

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.True(t, filepath.IsAbs(results[0].Task.OutputPath))
	assert.Equal(t, task.ID, results[0].Task.ID)
	got, err := os.ReadFile(filepath.Join(dir, "rel", "a.bin"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestRunRejectsMarkup(t *testing.T) {
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", "13")
		if r.Method == http.MethodGet {
			io.WriteString(w, "<html></html>")
		}
	})
	server := httptest.NewServer(srv)
	defer server.Close()

	var buf bytes.Buffer
	dest := filepath.Join(t.TempDir(), "page")
	results := Run(context.Background(), []utils.DownloadTask{utils.NewTask(server.URL, dest)}, testOptions(&buf))
	assert.ErrorIs(t, results[0].Err, utils.ErrContentType)
	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultConcurrency(t *testing.T) {
	n := DefaultConcurrency()
	assert.GreaterOrEqual(t, n, 2)
	assert.LessOrEqual(t, n, 32)
	assert.Equal(t, n, Options{}.withDefaults().MaxConcurrency)
}

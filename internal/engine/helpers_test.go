package engine

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/tanq16/partdl/internal/utils"
)

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte((i*31 + i/251) % 256)
	}
	return data
}

type rangeCall struct {
	start, end int64
}

// fakeSource serves data from memory. respond, when set, overrides the
// default partial-content reply.
type fakeSource struct {
	data     []byte
	meta     utils.ResourceMetadata
	probeErr error
	respond  func(ctx context.Context, call int, start, end int64) (*utils.RangeBody, error)

	mu    sync.Mutex
	calls []rangeCall
}

func newFakeSource(data []byte) *fakeSource {
	return &fakeSource{
		data: data,
		meta: utils.ResourceMetadata{
			TotalSize:              int64(len(data)),
			ContentType:            "application/octet-stream",
			SupportsPartialContent: true,
		},
	}
}

func (s *fakeSource) Probe(ctx context.Context) (utils.ResourceMetadata, error) {
	return s.meta, s.probeErr
}

func (s *fakeSource) OpenRange(ctx context.Context, start, end int64) (*utils.RangeBody, error) {
	s.mu.Lock()
	call := len(s.calls)
	s.calls = append(s.calls, rangeCall{start, end})
	s.mu.Unlock()
	if s.respond != nil {
		return s.respond(ctx, call, start, end)
	}
	return s.partial(start, end), nil
}

func (s *fakeSource) partial(start, end int64) *utils.RangeBody {
	return &utils.RangeBody{Body: io.NopCloser(bytes.NewReader(s.data[start : end+1])), Partial: true}
}

func (s *fakeSource) full() *utils.RangeBody {
	return &utils.RangeBody{Body: io.NopCloser(bytes.NewReader(s.data)), Partial: false}
}

func (s *fakeSource) recorded() []rangeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]rangeCall(nil), s.calls...)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// truncated yields data and then fails the way a dropped connection does.
func truncated(data []byte) io.ReadCloser {
	return io.NopCloser(io.MultiReader(bytes.NewReader(data), errReader{io.ErrUnexpectedEOF}))
}

// stallReader blocks until its request context is cancelled.
type stallReader struct{ ctx context.Context }

func (r stallReader) Read([]byte) (int, error) {
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

func (r stallReader) Close() error { return nil }

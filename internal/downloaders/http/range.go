package partdlhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tanq16/partdl/internal/utils"
)

func (s *Source) OpenRange(ctx context.Context, start, end int64) (*utils.RangeBody, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		if err := checkContentRange(resp.Header.Get("Content-Range"), start); err != nil {
			drain(resp.Body)
			return nil, err
		}
		return &utils.RangeBody{Body: resp.Body, Partial: true}, nil
	case http.StatusOK:
		return &utils.RangeBody{Body: resp.Body, Partial: false}, nil
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("%w: %d for bytes=%d-%d", utils.ErrUnexpectedStatus, resp.StatusCode, start, end)
	}
}

// checkContentRange verifies a 206 starts where it was asked to.
func checkContentRange(header string, start int64) error {
	if header == "" {
		return nil
	}
	var first, last, size int64
	value := strings.Replace(header, "/*", "/-1", 1)
	if _, err := fmt.Sscanf(value, "bytes %d-%d/%d", &first, &last, &size); err != nil {
		return fmt.Errorf("%w: malformed Content-Range %q", utils.ErrUnexpectedStatus, header)
	}
	if first != start {
		return fmt.Errorf("%w: Content-Range %q does not start at %d", utils.ErrUnexpectedStatus, header, start)
	}
	return nil
}

func drain(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, 4096))
	body.Close()
}

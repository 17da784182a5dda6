package partdlhttp

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tanq16/partdl/internal/utils"
)

var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. \[\]\(\)]+`)

// Source reads an HTTP(S) resource with HEAD and ranged GET requests.
type Source struct {
	url    string
	client utils.HTTPDoer
}

func NewSource(link string, client utils.HTTPDoer) (*Source, error) {
	parsedURL, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", utils.ErrUnsupportedURL, parsedURL.Scheme)
	}
	return &Source{url: link, client: client}, nil
}

func (s *Source) Probe(ctx context.Context) (utils.ResourceMetadata, error) {
	var meta utils.ResourceMetadata
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url, nil)
	if err != nil {
		return meta, fmt.Errorf("error creating request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return meta, fmt.Errorf("error checking URL: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return meta, fmt.Errorf("%w: %d from HEAD %s", utils.ErrUnexpectedStatus, resp.StatusCode, s.url)
	}
	// range requests keep going to s.url; redirect targets may be single use
	if final := resp.Request.URL.String(); final != s.url {
		log.Debug().Str("op", "http/probe").Str("from", s.url).Str("to", final).Msg("Probe redirected")
	}

	meta.ContentType = resp.Header.Get("Content-Type")
	meta.SupportsPartialContent = strings.EqualFold(strings.TrimSpace(resp.Header.Get("Accept-Ranges")), "bytes")
	meta.FileName = fileNameFromDisposition(resp.Header.Get("Content-Disposition"))
	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		size, err := strconv.ParseInt(contentLength, 10, 64)
		if err != nil {
			return meta, fmt.Errorf("%w: bad Content-Length %q", utils.ErrMetadata, contentLength)
		}
		meta.TotalSize = size
	}
	log.Debug().Str("op", "http/probe").Int64("size", meta.TotalSize).Str("type", meta.ContentType).
		Bool("ranges", meta.SupportsPartialContent).Msg("Probed resource")
	return meta, nil
}

func fileNameFromDisposition(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	// mime decodes RFC 2231 filename* into filename
	if fn, ok := params["filename"]; ok && fn != "" {
		return filenameRegex.ReplaceAllString(fn, "_")
	}
	return ""
}

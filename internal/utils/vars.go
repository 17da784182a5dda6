package utils

import (
	"errors"
	"regexp"
)

const (
	MiB = 1024 * 1024

	PartBufferSize = 8 * 1024
	ToolUserAgent  = "partdl/1.0"
	MergeSuffix    = ".partdl-merge"

	maxFileNameLen = 205
)

var (
	ErrMetadata         = errors.New("resource metadata unavailable")
	ErrContentType      = errors.New("resource is not downloadable content")
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrShortBody        = errors.New("response body ended early")
	ErrRangeNotHonored  = errors.New("server ignored the range request")
	ErrRetriesExhausted = errors.New("retry budget exhausted")
	ErrMerge            = errors.New("part merge failed")
	ErrUnsupportedURL   = errors.New("unsupported URL scheme")
)

var ChunkIDRegex = regexp.MustCompile(`\.part(\d+)$`)

// Local-only User-Agent list
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36 Edg/132.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
	"curl/7.88.1",
	"Wget/1.21.4",
}

package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	partdlhttp "github.com/tanq16/partdl/internal/downloaders/http"
	"github.com/tanq16/partdl/internal/downloaders/s3"
	"github.com/tanq16/partdl/internal/utils"
)

// sourceRegistry builds the Source for a task from its URL scheme. Clients
// are shared by every task of a run.
type sourceRegistry struct {
	ctx        context.Context
	httpClient *utils.HTTPClient
	s3Profile  string

	s3Once   sync.Once
	s3Client *awss3.Client
	s3Err    error
}

func newSourceRegistry(ctx context.Context, opts Options) *sourceRegistry {
	cfg := opts.HTTPClient
	cfg.HighThreadMode = opts.MaxConcurrency > 5
	return &sourceRegistry{
		ctx:        ctx,
		httpClient: utils.NewHTTPClient(cfg),
		s3Profile:  opts.S3Profile,
	}
}

func (r *sourceRegistry) resolve(task utils.DownloadTask) (utils.Source, error) {
	parsedURL, err := url.Parse(task.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch parsedURL.Scheme {
	case "http", "https":
		return partdlhttp.NewSource(task.URL, r.httpClient)
	case "s3":
		client, err := r.s3()
		if err != nil {
			return nil, err
		}
		return s3.NewSource(task.URL, client)
	default:
		return nil, fmt.Errorf("%w: %q", utils.ErrUnsupportedURL, parsedURL.Scheme)
	}
}

func (r *sourceRegistry) s3() (*awss3.Client, error) {
	r.s3Once.Do(func() {
		r.s3Client, r.s3Err = s3.NewClient(r.ctx, r.s3Profile)
	})
	return r.s3Client, r.s3Err
}

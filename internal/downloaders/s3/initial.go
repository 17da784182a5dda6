package s3

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/tanq16/partdl/internal/utils"
)

type objectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Source reads one object with HeadObject and ranged GetObject calls.
type Source struct {
	client objectAPI
	bucket string
	key    string
}

func NewSource(link string, client objectAPI) (*Source, error) {
	bucket, key, err := parseS3URL(link)
	if err != nil {
		return nil, err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("s3://%s/%s is a prefix, not an object", bucket, key)
	}
	return &Source{client: client, bucket: bucket, key: key}, nil
}

func (s *Source) Probe(ctx context.Context) (utils.ResourceMetadata, error) {
	var meta utils.ResourceMetadata
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return meta, fmt.Errorf("error getting S3 object info: %w", err)
	}
	meta.TotalSize = aws.ToInt64(head.ContentLength)
	meta.ContentType = aws.ToString(head.ContentType)
	meta.SupportsPartialContent = true
	meta.FileName = path.Base(s.key)
	log.Debug().Str("op", "s3/initial").Msgf("Object s3://%s/%s has size %d", s.bucket, s.key, meta.TotalSize)
	return meta, nil
}

func parseS3URL(url string) (string, string, error) {
	if !strings.HasPrefix(url, "s3://") {
		return "", "", fmt.Errorf("%w: %s", utils.ErrUnsupportedURL, url)
	}
	url = strings.TrimPrefix(url, "s3://")
	parts := strings.SplitN(url, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 URL format")
	}
	bucket := parts[0]
	key := ""
	if len(parts) > 1 {
		key = parts[1]
	}
	return bucket, key, nil
}

// IsPrefix reports whether link names a folder-like prefix rather than an object.
func IsPrefix(link string) bool {
	_, key, err := parseS3URL(link)
	return err == nil && (key == "" || strings.HasSuffix(key, "/"))
}

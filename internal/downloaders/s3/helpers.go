package s3

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// NewClient loads the shared AWS configuration for profile ("" for the default chain).
func NewClient(ctx context.Context, profile string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithSharedConfigProfile(profile),
		config.WithRetryMode("adaptive"),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Object is one file found under a prefix, with the local path it maps to.
type Object struct {
	URL        string
	OutputPath string
}

// ListObjects expands a prefix URL into the objects below it, placing each
// under outputDir by its key relative to the prefix.
func ListObjects(ctx context.Context, client s3.ListObjectsV2APIClient, link, outputDir string) ([]Object, error) {
	bucket, prefix, err := parseS3URL(link)
	if err != nil {
		return nil, err
	}
	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || obj.Size == nil {
				continue
			}
			// Skip directories (0-byte objects ending with /)
			if *obj.Size == 0 && strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			relPath := strings.TrimPrefix(strings.TrimPrefix(*obj.Key, prefix), "/")
			objects = append(objects, Object{
				URL:        fmt.Sprintf("s3://%s/%s", bucket, *obj.Key),
				OutputPath: filepath.Join(outputDir, filepath.FromSlash(relPath)),
			})
		}
	}
	log.Debug().Str("op", "s3/list").Msgf("Found %d objects under s3://%s/%s", len(objects), bucket, prefix)
	if len(objects) == 0 {
		return nil, fmt.Errorf("no objects found in s3://%s/%s", bucket, prefix)
	}
	return objects, nil
}

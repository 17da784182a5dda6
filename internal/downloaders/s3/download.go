package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tanq16/partdl/internal/utils"
)

func (s *Source) OpenRange(ctx context.Context, start, end int64) (*utils.RangeBody, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		return nil, fmt.Errorf("error getting object: %w", err)
	}
	return &utils.RangeBody{Body: result.Body, Partial: result.ContentRange != nil}, nil
}

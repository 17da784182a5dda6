package utils

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Source is a remote resource that can describe itself and serve byte ranges.
type Source interface {
	Probe(ctx context.Context) (ResourceMetadata, error)
	OpenRange(ctx context.Context, start, end int64) (*RangeBody, error)
}

// RangeBody is the body of a range request. Partial is false when the server
// ignored the range and is sending the whole resource from byte 0.
type RangeBody struct {
	Body    io.ReadCloser
	Partial bool
}

type DownloadTask struct {
	ID         string
	URL        string
	OutputPath string
	// UseServerName replaces the base of OutputPath with the file name the
	// server reports, when it reports one.
	UseServerName bool
}

func NewTask(url, outputPath string) DownloadTask {
	return DownloadTask{
		ID:         uuid.New().String(),
		URL:        url,
		OutputPath: outputPath,
	}
}

type ResourceMetadata struct {
	TotalSize              int64
	ContentType            string
	SupportsPartialContent bool
	FileName               string
}

// ByteRange is an inclusive byte interval of the remote resource.
type ByteRange struct {
	Index int
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

type TaskStatus int

const (
	StatusFailed TaskStatus = iota
	StatusCompleted
	StatusSkipped
)

func (s TaskStatus) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

type TaskResult struct {
	Task    DownloadTask
	Status  TaskStatus
	Err     error
	Bytes   int64
	Parts   int
	Elapsed time.Duration
}

type DownloadEntry struct {
	OutputPath string `yaml:"op,omitempty"`
	URL        string `yaml:"link"`
}

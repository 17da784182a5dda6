package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog/log"

	"github.com/tanq16/partdl/internal/utils"
)

// PartError reports which part of a task failed.
type PartError struct {
	Index int
	Err   error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("part %d: %v", e.Index, e.Err)
}

func (e *PartError) Unwrap() error {
	return e.Err
}

// Coordinator downloads single files: it probes the source, plans ranges,
// runs one PartWorker per range on the shared Pool and merges the parts.
type Coordinator struct {
	FS      billy.Filesystem
	Pool    *Pool
	Resolve func(task utils.DownloadTask) (utils.Source, error)

	Backoff     func(downloaded int64) time.Duration
	MaxRetries  int
	IdleTimeout time.Duration

	// Plan overrides PlanRanges for sources that support partial content.
	Plan func(total int64) []utils.ByteRange
	// OnProgress receives every value published by a task's Progress.
	OnProgress func(task utils.DownloadTask, completed, total int64)
}

func (c *Coordinator) Run(ctx context.Context, task utils.DownloadTask) utils.TaskResult {
	started := time.Now()
	result := utils.TaskResult{Task: task}
	err := c.run(ctx, &result)
	result.Elapsed = time.Since(started)
	if err != nil {
		result.Status = utils.StatusFailed
		result.Err = err
		log.Error().Str("op", "engine/coordinator").Err(err).Str("url", task.URL).Msg("Download failed")
		return result
	}
	log.Info().Str("op", "engine/coordinator").Str("file", result.Task.OutputPath).Str("status", result.Status.String()).
		Str("size", utils.FormatBytes(uint64(result.Bytes))).Msgf("Download finished in %s", result.Elapsed.Round(time.Millisecond))
	return result
}

func (c *Coordinator) run(ctx context.Context, result *utils.TaskResult) error {
	source, err := c.Resolve(result.Task)
	if err != nil {
		return err
	}
	meta, err := probe(ctx, source)
	if err != nil {
		return err
	}
	if result.Task.UseServerName && meta.FileName != "" {
		result.Task.OutputPath = filepath.Join(filepath.Dir(result.Task.OutputPath), utils.SanitizeFileName(filepath.Base(meta.FileName)))
	}
	task := result.Task
	total := meta.TotalSize

	existing, err := fileSize(c.FS, task.OutputPath)
	if err != nil {
		return fmt.Errorf("error checking destination: %w", err)
	}
	if existing == total {
		log.Info().Str("op", "engine/coordinator").Str("file", task.OutputPath).Msg("File already downloaded, skipping")
		c.publish(task, total, total)
		result.Status = utils.StatusSkipped
		result.Bytes = total
		return nil
	}

	ranges := c.plan(meta)
	result.Parts = len(ranges)
	initial, err := c.existingBytes(task.OutputPath, ranges)
	if err != nil {
		return err
	}
	log.Debug().Str("op", "engine/coordinator").Str("file", task.OutputPath).Int64("size", total).
		Int("parts", len(ranges)).Int64("resumed", initial).Msg("Starting segmented download")
	progress := NewProgress(filepath.Base(task.OutputPath), total, initial, func(completed, total int64) {
		c.publish(task, completed, total)
	})

	if err := c.downloadParts(ctx, source, task, total, ranges, progress); err != nil {
		return err
	}
	written, err := MergeParts(c.FS, task.OutputPath, ranges)
	if err != nil {
		return err
	}
	result.Status = utils.StatusCompleted
	result.Bytes = written
	return nil
}

func probe(ctx context.Context, source utils.Source) (utils.ResourceMetadata, error) {
	meta, err := source.Probe(ctx)
	if err != nil {
		if errors.Is(err, utils.ErrMetadata) || errors.Is(err, context.Canceled) {
			return meta, err
		}
		return meta, fmt.Errorf("%w: %w", utils.ErrMetadata, err)
	}
	if meta.TotalSize <= 0 {
		return meta, fmt.Errorf("%w: size not reported", utils.ErrMetadata)
	}
	if !downloadableType(meta.ContentType) {
		return meta, fmt.Errorf("%w: %s", utils.ErrContentType, meta.ContentType)
	}
	return meta, nil
}

// downloadableType rejects content types that indicate an error or landing
// page: any HTML flavour and JSON, including +json structured suffixes.
func downloadableType(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	switch {
	case strings.Contains(mediaType, "html"):
		return false
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return false
	}
	return true
}

func (c *Coordinator) plan(meta utils.ResourceMetadata) []utils.ByteRange {
	if !meta.SupportsPartialContent {
		return SingleRange(meta.TotalSize)
	}
	if c.Plan != nil {
		return c.Plan(meta.TotalSize)
	}
	return PlanRanges(meta.TotalSize)
}

// existingBytes sums the part files already on disk the way PartWorker
// counts them on resume, ignoring oversized leftovers.
func (c *Coordinator) existingBytes(outputPath string, ranges []utils.ByteRange) (int64, error) {
	var initial int64
	for _, r := range ranges {
		size, err := fileSize(c.FS, utils.PartPath(outputPath, r.Index))
		if err != nil {
			return 0, fmt.Errorf("error reading part %d: %w", r.Index, err)
		}
		if size <= r.Length() {
			initial += size
		}
	}
	return initial, nil
}

func (c *Coordinator) downloadParts(ctx context.Context, source utils.Source, task utils.DownloadTask, total int64, ranges []utils.ByteRange, progress *Progress) error {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		failOnce sync.Once
		firstErr error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}
	for _, r := range ranges {
		worker := &PartWorker{
			Source:      source,
			FS:          c.FS,
			Path:        utils.PartPath(task.OutputPath, r.Index),
			Total:       total,
			Progress:    progress,
			Backoff:     c.Backoff,
			MaxRetries:  c.MaxRetries,
			IdleTimeout: c.IdleTimeout,
		}
		wg.Add(1)
		submitted := c.Pool.Submit(func() {
			defer wg.Done()
			if err := worker.Run(taskCtx, r); err != nil {
				fail(&PartError{Index: r.Index, Err: err})
			}
		})
		if !submitted {
			wg.Done()
			fail(errors.New("worker pool is stopped"))
			break
		}
	}
	wg.Wait()
	return firstErr
}

func (c *Coordinator) publish(task utils.DownloadTask, completed, total int64) {
	if c.OnProgress != nil {
		c.OnProgress(task, completed, total)
	}
}

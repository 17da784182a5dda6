package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tanq16/partdl/internal/downloaders/s3"
	"github.com/tanq16/partdl/internal/engine"
	"github.com/tanq16/partdl/internal/output"
	"github.com/tanq16/partdl/internal/utils"
)

type Options struct {
	// MaxConcurrency bounds part downloads across all files and the number
	// of files in flight.
	MaxConcurrency int
	HTTPClient     utils.HTTPClientConfig
	S3Profile      string
	MaxRetries     int
	IdleTimeout    time.Duration
	Backoff        func(downloaded int64) time.Duration
	FS             billy.Filesystem
	Output         *output.Manager
}

func DefaultConcurrency() int {
	return min(32, 2*runtime.NumCPU())
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultConcurrency()
	}
	if o.FS == nil {
		o.FS = utils.LocalFS()
	}
	if o.Output == nil {
		o.Output = output.NewManager(os.Stdout)
	}
	return o
}

// Run downloads every task and returns one result per task in input order.
// S3 prefix URLs expand into one task per object. A failed task never stops
// the others. Without opts.FS, output paths are resolved against the working
// directory and written to the host filesystem.
func Run(ctx context.Context, tasks []utils.DownloadTask, opts Options) []utils.TaskResult {
	if opts.FS == nil {
		tasks = absoluteOutputs(tasks)
	}
	opts = opts.withDefaults()
	registry := newSourceRegistry(ctx, opts)
	tasks, expandFailures := expandPrefixes(ctx, registry, tasks)
	log.Info().Str("op", "scheduler/run").Int("totalFiles", len(tasks)).Int("workers", opts.MaxConcurrency).Msg("Initiating download")

	outputMgr := opts.Output
	outputMgr.StartDisplay()
	defer outputMgr.StopDisplay()
	pool := engine.NewPool(opts.MaxConcurrency)
	defer pool.StopWait()

	ids := make(map[string]int, len(tasks))
	for _, task := range tasks {
		ids[task.ID] = outputMgr.Register(filepath.Base(task.OutputPath))
	}
	coordinator := &engine.Coordinator{
		FS:          opts.FS,
		Pool:        pool,
		Resolve:     registry.resolve,
		Backoff:     opts.Backoff,
		MaxRetries:  opts.MaxRetries,
		IdleTimeout: opts.IdleTimeout,
		OnProgress: func(task utils.DownloadTask, completed, total int64) {
			outputMgr.SetProgress(ids[task.ID], completed, total)
		},
	}

	results := make([]utils.TaskResult, len(tasks))
	var g errgroup.Group
	g.SetLimit(opts.MaxConcurrency)
	for i, task := range tasks {
		if err, failed := expandFailures[task.ID]; failed {
			results[i] = utils.TaskResult{Task: task, Status: utils.StatusFailed, Err: err}
			report(outputMgr, ids[task.ID], results[i])
			continue
		}
		g.Go(func() error {
			results[i] = coordinator.Run(ctx, task)
			report(outputMgr, ids[task.ID], results[i])
			return nil
		})
	}
	g.Wait()
	return results
}

func absoluteOutputs(tasks []utils.DownloadTask) []utils.DownloadTask {
	resolved := make([]utils.DownloadTask, len(tasks))
	for i, task := range tasks {
		task.OutputPath = utils.AbsPath(task.OutputPath)
		resolved[i] = task
	}
	return resolved
}

func report(outputMgr *output.Manager, id int, result utils.TaskResult) {
	name := filepath.Base(result.Task.OutputPath)
	outputMgr.SetLabel(id, name)
	switch result.Status {
	case utils.StatusCompleted:
		outputMgr.Complete(id, fmt.Sprintf("Completed %s (%s in %d parts)", name, utils.FormatBytes(uint64(result.Bytes)), result.Parts))
	case utils.StatusSkipped:
		outputMgr.Skip(id, fmt.Sprintf("Already downloaded %s", name))
	default:
		outputMgr.ReportError(id, result.Err)
	}
}

// expandPrefixes replaces each S3 prefix task with one task per object below
// it. A prefix that cannot be listed stays in the list and is reported failed.
func expandPrefixes(ctx context.Context, registry *sourceRegistry, tasks []utils.DownloadTask) ([]utils.DownloadTask, map[string]error) {
	failures := make(map[string]error)
	var expanded []utils.DownloadTask
	for _, task := range tasks {
		if !strings.HasPrefix(task.URL, "s3://") || !s3.IsPrefix(task.URL) {
			expanded = append(expanded, task)
			continue
		}
		client, err := registry.s3()
		if err != nil {
			failures[task.ID] = err
			expanded = append(expanded, task)
			continue
		}
		objects, err := s3.ListObjects(ctx, client, task.URL, task.OutputPath)
		if err != nil {
			failures[task.ID] = err
			expanded = append(expanded, task)
			continue
		}
		for _, obj := range objects {
			expanded = append(expanded, utils.NewTask(obj.URL, obj.OutputPath))
		}
	}
	return expanded, failures
}

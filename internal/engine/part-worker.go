package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"

	"github.com/tanq16/partdl/internal/utils"
)

const maxBackoff = 64 * time.Second

// DefaultBackoff grows with the bytes a part has banked: 1s with nothing on
// disk, doubling per megabyte up to 64s.
func DefaultBackoff(downloaded int64) time.Duration {
	exp := min(max(downloaded, 0)/1_000_000, 6)
	return min(maxBackoff, time.Duration(int64(1)<<exp)*time.Second)
}

// PartWorker downloads one byte range into its part file, resuming from the
// bytes already on disk.
type PartWorker struct {
	Source   utils.Source
	FS       billy.Filesystem
	Path     string
	Total    int64
	Progress *Progress

	// Backoff maps the bytes already downloaded to the wait before a retry.
	Backoff func(downloaded int64) time.Duration
	// MaxRetries caps consecutive attempts that bank no bytes; 0 retries forever.
	MaxRetries int
	// IdleTimeout aborts an attempt whose body stalls for this long.
	IdleTimeout time.Duration
}

func (w *PartWorker) Run(ctx context.Context, rng utils.ByteRange) error {
	log := utils.GetLogger("engine/part-worker").With().Str("file", filepath.Base(w.Path)).Int("part", rng.Index).Logger()
	if err := ctx.Err(); err != nil {
		return err
	}
	length := rng.Length()
	downloaded, err := w.resumeOffset(log, length)
	if err != nil {
		return err
	}
	if downloaded > 0 {
		log.Debug().Int64("size", downloaded).Int64("total", length).Msg("Resuming incomplete part")
	}
	counted := downloaded
	failures := 0
	for downloaded < length {
		next, retry, err := w.attempt(ctx, log, rng, downloaded, &counted)
		if next > downloaded {
			failures = 0
		}
		downloaded = next
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !retry {
			return err
		}
		failures++
		if w.MaxRetries > 0 && failures > w.MaxRetries {
			return fmt.Errorf("%w after %d attempts: %w", utils.ErrRetriesExhausted, failures, err)
		}
		wait := w.backoff(downloaded)
		log.Warn().Err(err).Int("attempt", failures).Msgf("Part transfer failed, retrying in %s", wait)
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	log.Debug().Int64("size", length).Msg("Part download completed")
	return nil
}

// resumeOffset returns the usable length of the part file. A file longer than
// the range cannot belong to this plan and is discarded.
func (w *PartWorker) resumeOffset(log zerolog.Logger, length int64) (int64, error) {
	size, err := fileSize(w.FS, w.Path)
	if err != nil {
		return 0, fmt.Errorf("error reading part file: %w", err)
	}
	if size > length {
		log.Warn().Int64("size", size).Int64("expected", length).Msg("Part file larger than its range, discarding")
		if err := w.FS.Remove(w.Path); err != nil {
			return 0, fmt.Errorf("error removing oversized part file: %w", err)
		}
		return 0, nil
	}
	return size, nil
}

// attempt performs one range request and appends what it receives. It returns
// the new on-disk length and whether a failure is worth retrying.
func (w *PartWorker) attempt(ctx context.Context, log zerolog.Logger, rng utils.ByteRange, downloaded int64, counted *int64) (int64, bool, error) {
	length := rng.Length()
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := rng.Start + downloaded
	log.Debug().Str("range", fmt.Sprintf("bytes=%d-%d", start, rng.End)).Msg("Sending range request")
	body, err := w.Source.OpenRange(reqCtx, start, rng.End)
	if err != nil {
		return downloaded, true, err
	}
	defer body.Body.Close()

	flag := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if !body.Partial {
		if rng.Start != 0 || rng.End != w.Total-1 {
			return downloaded, false, fmt.Errorf("%w: part %d (bytes %d-%d)", utils.ErrRangeNotHonored, rng.Index, start, rng.End)
		}
		if downloaded > 0 {
			log.Warn().Int64("discarded", downloaded).Msg("Server sent the full resource, restarting part from zero")
		}
		flag |= os.O_TRUNC
		downloaded = 0
	}
	f, err := w.FS.OpenFile(w.Path, flag, 0644)
	if err != nil {
		return downloaded, false, fmt.Errorf("error opening part file: %w", err)
	}
	defer f.Close()

	var idle *time.Timer
	var stalled atomic.Bool
	if w.IdleTimeout > 0 {
		idle = time.AfterFunc(w.IdleTimeout, func() {
			stalled.Store(true)
			cancel()
		})
		defer idle.Stop()
	}

	buffer := make([]byte, utils.PartBufferSize)
	for downloaded < length {
		n, readErr := body.Body.Read(buffer)
		if idle != nil {
			idle.Reset(w.IdleTimeout)
		}
		if n > 0 {
			n = int(min(int64(n), length-downloaded))
			if _, err := f.Write(buffer[:n]); err != nil {
				return downloaded, false, fmt.Errorf("error writing part file: %w", err)
			}
			downloaded += int64(n)
			if downloaded > *counted && w.Progress != nil {
				w.Progress.Advance(downloaded - *counted)
				*counted = downloaded
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			if stalled.Load() && ctx.Err() == nil {
				return downloaded, true, fmt.Errorf("no data received for %s: %w", w.IdleTimeout, readErr)
			}
			return downloaded, true, readErr
		}
	}
	if err := f.Close(); err != nil {
		return downloaded, false, fmt.Errorf("error closing part file: %w", err)
	}
	if downloaded < length {
		return downloaded, true, fmt.Errorf("%w: have %d of %d bytes", utils.ErrShortBody, downloaded, length)
	}
	return downloaded, false, nil
}

func (w *PartWorker) backoff(downloaded int64) time.Duration {
	if w.Backoff != nil {
		return w.Backoff(downloaded)
	}
	return DefaultBackoff(downloaded)
}

func fileSize(fsys billy.Filesystem, path string) (int64, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package fetch downloads and extracts audio for validated URLs with a
// bounded fixed-delay retry per item.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"multiscribe/internal/logger"
	"multiscribe/internal/media"
	"multiscribe/internal/types"
)

// errEmptyFile marks a download that reported success but produced zero
// bytes. Retried like any other transient failure, never accepted.
var errEmptyFile = errors.New("downloaded file is empty")

// Downloader is the downloading side of the media-extraction backend.
type Downloader interface {
	Download(ctx context.Context, url, dest string, sink media.ProgressSink) error
}

// Stage fetches items sequentially. Delay between attempts is fixed, not
// exponential.
type Stage struct {
	dl      Downloader
	sink    media.ProgressSink
	workDir string
	budget  int
	delay   time.Duration
	log     *logger.Logger
}

func New(dl Downloader, sink media.ProgressSink, workDir string, budget int, delay time.Duration, log *logger.Logger) *Stage {
	if budget < 1 {
		budget = 1
	}
	return &Stage{
		dl:      dl,
		sink:    sink,
		workDir: workDir,
		budget:  budget,
		delay:   delay,
		log:     log.WithComponent("fetch"),
	}
}

// Run fetches every URL, returning all items (ready and failed) plus the
// recorded per-item failures. A failed item never blocks the rest.
func (s *Stage) Run(ctx context.Context, urls []string) ([]types.FetchItem, []types.Failure) {
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		s.log.WithError(err).Error("cannot create work directory")
		failures := make([]types.Failure, 0, len(urls))
		for _, url := range urls {
			failures = append(failures, types.Failure{
				Kind:      types.FailFetch,
				SourceURL: url,
				Reason:    fmt.Sprintf("work directory: %v", err),
			})
		}
		return nil, failures
	}

	items := make([]types.FetchItem, 0, len(urls))
	var failures []types.Failure
	for i, url := range urls {
		item := types.FetchItem{
			SourceURL:      url,
			Index:          i,
			LocalAudioPath: filepath.Join(s.workDir, fmt.Sprintf("audio_%d.mp3", i+1)),
			Status:         types.FetchPending,
		}
		log := s.log.WithField("url", url).WithField("item", fmt.Sprintf("%d/%d", i+1, len(urls)))

		item.Status = types.FetchDownloading
		attempts, err := s.fetchOne(ctx, url, item.LocalAudioPath)
		item.Attempts = attempts
		if err != nil {
			item.Status = types.FetchFailed
			log.WithError(err).WithField("attempts", attempts).Error("giving up on item")
			failures = append(failures, types.Failure{
				Kind:      types.FailFetch,
				SourceURL: url,
				Reason:    err.Error(),
			})
		} else {
			item.Status = types.FetchReady
			log.WithField("attempts", attempts).Info("audio ready")
		}
		items = append(items, item)
	}
	return items, failures
}

// fetchOne downloads a single item, retrying up to the attempt budget with
// a fixed sleep in between, and normalizes the result on disk.
func (s *Stage) fetchOne(ctx context.Context, url, dest string) (int, error) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts > 1 {
			s.log.WithField("attempt", attempts).Info("retrying download")
		}
		if err := s.dl.Download(ctx, url, dest, s.sink); err != nil {
			return err
		}
		return normalize(dest)
	}
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.delay), uint64(s.budget-1))
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return attempts, fmt.Errorf("after %d attempts: %w", attempts, err)
	}
	return attempts, nil
}

// normalize fixes the backend's habit of appending the audio format to the
// requested filename, then verifies the result exists and is non-empty.
func normalize(dest string) error {
	if _, err := os.Stat(dest + ".mp3"); err == nil {
		if err := os.Rename(dest+".mp3", dest); err != nil {
			return fmt.Errorf("rename downloaded file: %w", err)
		}
	}
	fi, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("downloaded file missing: %w", err)
	}
	if fi.Size() == 0 {
		os.Remove(dest)
		return errEmptyFile
	}
	return nil
}

// Package aggregate merges per-item transcripts into the combined artifact,
// persists the processed-batch fingerprint, and cleans up scratch audio.
package aggregate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"multiscribe/internal/logger"
	"multiscribe/internal/types"
)

// TitleSource resolves a human-readable title for per-item artifact naming.
type TitleSource interface {
	Title(ctx context.Context, url string) (string, error)
}

// CommitStore persists the processed-batch record after a full aggregation.
type CommitStore interface {
	Commit(fingerprint string, urls []string) error
}

type Aggregator struct {
	outputFile string
	reportFile string // "" disables the xlsx report
	perItem    bool
	keepAudio  bool
	titles     TitleSource
	store      CommitStore
	log        *logger.Logger
}

func New(outputFile, reportFile string, perItem, keepAudio bool, titles TitleSource, store CommitStore, log *logger.Logger) *Aggregator {
	return &Aggregator{
		outputFile: outputFile,
		reportFile: reportFile,
		perItem:    perItem,
		keepAudio:  keepAudio,
		titles:     titles,
		store:      store,
		log:        log.WithComponent("aggregate"),
	}
}

// Run writes all output artifacts, sums timings into outcome, commits the
// fingerprint, and removes intermediate audio. Only the combined artifact
// is load-bearing: its write failure aborts aggregation and skips the
// commit, everything else degrades to a logged warning.
func (a *Aggregator) Run(ctx context.Context, transcripts []types.TranscriptItem, fetched []types.FetchItem, fingerprint string, urls []string, outcome *types.BatchOutcome) error {
	// Combined artifact concatenates in source-list order regardless of
	// the order items finished in.
	sorted := make([]types.TranscriptItem, len(transcripts))
	copy(sorted, transcripts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	texts := make([]string, 0, len(sorted))
	for _, item := range sorted {
		texts = append(texts, item.Text)
		outcome.TotalAudioSeconds += item.AudioSeconds
		outcome.TotalTranscribeSecs += item.TranscriptionSeconds
	}
	if err := os.WriteFile(a.outputFile, []byte(strings.Join(texts, "\n\n")), 0o644); err != nil {
		return fmt.Errorf("write combined transcript: %w", err)
	}
	a.log.WithField("path", a.outputFile).Info("combined transcript written")

	if a.perItem {
		a.writePerItem(ctx, sorted)
	}

	if a.reportFile != "" {
		if err := a.writeReport(sorted, *outcome); err != nil {
			a.log.WithError(err).Warn("batch report not written")
		}
	}

	if err := a.store.Commit(fingerprint, urls); err != nil {
		// Completed work stands; the next run simply redoes the batch.
		a.log.WithError(err).Warn("cannot persist processed-batch record")
	}

	a.cleanup(fetched)
	return nil
}

// writePerItem writes one transcript file per source, named from the item
// title when the backend can resolve one, each slug disambiguated within
// the batch.
func (a *Aggregator) writePerItem(ctx context.Context, items []types.TranscriptItem) {
	used := make(map[string]bool, len(items))
	dir := filepath.Dir(a.outputFile)
	for _, item := range items {
		name := ""
		if title, err := a.titles.Title(ctx, item.SourceURL); err == nil {
			name = Slug(title)
		} else {
			a.log.WithField("url", item.SourceURL).WithError(err).Warn("title lookup failed, using generic name")
		}
		if name == "" {
			name = fmt.Sprintf("transcript_%d", item.Index+1)
		}
		if used[name] {
			name = fmt.Sprintf("%s.%d", name, item.Index+1)
		}
		used[name] = true

		path := filepath.Join(dir, name+".txt")
		if err := os.WriteFile(path, []byte(item.Text), 0o644); err != nil {
			a.log.WithField("path", path).WithError(err).Warn("per-item transcript not written")
			continue
		}
		a.log.WithField("path", path).Info("per-item transcript written")
	}
}

// cleanup deletes intermediate audio, tolerating files that are already
// gone so a rerun after a crash stays quiet.
func (a *Aggregator) cleanup(fetched []types.FetchItem) {
	if a.keepAudio {
		return
	}
	for _, item := range fetched {
		if item.LocalAudioPath == "" {
			continue
		}
		err := os.Remove(item.LocalAudioPath)
		switch {
		case err == nil:
			a.log.WithField("path", item.LocalAudioPath).Debug("removed temporary audio")
		case os.IsNotExist(err):
			// already gone, nothing to do
		default:
			a.log.WithField("path", item.LocalAudioPath).WithError(err).Warn("cannot remove temporary audio")
		}
	}
}

// Package pipeline sequences one batch run: validate, fetch, transcribe,
// aggregate, with a cache short-circuit up front. Strictly forward; every
// run ends in a defined terminal state.
package pipeline

import (
	"context"

	"multiscribe/internal/cache"
	"multiscribe/internal/logger"
	"multiscribe/internal/types"
)

type validator interface {
	Run(ctx context.Context, urls []string) ([]string, []types.Failure)
}

type fetcher interface {
	Run(ctx context.Context, urls []string) ([]types.FetchItem, []types.Failure)
}

type transcriber interface {
	Run(ctx context.Context, items []types.FetchItem) ([]types.TranscriptItem, []types.Failure)
}

type aggregator interface {
	Run(ctx context.Context, transcripts []types.TranscriptItem, fetched []types.FetchItem, fingerprint string, urls []string, outcome *types.BatchOutcome) error
}

type cacheStore interface {
	ShouldSkip(fingerprint, artifactPath string) bool
}

// Coordinator owns the batch state machine. Stage collaborators are
// injected so the sequencing logic tests without touching the network or
// any external binary.
type Coordinator struct {
	validator    validator
	fetcher      fetcher
	transcriber  transcriber
	aggregator   aggregator
	cache        cacheStore
	artifactPath string
	log          *logger.Logger
}

func New(v validator, f fetcher, t transcriber, a aggregator, c cacheStore, artifactPath string, log *logger.Logger) *Coordinator {
	return &Coordinator{
		validator:    v,
		fetcher:      f,
		transcriber:  t,
		aggregator:   a,
		cache:        c,
		artifactPath: artifactPath,
		log:          log.WithComponent("pipeline"),
	}
}

// Run processes one batch to completion or accounted partial failure.
// Per-item failures accumulate in the outcome; an empty stage ends the run
// in the matching terminal state instead of propagating an error.
func (c *Coordinator) Run(ctx context.Context, urls []string) types.BatchOutcome {
	outcome := types.BatchOutcome{Requested: len(urls)}

	c.log.WithField("requested", len(urls)).Info("checking URLs")
	valid, rejected := c.validator.Run(ctx, urls)
	outcome.Failures = append(outcome.Failures, rejected...)
	outcome.Validated = len(valid)
	if len(valid) == 0 {
		c.log.Warn("no valid sources, nothing to do")
		outcome.State = types.DoneNoSources
		return outcome
	}

	fingerprint := cache.Fingerprint(valid)
	if c.cache.ShouldSkip(fingerprint, c.artifactPath) {
		c.log.WithField("artifact", c.artifactPath).Info("same URL set as previous run, existing transcription found")
		outcome.State = types.DoneCached
		return outcome
	}

	c.log.WithField("count", len(valid)).Info("downloading and extracting audio")
	items, fetchFails := c.fetcher.Run(ctx, valid)
	outcome.Failures = append(outcome.Failures, fetchFails...)
	ready := make([]types.FetchItem, 0, len(items))
	for _, item := range items {
		if item.Status == types.FetchReady {
			ready = append(ready, item)
		}
	}
	outcome.Fetched = len(ready)
	if len(ready) == 0 {
		c.log.Warn("no audio files were downloaded")
		outcome.State = types.DoneNoAudio
		return outcome
	}

	c.log.WithField("count", len(ready)).Info("transcribing audio files")
	transcripts, transcribeFails := c.transcriber.Run(ctx, ready)
	outcome.Failures = append(outcome.Failures, transcribeFails...)
	outcome.Transcribed = len(transcripts)
	if len(transcripts) == 0 {
		c.log.Warn("no transcriptions were generated")
		outcome.State = types.DoneNoTranscripts
		return outcome
	}

	c.log.Info("aggregating transcriptions")
	if err := c.aggregator.Run(ctx, transcripts, items, fingerprint, valid, &outcome); err != nil {
		c.log.WithError(err).Error("aggregation failed")
		outcome.State = types.DoneNoTranscripts
		return outcome
	}

	outcome.State = types.DoneSuccess
	return outcome
}

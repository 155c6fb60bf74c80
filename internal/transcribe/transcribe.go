// Package transcribe runs the speech-to-text engine over fetched audio and
// records per-item timing.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"time"

	"multiscribe/internal/logger"
	"multiscribe/internal/types"
)

// Engine converts one local audio file to text.
type Engine interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// DurationProber reports audio duration, independent of the engine, so the
// speed ratio can be computed later.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

type Stage struct {
	engine Engine
	prober DurationProber
	now    func() time.Time
	log    *logger.Logger
}

func New(engine Engine, prober DurationProber, log *logger.Logger) *Stage {
	return &Stage{engine: engine, prober: prober, now: time.Now, log: log.WithComponent("transcribe")}
}

// Run transcribes every ready item in order. A missing audio file fails
// fast without retry: it indicates an upstream bug, not transience. One
// item's failure does not abort the stage.
func (s *Stage) Run(ctx context.Context, items []types.FetchItem) ([]types.TranscriptItem, []types.Failure) {
	var transcripts []types.TranscriptItem
	var failures []types.Failure
	for n, item := range items {
		log := s.log.WithField("url", item.SourceURL).WithField("item", fmt.Sprintf("%d/%d", n+1, len(items)))

		if _, err := os.Stat(item.LocalAudioPath); err != nil {
			log.WithError(err).Error("audio file not found")
			failures = append(failures, types.Failure{
				Kind:      types.FailTranscribe,
				SourceURL: item.SourceURL,
				Reason:    fmt.Sprintf("audio file not found: %s", item.LocalAudioPath),
			})
			continue
		}

		log.Info("transcription in progress")
		start := s.now()
		text, err := s.engine.Transcribe(ctx, item.LocalAudioPath)
		elapsed := s.now().Sub(start).Seconds()
		if err != nil {
			log.WithError(err).Error("transcription failed")
			failures = append(failures, types.Failure{
				Kind:      types.FailTranscribe,
				SourceURL: item.SourceURL,
				Reason:    err.Error(),
			})
			continue
		}

		// Duration comes from the probe, not the engine. A discrepancy
		// between the two is expected; a probe failure only costs metrics.
		audioSecs, err := s.prober.Duration(ctx, item.LocalAudioPath)
		if err != nil {
			log.WithError(err).Warn("cannot probe audio duration")
			audioSecs = 0
		}

		log.WithField("transcription_sec", elapsed).Info("transcription complete")
		transcripts = append(transcripts, types.TranscriptItem{
			SourceURL:            item.SourceURL,
			Index:                item.Index,
			Text:                 text,
			TranscriptionSeconds: elapsed,
			AudioSeconds:         audioSecs,
		})
	}
	return transcripts, failures
}

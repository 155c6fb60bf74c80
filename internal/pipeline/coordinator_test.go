package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"multiscribe/internal/aggregate"
	"multiscribe/internal/cache"
	"multiscribe/internal/fetch"
	"multiscribe/internal/logger"
	"multiscribe/internal/media"
	"multiscribe/internal/transcribe"
	"multiscribe/internal/types"
	"multiscribe/internal/validate"
)

type fakeValidator struct {
	valid    []string
	rejected []types.Failure
}

func (f *fakeValidator) Run(ctx context.Context, urls []string) ([]string, []types.Failure) {
	return f.valid, f.rejected
}

type fakeFetcher struct {
	called   bool
	items    []types.FetchItem
	failures []types.Failure
}

func (f *fakeFetcher) Run(ctx context.Context, urls []string) ([]types.FetchItem, []types.Failure) {
	f.called = true
	return f.items, f.failures
}

type fakeTranscriber struct {
	called      bool
	transcripts []types.TranscriptItem
	failures    []types.Failure
}

func (f *fakeTranscriber) Run(ctx context.Context, items []types.FetchItem) ([]types.TranscriptItem, []types.Failure) {
	f.called = true
	return f.transcripts, f.failures
}

type fakeAggregator struct {
	called bool
	err    error
}

func (f *fakeAggregator) Run(ctx context.Context, transcripts []types.TranscriptItem, fetched []types.FetchItem, fingerprint string, urls []string, outcome *types.BatchOutcome) error {
	f.called = true
	return f.err
}

type fakeCache struct {
	skip bool
}

func (f *fakeCache) ShouldSkip(fingerprint, artifactPath string) bool { return f.skip }

func TestCacheHitShortCircuits(t *testing.T) {
	fetcher := &fakeFetcher{}
	transcriber := &fakeTranscriber{}
	c := New(
		&fakeValidator{valid: []string{"u1", "u2"}},
		fetcher,
		transcriber,
		&fakeAggregator{},
		&fakeCache{skip: true},
		"full_transcription.txt",
		logger.New(),
	)

	outcome := c.Run(context.Background(), []string{"u1", "u2"})
	if outcome.State != types.DoneCached {
		t.Fatalf("state = %q, want done_cached", outcome.State)
	}
	if fetcher.called || transcriber.called {
		t.Fatal("cache hit still invoked fetch or transcription")
	}
}

func TestNoValidSources(t *testing.T) {
	fetcher := &fakeFetcher{}
	c := New(
		&fakeValidator{rejected: []types.Failure{{Kind: types.FailValidation, SourceURL: "u1"}}},
		fetcher,
		&fakeTranscriber{},
		&fakeAggregator{},
		&fakeCache{},
		"out.txt",
		logger.New(),
	)

	outcome := c.Run(context.Background(), []string{"u1"})
	if outcome.State != types.DoneNoSources {
		t.Fatalf("state = %q, want done_no_sources", outcome.State)
	}
	if fetcher.called {
		t.Fatal("fetch ran with zero valid sources")
	}
	if len(outcome.Failures) != 1 {
		t.Fatalf("failures = %v, want the rejection reported", outcome.Failures)
	}
}

func TestNoFetchedAudio(t *testing.T) {
	transcriber := &fakeTranscriber{}
	c := New(
		&fakeValidator{valid: []string{"u1"}},
		&fakeFetcher{
			items:    []types.FetchItem{{SourceURL: "u1", Status: types.FetchFailed, Attempts: 3}},
			failures: []types.Failure{{Kind: types.FailFetch, SourceURL: "u1"}},
		},
		transcriber,
		&fakeAggregator{},
		&fakeCache{},
		"out.txt",
		logger.New(),
	)

	outcome := c.Run(context.Background(), []string{"u1"})
	if outcome.State != types.DoneNoAudio {
		t.Fatalf("state = %q, want done_no_audio", outcome.State)
	}
	if transcriber.called {
		t.Fatal("transcription ran with zero fetched items")
	}
}

func TestNoTranscripts(t *testing.T) {
	agg := &fakeAggregator{}
	c := New(
		&fakeValidator{valid: []string{"u1"}},
		&fakeFetcher{items: []types.FetchItem{{SourceURL: "u1", Status: types.FetchReady}}},
		&fakeTranscriber{failures: []types.Failure{{Kind: types.FailTranscribe, SourceURL: "u1"}}},
		agg,
		&fakeCache{},
		"out.txt",
		logger.New(),
	)

	outcome := c.Run(context.Background(), []string{"u1"})
	if outcome.State != types.DoneNoTranscripts {
		t.Fatalf("state = %q, want done_no_transcripts", outcome.State)
	}
	if agg.called {
		t.Fatal("aggregation ran with zero transcripts")
	}
}

func TestAggregationFailureIsTerminalNotFatal(t *testing.T) {
	c := New(
		&fakeValidator{valid: []string{"u1"}},
		&fakeFetcher{items: []types.FetchItem{{SourceURL: "u1", Status: types.FetchReady}}},
		&fakeTranscriber{transcripts: []types.TranscriptItem{{SourceURL: "u1", Text: "t"}}},
		&fakeAggregator{err: errors.New("disk full")},
		&fakeCache{},
		"out.txt",
		logger.New(),
	)

	outcome := c.Run(context.Background(), []string{"u1"})
	if outcome.State != types.DoneNoTranscripts {
		t.Fatalf("state = %q, want done_no_transcripts on aggregation failure", outcome.State)
	}
}

// --- end to end with the real stages and faked collaborators ---

type scriptedBackend struct{}

func (scriptedBackend) Resolve(ctx context.Context, url string) error {
	if url == "https://bad.example/unsupported" {
		return errors.New("unsupported URL")
	}
	return nil
}

type scriptedDownloader struct{}

func (scriptedDownloader) Download(ctx context.Context, url, dest string, sink media.ProgressSink) error {
	if url == "https://flaky.example/gone" {
		return errors.New("connection reset")
	}
	return os.WriteFile(dest, []byte("audio-bytes"), 0o644)
}

type staticEngine struct{}

func (staticEngine) Transcribe(ctx context.Context, path string) (string, error) {
	return "the transcript", nil
}

type staticProber struct{}

func (staticProber) Duration(ctx context.Context, path string) (float64, error) { return 20, nil }

type noTitles struct{}

func (noTitles) Title(ctx context.Context, url string) (string, error) {
	return "", errors.New("no metadata")
}

// Three URLs in: one fails validation, one exhausts fetch retries, one goes
// all the way through. The batch still succeeds with one transcript and two
// accounted failures.
func TestPartialFailureEndToEnd(t *testing.T) {
	dir := t.TempDir()
	log := logger.New()
	artifact := filepath.Join(dir, "full_transcription.txt")
	store := cache.NewStore(filepath.Join(dir, "processed_urls.json"), log)

	c := New(
		validate.New(scriptedBackend{}, log),
		fetch.New(scriptedDownloader{}, nil, filepath.Join(dir, "work"), 3, 0, log),
		transcribe.New(staticEngine{}, staticProber{}, log),
		aggregate.New(artifact, "", true, false, noTitles{}, store, log),
		store,
		artifact,
		log,
	)

	urls := []string{
		"https://bad.example/unsupported",
		"https://flaky.example/gone",
		"https://good.example/talk",
	}
	outcome := c.Run(context.Background(), urls)

	if outcome.State != types.DoneSuccess {
		t.Fatalf("state = %q, want done_success", outcome.State)
	}
	if outcome.Requested != 3 || outcome.Validated != 2 || outcome.Fetched != 1 || outcome.Transcribed != 1 {
		t.Fatalf("counters = %+v", outcome)
	}
	if len(outcome.Failures) != 2 {
		t.Fatalf("failures = %v, want two", outcome.Failures)
	}
	if !outcome.Partial() {
		t.Fatal("outcome not flagged partial")
	}

	data, err := os.ReadFile(artifact)
	if err != nil {
		t.Fatalf("combined artifact missing: %v", err)
	}
	if string(data) != "the transcript" {
		t.Fatalf("combined artifact = %q, want exactly one transcript", data)
	}

	// commit happened, so an identical rerun short-circuits
	rerun := c.Run(context.Background(), urls)
	if rerun.State != types.DoneCached {
		t.Fatalf("rerun state = %q, want done_cached", rerun.State)
	}

	// cache self-heal: same fingerprint but missing artifact reprocesses
	if err := os.Remove(artifact); err != nil {
		t.Fatal(err)
	}
	healed := c.Run(context.Background(), urls)
	if healed.State != types.DoneSuccess {
		t.Fatalf("healed state = %q, want done_success after reprocessing", healed.State)
	}
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("artifact not rebuilt: %v", err)
	}
}

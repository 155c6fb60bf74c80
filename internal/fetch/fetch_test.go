package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"multiscribe/internal/logger"
	"multiscribe/internal/media"
	"multiscribe/internal/types"
)

// fakeDownloader scripts per-call behavior keyed on attempt number.
type fakeDownloader struct {
	calls map[string]int
	fn    func(url, dest string, attempt int) error
}

func (f *fakeDownloader) Download(ctx context.Context, url, dest string, sink media.ProgressSink) error {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	return f.fn(url, dest, f.calls[url])
}

func newTestStage(t *testing.T, dl Downloader, budget int) *Stage {
	t.Helper()
	return New(dl, nil, t.TempDir(), budget, 0, logger.New())
}

func TestFetchSucceedsOnThirdAttempt(t *testing.T) {
	dl := &fakeDownloader{fn: func(url, dest string, attempt int) error {
		if attempt < 3 {
			return errors.New("network hiccup")
		}
		return os.WriteFile(dest, []byte("audio"), 0o644)
	}}
	s := newTestStage(t, dl, 3)

	items, failures := s.Run(context.Background(), []string{"u1"})
	if len(failures) != 0 {
		t.Fatalf("failures = %v, want none", failures)
	}
	if items[0].Status != types.FetchReady {
		t.Fatalf("status = %q, want ready", items[0].Status)
	}
	if items[0].Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", items[0].Attempts)
	}
}

func TestFetchExhaustsBudget(t *testing.T) {
	dl := &fakeDownloader{fn: func(url, dest string, attempt int) error {
		return errors.New("always down")
	}}
	s := newTestStage(t, dl, 3)

	items, failures := s.Run(context.Background(), []string{"u1"})
	if items[0].Status != types.FetchFailed {
		t.Fatalf("status = %q, want failed", items[0].Status)
	}
	if items[0].Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", items[0].Attempts)
	}
	if len(failures) != 1 || failures[0].Kind != types.FailFetch {
		t.Fatalf("failures = %v, want one fetch failure", failures)
	}
}

func TestFailedItemDoesNotBlockOthers(t *testing.T) {
	dl := &fakeDownloader{fn: func(url, dest string, attempt int) error {
		if url == "bad" {
			return errors.New("unresolvable")
		}
		return os.WriteFile(dest, []byte("audio"), 0o644)
	}}
	s := newTestStage(t, dl, 2)

	items, failures := s.Run(context.Background(), []string{"bad", "good"})
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Status != types.FetchFailed {
		t.Fatalf("bad item status = %q, want failed", items[0].Status)
	}
	if items[1].Status != types.FetchReady {
		t.Fatalf("good item status = %q, want ready", items[1].Status)
	}
	if len(failures) != 1 || failures[0].SourceURL != "bad" {
		t.Fatalf("failures = %v, want one for bad", failures)
	}
}

func TestEmptyFileIsRetriedAsFailure(t *testing.T) {
	dl := &fakeDownloader{fn: func(url, dest string, attempt int) error {
		return os.WriteFile(dest, nil, 0o644) // zero bytes, reported as success
	}}
	s := newTestStage(t, dl, 3)

	items, failures := s.Run(context.Background(), []string{"u1"})
	if items[0].Status != types.FetchFailed {
		t.Fatalf("status = %q, want failed for empty file", items[0].Status)
	}
	if items[0].Attempts != 3 {
		t.Fatalf("attempts = %d, want full budget on empty output", items[0].Attempts)
	}
	if len(failures) != 1 || !strings.Contains(failures[0].Reason, "empty") {
		t.Fatalf("failures = %v, want empty-file reason", failures)
	}
	if _, err := os.Stat(items[0].LocalAudioPath); !os.IsNotExist(err) {
		t.Fatal("empty file left on disk")
	}
}

func TestSuffixNormalization(t *testing.T) {
	dl := &fakeDownloader{fn: func(url, dest string, attempt int) error {
		// backend appends the audio format to the requested name
		return os.WriteFile(dest+".mp3", []byte("audio"), 0o644)
	}}
	s := newTestStage(t, dl, 1)

	items, failures := s.Run(context.Background(), []string{"u1"})
	if len(failures) != 0 {
		t.Fatalf("failures = %v, want none", failures)
	}
	if _, err := os.Stat(items[0].LocalAudioPath); err != nil {
		t.Fatalf("normalized file missing: %v", err)
	}
	if _, err := os.Stat(items[0].LocalAudioPath + ".mp3"); !os.IsNotExist(err) {
		t.Fatal("suffixed file still on disk after rename")
	}
}

func TestDestinationNaming(t *testing.T) {
	dl := &fakeDownloader{fn: func(url, dest string, attempt int) error {
		return os.WriteFile(dest, []byte("audio"), 0o644)
	}}
	s := newTestStage(t, dl, 1)

	items, _ := s.Run(context.Background(), []string{"u1", "u2"})
	if got := filepath.Base(items[0].LocalAudioPath); got != "audio_1.mp3" {
		t.Fatalf("first destination = %q, want audio_1.mp3", got)
	}
	if got := filepath.Base(items[1].LocalAudioPath); got != "audio_2.mp3" {
		t.Fatalf("second destination = %q, want audio_2.mp3", got)
	}
}

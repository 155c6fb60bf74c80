// Package media wraps the external collaborators of the pipeline: the
// yt-dlp style media-extraction backend and the ffprobe style duration
// probe. Both are invoked as external processes through an injected Runner.
package media

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"multiscribe/internal/logger"
)

// Download phases reported through the ProgressSink.
const (
	PhaseDownload = "download"
	PhaseExtract  = "extract"
)

// ProgressSink receives observational download progress. Implementations
// must not affect control flow; errors are impossible by design.
type ProgressSink interface {
	OnProgress(bytesSoFar, bytesTotal int64)
	OnPhaseComplete(phase string)
}

// progressTemplate makes yt-dlp emit machine-readable progress lines so the
// sink can report a byte count instead of scraping the human progress bar.
const progressTemplate = "download:%(progress.downloaded_bytes)s/%(progress.total_bytes,progress.total_bytes_estimate)s"

// Extractor resolves and downloads remote media via a yt-dlp compatible
// binary, configured to prefer best audio and extract to mp3.
type Extractor struct {
	bin    string
	runner Runner
	log    *logger.Logger
}

func NewExtractor(bin string, log *logger.Logger) *Extractor {
	return &Extractor{bin: bin, runner: NewRunner(), log: log.WithComponent("extractor")}
}

// NewExtractorWithRunner is the test constructor with an injected runner.
func NewExtractorWithRunner(bin string, runner Runner, log *logger.Logger) *Extractor {
	return &Extractor{bin: bin, runner: runner, log: log.WithComponent("extractor")}
}

// Resolve performs a dry-run resolution of url without downloading. Any
// backend failure means the URL is not fetchable.
func (e *Extractor) Resolve(ctx context.Context, url string) error {
	res, err := e.runner.Run(ctx, e.bin,
		"--simulate",
		"--quiet",
		"--no-warnings",
		url,
	)
	if err != nil {
		return fmt.Errorf("resolve failed: %s", failureDetail(res, err))
	}
	return nil
}

// Title returns the human-readable title of the media behind url, resolved
// without downloading. Used only for per-item artifact naming.
func (e *Extractor) Title(ctx context.Context, url string) (string, error) {
	res, err := e.runner.Run(ctx, e.bin,
		"--simulate",
		"--quiet",
		"--no-warnings",
		"--print", "%(title)s",
		url,
	)
	if err != nil {
		return "", fmt.Errorf("title lookup failed: %s", failureDetail(res, err))
	}
	title := strings.TrimSpace(res.Stdout)
	if title == "" {
		return "", fmt.Errorf("title lookup returned nothing")
	}
	return title, nil
}

// Download fetches the best available audio for url and extracts it to mp3
// at dest. Progress is streamed into sink; the backend is configured to
// fail loudly rather than silently skip unresolvable items.
func (e *Extractor) Download(ctx context.Context, url, dest string, sink ProgressSink) error {
	args := []string{
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--no-check-certificates",
		"--no-warnings",
		"--newline",
		"--progress-template", progressTemplate,
		"-o", dest,
		url,
	}

	var lastBytes int64
	downloadDone := false
	onLine := func(line string) {
		if sofar, total, ok := parseProgressLine(line); ok {
			if sofar < lastBytes {
				return // never report backwards
			}
			lastBytes = sofar
			if sink != nil {
				sink.OnProgress(sofar, total)
			}
			return
		}
		// First non-progress line after progress means the download phase
		// is over and postprocessing (audio extraction) has begun.
		if lastBytes > 0 && !downloadDone {
			downloadDone = true
			if sink != nil {
				sink.OnPhaseComplete(PhaseDownload)
			}
		}
	}

	res, err := e.runner.RunStream(ctx, onLine, e.bin, args...)
	if err != nil {
		return fmt.Errorf("download failed: %s", failureDetail(res, err))
	}
	if sink != nil {
		if !downloadDone {
			sink.OnPhaseComplete(PhaseDownload)
		}
		sink.OnPhaseComplete(PhaseExtract)
	}
	return nil
}

// parseProgressLine decodes one templated progress line,
// "download:<bytes>/<total>". Either field may be "NA" early in a download.
func parseProgressLine(line string) (sofar, total int64, ok bool) {
	rest, found := strings.CutPrefix(line, "download:")
	if !found {
		return 0, 0, false
	}
	left, right, found := strings.Cut(rest, "/")
	if !found {
		return 0, 0, false
	}
	sofar, err := strconv.ParseInt(strings.TrimSpace(left), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	total, err = strconv.ParseInt(strings.TrimSpace(right), 10, 64)
	if err != nil {
		total = 0 // unknown total is fine, byte count still flows
	}
	return sofar, total, true
}

// failureDetail condenses a failed command into the most useful line of
// stderr for the operator, falling back to the raw error.
func failureDetail(res CommandResult, err error) string {
	lines := strings.Split(strings.TrimSpace(res.Stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return err.Error()
}

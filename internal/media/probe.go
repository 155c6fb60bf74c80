package media

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Prober reports audio duration via an ffprobe compatible binary.
type Prober struct {
	bin    string
	runner Runner
}

func NewProber(bin string) *Prober {
	return &Prober{bin: bin, runner: NewRunner()}
}

// NewProberWithRunner is the test constructor with an injected runner.
func NewProberWithRunner(bin string, runner Runner) *Prober {
	return &Prober{bin: bin, runner: runner}
}

// Duration returns the audio duration of path in seconds, parsed from the
// probe's standard output.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	res, err := p.runner.Run(ctx, p.bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe failed: %s", failureDetail(res, err))
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("probe output %q is not a duration: %w", strings.TrimSpace(res.Stdout), err)
	}
	return seconds, nil
}

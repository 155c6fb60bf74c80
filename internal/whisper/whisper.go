// Package whisper wraps a Whisper-style speech-to-text CLI. The pipeline
// only depends on Transcribe and the one-per-run device query.
package whisper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"multiscribe/internal/logger"
	"multiscribe/internal/media"
)

// Tier selects the model size, smallest to largest capability/latency.
type Tier string

const (
	TierTiny   Tier = "tiny"
	TierBase   Tier = "base"
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"
)

// Tiers returns the fixed ordered tier set.
func Tiers() []Tier {
	return []Tier{TierTiny, TierBase, TierSmall, TierMedium, TierLarge}
}

// ParseTier validates a tier name from configuration or CLI input.
func ParseTier(s string) (Tier, error) {
	for _, t := range Tiers() {
		if string(t) == strings.ToLower(strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown model tier %q (valid: tiny, base, small, medium, large)", s)
}

// Devices the engine can run on.
const (
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

// Engine invokes the whisper CLI for one model tier.
type Engine struct {
	bin       string
	tier      Tier
	device    string
	runner    media.Runner
	mkdirTemp func(dir, pattern string) (string, error)
	log       *logger.Logger
}

func NewEngine(bin string, tier Tier, log *logger.Logger) *Engine {
	return &Engine{
		bin:       bin,
		tier:      tier,
		runner:    media.NewRunner(),
		mkdirTemp: os.MkdirTemp,
		log:       log.WithComponent("whisper"),
	}
}

// NewEngineWithRunner is the test constructor with injected dependencies.
func NewEngineWithRunner(bin string, tier Tier, runner media.Runner, log *logger.Logger) *Engine {
	return &Engine{bin: bin, tier: tier, runner: runner, mkdirTemp: os.MkdirTemp, log: log.WithComponent("whisper")}
}

// DetectDevice picks the fastest available compatible device. Queried once
// per run by the transcription stage and cached for the run's duration.
func (e *Engine) DetectDevice() string {
	if e.device != "" {
		return e.device
	}
	e.device = DeviceCPU
	if err := media.CheckTools("nvidia-smi"); err == nil {
		e.device = DeviceCUDA
	}
	e.log.WithField("device", e.device).Info("execution device selected")
	return e.device
}

// Transcribe runs the model over the audio file at path and returns the
// transcript text. The CLI writes a .txt next to its output dir; a scratch
// dir keeps that out of the artifact tree.
func (e *Engine) Transcribe(ctx context.Context, path string) (string, error) {
	outDir, err := e.mkdirTemp("", "multiscribe-whisper-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	res, err := e.runner.Run(ctx, e.bin,
		path,
		"--model", string(e.tier),
		"--device", e.DetectDevice(),
		"--output_format", "txt",
		"--output_dir", outDir,
	)
	if err != nil {
		return "", fmt.Errorf("whisper failed (exit=%d): %s", res.ExitCode, tail(res.Stderr))
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	textPath := filepath.Join(outDir, base+".txt")
	content, err := os.ReadFile(textPath)
	if err != nil {
		return "", fmt.Errorf("whisper completed but transcript file is missing: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return "no output"
}

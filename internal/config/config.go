// Package config resolves runtime settings from environment variables with
// sensible defaults. CLI flags may override individual fields after Load.
package config

import (
	"os"
	"strconv"
	"time"
)

const (
	DefaultStateFile     = "processed_urls.json"
	DefaultOutputFile    = "full_transcription.txt"
	DefaultReportFile    = "batch_report.xlsx"
	DefaultWorkDir       = "."
	DefaultAttemptBudget = 3
	DefaultRetryDelay    = 5 * time.Second
	DefaultModelTier     = "base"
)

// Settings holds everything the pipeline needs to run one batch.
type Settings struct {
	StateFile  string // persisted processed-batch record
	OutputFile string // combined transcript artifact
	ReportFile string // xlsx batch report ("" disables)
	WorkDir    string // scratch dir for intermediate audio

	AttemptBudget int           // fetch attempts per item
	RetryDelay    time.Duration // fixed sleep between fetch attempts

	ModelTier    string
	PerItemFiles bool // write one transcript file per source
	KeepAudio    bool // skip intermediate audio cleanup

	ExtractorBin string // yt-dlp compatible binary
	ProbeBin     string // ffprobe compatible binary
	WhisperBin   string // whisper CLI binary
}

// Load reads settings from the environment, falling back to defaults.
func Load() Settings {
	return Settings{
		StateFile:     envOr("STATE_FILE", DefaultStateFile),
		OutputFile:    envOr("TRANSCRIPT_FILE", DefaultOutputFile),
		ReportFile:    envOr("REPORT_FILE", DefaultReportFile),
		WorkDir:       envOr("WORK_DIR", DefaultWorkDir),
		AttemptBudget: envIntOr("FETCH_RETRIES", DefaultAttemptBudget),
		RetryDelay:    time.Duration(envIntOr("FETCH_RETRY_DELAY_SEC", int(DefaultRetryDelay/time.Second))) * time.Second,
		ModelTier:     envOr("WHISPER_MODEL", DefaultModelTier),
		PerItemFiles:  envOr("PER_ITEM_FILES", "true") == "true",
		ExtractorBin:  envOr("YTDLP_BIN", "yt-dlp"),
		ProbeBin:      envOr("FFPROBE_BIN", "ffprobe"),
		WhisperBin:    envOr("WHISPER_BIN", "whisper"),
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envIntOr(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

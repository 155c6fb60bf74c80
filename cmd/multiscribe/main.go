package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"multiscribe/internal/aggregate"
	"multiscribe/internal/cache"
	"multiscribe/internal/config"
	"multiscribe/internal/fetch"
	"multiscribe/internal/logger"
	"multiscribe/internal/media"
	"multiscribe/internal/pipeline"
	"multiscribe/internal/transcribe"
	"multiscribe/internal/types"
	"multiscribe/internal/validate"
	"multiscribe/internal/whisper"
)

// CLI flags
var (
	modelFlag     string
	outputFlag    string
	workDirFlag   string
	stateFlag     string
	reportFlag    string
	keepAudioFlag bool
	noPerItemFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "multiscribe [urls-file]",
	Short: "Batch-transcribe remote media URLs into text",
	Long: `Multiscribe turns a list of remote media URLs into text transcripts:
it validates each source, downloads and extracts the audio, transcribes it
with a Whisper model, and writes per-item and combined transcript files.

Repeating a run over the same URL set reuses the existing transcription
instead of redoing the work.

URLs are read from the file given as the first argument, one per line, or
entered interactively when no file is given.

Examples:
  multiscribe urls.txt
  multiscribe urls.txt --model small
  multiscribe --keep-audio --work-dir ./scratch urls.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Whisper model tier: tiny, base, small, medium, large")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Combined transcript path")
	rootCmd.Flags().StringVar(&workDirFlag, "work-dir", "", "Scratch directory for intermediate audio")
	rootCmd.Flags().StringVar(&stateFlag, "state-file", "", "Processed-batch record path")
	rootCmd.Flags().StringVar(&reportFlag, "report", "", "Batch report xlsx path (empty string disables)")
	rootCmd.Flags().BoolVar(&keepAudioFlag, "keep-audio", false, "Keep intermediate audio files")
	rootCmd.Flags().BoolVar(&noPerItemFlag, "no-per-item", false, "Skip per-item transcript files")
	rootCmd.SilenceUsage = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load() // loads .env

	log := logger.New().WithRun()
	log.WithField("service", "multiscribe").Info("starting transcription run")

	cfg := config.Load()
	if cmd.Flags().Changed("model") {
		cfg.ModelTier = modelFlag
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputFile = outputFlag
	}
	if cmd.Flags().Changed("work-dir") {
		cfg.WorkDir = workDirFlag
	}
	if cmd.Flags().Changed("state-file") {
		cfg.StateFile = stateFlag
	}
	if cmd.Flags().Changed("report") {
		cfg.ReportFile = reportFlag
	}
	if keepAudioFlag {
		cfg.KeepAudio = true
	}
	if noPerItemFlag {
		cfg.PerItemFiles = false
	}

	tier, err := whisper.ParseTier(cfg.ModelTier)
	if err != nil {
		return err
	}
	if err := media.CheckTools(cfg.ExtractorBin, cfg.ProbeBin, cfg.WhisperBin); err != nil {
		return err
	}

	urls, err := readURLs(args)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		fmt.Println("No URLs provided.")
		return nil
	}

	extractor := media.NewExtractor(cfg.ExtractorBin, log)
	prober := media.NewProber(cfg.ProbeBin)
	engine := whisper.NewEngine(cfg.WhisperBin, tier, log)
	store := cache.NewStore(cfg.StateFile, log)
	sink := &consoleSink{}

	coordinator := pipeline.New(
		validate.New(extractor, log),
		fetch.New(extractor, sink, cfg.WorkDir, cfg.AttemptBudget, cfg.RetryDelay, log),
		transcribe.New(engine, prober, log),
		aggregate.New(cfg.OutputFile, cfg.ReportFile, cfg.PerItemFiles, cfg.KeepAudio, extractor, store, log),
		store,
		cfg.OutputFile,
		log,
	)

	outcome := coordinator.Run(cmd.Context(), urls)
	printSummary(cfg, outcome)
	return nil
}

// readURLs collects the newline-terminated URL list, either from the file
// argument or interactively from stdin.
func readURLs(args []string) ([]string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("read URL list: %w", err)
		}
		var urls []string
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				urls = append(urls, line)
			}
		}
		return urls, nil
	}

	var urls []string
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Enter a video URL (or press Enter to finish): ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

func printSummary(cfg config.Settings, outcome types.BatchOutcome) {
	fmt.Println()
	for _, fail := range outcome.Failures {
		fmt.Printf("  %s: %s (%s)\n", fail.Kind, fail.SourceURL, fail.Reason)
	}

	artifact, err := filepath.Abs(cfg.OutputFile)
	if err != nil {
		artifact = cfg.OutputFile
	}

	switch outcome.State {
	case types.DoneNoSources:
		fmt.Println("No valid URLs provided. Exiting.")
	case types.DoneNoAudio:
		fmt.Println("No audio files were successfully downloaded. Exiting.")
	case types.DoneNoTranscripts:
		fmt.Println("No transcriptions were successfully generated. Exiting.")
	case types.DoneCached:
		fmt.Println("Transcription process completed.")
		fmt.Println("Using existing transcription. No timing information available.")
		fmt.Printf("The full text transcript is available at: %s\n", artifact)
	case types.DoneSuccess:
		if outcome.Partial() {
			fmt.Printf("Transcription process completed with %d failed items.\n", len(outcome.Failures))
		} else {
			fmt.Println("Transcription process completed.")
		}
		fmt.Printf("Total transcription time: %s\n", formatSeconds(outcome.TotalTranscribeSecs))
		fmt.Printf("Total audio duration: %s\n", formatSeconds(outcome.TotalAudioSeconds))
		if ratio, ok := outcome.SpeedRatio(); ok {
			fmt.Printf("Transcription speed: %.2fx real-time\n", ratio)
		} else {
			fmt.Println("Transcription speed: n/a")
		}
		fmt.Printf("The full text transcript is available at: %s\n", artifact)
	}
}

func formatSeconds(seconds float64) string {
	return (time.Duration(seconds) * time.Second).Truncate(time.Second).String()
}

package aggregate

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"multiscribe/internal/types"
)

// writeReport saves an xlsx batch report: one Items sheet with per-source
// rows and one Summary sheet with the run counters. Best-effort artifact;
// callers treat failure as a warning.
func (a *Aggregator) writeReport(transcripts []types.TranscriptItem, outcome types.BatchOutcome) error {
	f := excelize.NewFile()
	defer f.Close()

	const items = "Items"
	f.SetSheetName("Sheet1", items)
	headers := []interface{}{"Source URL", "Status", "Audio seconds", "Transcription seconds", "Detail"}
	if err := f.SetSheetRow(items, "A1", &headers); err != nil {
		return fmt.Errorf("report header: %w", err)
	}

	row := 2
	for _, item := range transcripts {
		cells := []interface{}{item.SourceURL, "transcribed", item.AudioSeconds, item.TranscriptionSeconds, ""}
		if err := f.SetSheetRow(items, fmt.Sprintf("A%d", row), &cells); err != nil {
			return fmt.Errorf("report row: %w", err)
		}
		row++
	}
	for _, fail := range outcome.Failures {
		cells := []interface{}{fail.SourceURL, "failed " + string(fail.Kind), "", "", fail.Reason}
		if err := f.SetSheetRow(items, fmt.Sprintf("A%d", row), &cells); err != nil {
			return fmt.Errorf("report row: %w", err)
		}
		row++
	}

	const summary = "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return fmt.Errorf("report summary sheet: %w", err)
	}
	ratio := "n/a"
	if r, ok := outcome.SpeedRatio(); ok {
		ratio = fmt.Sprintf("%.2fx", r)
	}
	rows := [][]interface{}{
		{"Requested", outcome.Requested},
		{"Validated", outcome.Validated},
		{"Fetched", outcome.Fetched},
		{"Transcribed", outcome.Transcribed},
		{"Total audio seconds", outcome.TotalAudioSeconds},
		{"Total transcription seconds", outcome.TotalTranscribeSecs},
		{"Speed ratio", ratio},
	}
	for i, cells := range rows {
		c := cells
		if err := f.SetSheetRow(summary, fmt.Sprintf("A%d", i+1), &c); err != nil {
			return fmt.Errorf("report summary row: %w", err)
		}
	}

	if err := f.SaveAs(a.reportFile); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	a.log.WithField("path", a.reportFile).Info("batch report written")
	return nil
}

package main

import (
	"fmt"

	"multiscribe/internal/media"
)

// consoleSink renders download progress on one rewritten terminal line.
// Purely observational; the pipeline never depends on this rendering.
type consoleSink struct {
	active bool
}

func (s *consoleSink) OnProgress(bytesSoFar, bytesTotal int64) {
	s.active = true
	if bytesTotal > 0 {
		fmt.Printf("\rDownloading... %s / %s", humanBytes(bytesSoFar), humanBytes(bytesTotal))
		return
	}
	fmt.Printf("\rDownloading... %s", humanBytes(bytesSoFar))
}

func (s *consoleSink) OnPhaseComplete(phase string) {
	if s.active {
		fmt.Println()
		s.active = false
	}
	switch phase {
	case media.PhaseDownload:
		fmt.Println("Extracting audio...")
	case media.PhaseExtract:
		fmt.Println("Audio extracted.")
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

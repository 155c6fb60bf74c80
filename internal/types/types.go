package types

// FetchStatus tracks one item through the download lifecycle.
type FetchStatus string

const (
	FetchPending     FetchStatus = "pending"
	FetchDownloading FetchStatus = "downloading"
	FetchReady       FetchStatus = "ready"
	FetchFailed      FetchStatus = "failed"
)

// FetchItem is one source URL moving through the fetch stage. Index is the
// position in the validated source list and fixes aggregation order later.
type FetchItem struct {
	SourceURL      string      `json:"source_url"`
	Index          int         `json:"index"`
	LocalAudioPath string      `json:"local_audio_path"`
	Attempts       int         `json:"attempts"`
	Status         FetchStatus `json:"status"`
}

// TranscriptItem is the immutable result of transcribing one fetched item.
type TranscriptItem struct {
	SourceURL            string  `json:"source_url"`
	Index                int     `json:"index"`
	Text                 string  `json:"text"`
	TranscriptionSeconds float64 `json:"transcription_seconds"`
	AudioSeconds         float64 `json:"audio_seconds"`
}

// FailureKind classifies a per-item failure.
type FailureKind string

const (
	FailValidation FailureKind = "validation"
	FailFetch      FailureKind = "fetch"
	FailTranscribe FailureKind = "transcribe"
)

// Failure records one non-fatal per-item failure for operator reporting.
type Failure struct {
	Kind      FailureKind `json:"kind"`
	SourceURL string      `json:"source_url"`
	Reason    string      `json:"reason"`
}

// TerminalState is the outcome a batch run ends in. Every run ends in
// exactly one of these; there is no undefined exit.
type TerminalState string

const (
	DoneCached        TerminalState = "done_cached"
	DoneNoSources     TerminalState = "done_no_sources"
	DoneNoAudio       TerminalState = "done_no_audio"
	DoneNoTranscripts TerminalState = "done_no_transcripts"
	DoneSuccess       TerminalState = "done_success"
)

// BatchOutcome aggregates counters and timings for one run. Not persisted.
type BatchOutcome struct {
	State                TerminalState `json:"state"`
	Requested            int           `json:"requested"`
	Validated            int           `json:"validated"`
	Fetched              int           `json:"fetched"`
	Transcribed          int           `json:"transcribed"`
	TotalAudioSeconds    float64       `json:"total_audio_seconds"`
	TotalTranscribeSecs  float64       `json:"total_transcription_seconds"`
	Failures             []Failure     `json:"failures,omitempty"`
}

// SpeedRatio reports audio seconds processed per wall-clock transcription
// second. ok is false when no transcription time was accumulated, in which
// case the ratio is undefined rather than a division error.
func (o BatchOutcome) SpeedRatio() (float64, bool) {
	if o.TotalTranscribeSecs <= 0 {
		return 0, false
	}
	return o.TotalAudioSeconds / o.TotalTranscribeSecs, true
}

// Partial reports whether a successful run carried item failures.
func (o BatchOutcome) Partial() bool {
	return o.State == DoneSuccess && len(o.Failures) > 0
}

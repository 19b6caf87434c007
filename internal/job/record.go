package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmreyes/idextract/constants"
)

// FailureKind classifies why a stage (or the pipeline around it) failed.
type FailureKind string

const (
	FailureTooLarge          FailureKind = "TOO_LARGE"
	FailureCorrupt           FailureKind = "CORRUPT"
	FailureUnsupportedType   FailureKind = "UNSUPPORTED_TYPE"
	FailureNoExtractableText FailureKind = "NO_EXTRACTABLE_TEXT"
	FailureOCRCall           FailureKind = "OCR_CALL_ERROR"
	FailureLLMCall           FailureKind = "LLM_CALL_ERROR"
	FailureResponseParse     FailureKind = "RESPONSE_PARSE_ERROR"
	FailureTimeout           FailureKind = "TIMEOUT"
	FailureInternal          FailureKind = "INTERNAL"
)

// Failure is the terminal error recorded on a FAILED job. It is captured
// into the record rather than propagated across the async boundary.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Cause   error       `json:"-"`
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Cause }

// NewFailure builds a stage failure with an optional cause.
func NewFailure(kind FailureKind, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: message, Cause: cause}
}

// Failf builds a stage failure from a format string.
func Failf(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// DocumentInfo describes the uploaded artifact. Owned by Ingestion.
type DocumentInfo struct {
	Path      string               `json:"path"`
	Filename  string               `json:"filename"`
	SizeBytes int64                `json:"size_bytes"`
	Format    constants.FileFormat `json:"format,omitempty"`
	Method    string               `json:"method,omitempty"` // viable extraction technique
}

// TextContent holds the extracted text. RawText and Language are owned
// by Extraction, CleanedText by Cleaning.
type TextContent struct {
	RawText     string `json:"raw_text,omitempty"`
	CleanedText string `json:"cleaned_text,omitempty"`
	Language    string `json:"language,omitempty"`
}

// Metrics accumulates counters and timings contributed stage by stage.
type Metrics struct {
	ExtractedChars int64                         `json:"extracted_chars"`
	CleanedChars   int64                         `json:"cleaned_chars"`
	Pages          int                           `json:"pages"`
	OCRConfidence  float32                       `json:"ocr_confidence"`
	TokensUsed     int                           `json:"tokens_used"`
	CostEstimate   float64                       `json:"cost_estimate"`
	StageMillis    map[constants.StageName]int64 `json:"stage_millis,omitempty"`
}

// RecordStageDuration notes the elapsed wall time of one stage.
func (m *Metrics) RecordStageDuration(stage constants.StageName, d time.Duration) {
	if m.StageMillis == nil {
		m.StageMillis = make(map[constants.StageName]int64, len(constants.PipelineOrder))
	}
	m.StageMillis[stage] = d.Milliseconds()
}

// Quality carries confidence/completeness scores set by the final stage.
type Quality struct {
	Confidence   float32 `json:"confidence"`
	Completeness float32 `json:"completeness"`
}

// Diagnostics is the append-only log contributed by any stage.
type Diagnostics struct {
	Messages []string `json:"messages,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// State is the pipeline's working document. It accumulates sub-records
// stage by stage and never discards earlier ones; a later stage's inputs
// are a strict superset of an earlier stage's outputs.
type State struct {
	Document      DocumentInfo   `json:"document_info"`
	Text          TextContent    `json:"text_content"`
	Metrics       Metrics        `json:"metrics"`
	Quality       Quality        `json:"quality"`
	ExtractedData map[string]any `json:"extracted_data,omitempty"` // nil until FieldExtraction succeeds
	Diagnostics   Diagnostics    `json:"diagnostics"`
}

func stamp(msg string) string {
	return "[" + time.Now().Format("15:04:05") + "] " + msg
}

// AddMessage appends a timestamped progress message.
func (s *State) AddMessage(format string, args ...any) {
	s.Diagnostics.Messages = append(s.Diagnostics.Messages, stamp(fmt.Sprintf(format, args...)))
}

// AddWarning appends a timestamped warning.
func (s *State) AddWarning(format string, args ...any) {
	s.Diagnostics.Warnings = append(s.Diagnostics.Warnings, stamp(fmt.Sprintf(format, args...)))
}

// AddError appends a timestamped error line.
func (s *State) AddError(format string, args ...any) {
	s.Diagnostics.Errors = append(s.Diagnostics.Errors, stamp(fmt.Sprintf(format, args...)))
}

// Completeness is the ratio of non-empty extracted fields, 0..1.
func (s *State) Completeness() float32 {
	if len(s.ExtractedData) == 0 {
		return 0
	}
	nonEmpty := 0
	for _, v := range s.ExtractedData {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok && str == "" {
			continue
		}
		nonEmpty++
	}
	return float32(nonEmpty) / float32(len(s.ExtractedData))
}

// clone deep-copies the mutable parts so pollers always observe a
// committed snapshot.
func (s State) clone() State {
	out := s
	out.Diagnostics.Messages = append([]string(nil), s.Diagnostics.Messages...)
	out.Diagnostics.Warnings = append([]string(nil), s.Diagnostics.Warnings...)
	out.Diagnostics.Errors = append([]string(nil), s.Diagnostics.Errors...)
	if s.Metrics.StageMillis != nil {
		out.Metrics.StageMillis = make(map[constants.StageName]int64, len(s.Metrics.StageMillis))
		for k, v := range s.Metrics.StageMillis {
			out.Metrics.StageMillis[k] = v
		}
	}
	if s.ExtractedData != nil {
		out.ExtractedData = make(map[string]any, len(s.ExtractedData))
		for k, v := range s.ExtractedData {
			out.ExtractedData[k] = v
		}
	}
	return out
}

// Record is the unit of job state kept in the store, one per submitted
// document. After a terminal status it is immutable.
type Record struct {
	ID          uuid.UUID           `json:"job_id"`
	Status      constants.JobStatus `json:"status"`
	Stage       constants.StageName `json:"stage"`
	State       State               `json:"state"`
	Failure     *Failure            `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// SetStatus transitions the record's status, enforcing monotonicity.
func (r *Record) SetStatus(next constants.JobStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal status transition %s -> %s", r.Status, next)
	}
	now := time.Now().UTC()
	switch next {
	case constants.JobStatusProcessing:
		r.StartedAt = &now
	case constants.JobStatusCompleted, constants.JobStatusFailed:
		r.CompletedAt = &now
	}
	r.Status = next
	return nil
}

// AdvanceStage moves the stage marker forward, enforcing pipeline order.
func (r *Record) AdvanceStage(next constants.StageName) error {
	if next.Index() < 0 {
		return fmt.Errorf("unknown stage %q", next)
	}
	if r.Stage != "" && next.Index() < r.Stage.Index() {
		return fmt.Errorf("stage may not regress: %s -> %s", r.Stage, next)
	}
	r.Stage = next
	return nil
}

// Fail marks the record FAILED with the given failure.
func (r *Record) Fail(f *Failure) error {
	if err := r.SetStatus(constants.JobStatusFailed); err != nil {
		return err
	}
	r.Failure = f
	return nil
}

// Clone deep-copies the record so readers never alias store-owned memory.
func (r *Record) Clone() *Record {
	out := *r
	out.State = r.State.clone()
	if r.Failure != nil {
		f := *r.Failure
		out.Failure = &f
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

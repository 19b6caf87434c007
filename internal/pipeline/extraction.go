package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dmreyes/idextract/constants"
	"github.com/dmreyes/idextract/internal/extract"
	"github.com/dmreyes/idextract/internal/job"
)

// ExtractionStage invokes the OCR service and records the raw text plus
// extraction statistics.
type ExtractionStage struct {
	extractor extract.TextExtractor
	logger    *slog.Logger
}

func NewExtractionStage(tx extract.TextExtractor, logger *slog.Logger) *ExtractionStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionStage{extractor: tx, logger: logger}
}

func (s *ExtractionStage) Name() constants.StageName { return constants.StageExtraction }

func (s *ExtractionStage) Run(ctx context.Context, st job.State) (job.State, error) {
	if st.Document.Path == "" || st.Document.Method == "" {
		return st, invariant(s.Name(), "document not ingested")
	}

	start := time.Now()
	res, err := s.extractor.Extract(ctx, st.Document.Path, st.Document.Format)
	if err != nil {
		st.AddError("text extraction failed: %v", err)
		return st, job.NewFailure(job.FailureOCRCall, "OCR service call failed", err)
	}
	for _, w := range res.Warnings {
		st.AddWarning("%s", w)
	}

	if strings.TrimSpace(res.Text) == "" {
		st.AddError("no text extracted after %d page(s)", res.Pages)
		return st, job.Failf(job.FailureNoExtractableText, "no extractable text in document")
	}

	st.Text.RawText = strings.TrimSpace(res.Text)
	st.Text.Language = res.Language
	st.Metrics.ExtractedChars = int64(len(st.Text.RawText))
	st.Metrics.Pages = res.Pages
	st.Metrics.OCRConfidence = res.Confidence
	st.AddMessage("text extracted: %d characters from %d page(s)", len(st.Text.RawText), res.Pages)

	s.logger.Info("pipeline.extraction.ok",
		"method", res.Method,
		"pages", res.Pages,
		"chars", st.Metrics.ExtractedChars,
		"confidence", res.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return st, nil
}

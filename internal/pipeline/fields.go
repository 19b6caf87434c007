package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmreyes/idextract/constants"
	"github.com/dmreyes/idextract/internal/job"
	"github.com/dmreyes/idextract/internal/llm"
)

// FieldExtractionStage turns cleaned text into structured identity
// fields via the language model. It is the only stage allowed to
// populate ExtractedData.
type FieldExtractionStage struct {
	extractor llm.FieldExtractor
	logger    *slog.Logger
}

func NewFieldExtractionStage(fx llm.FieldExtractor, logger *slog.Logger) *FieldExtractionStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &FieldExtractionStage{extractor: fx, logger: logger}
}

func (s *FieldExtractionStage) Name() constants.StageName { return constants.StageFieldExtraction }

func (s *FieldExtractionStage) Run(ctx context.Context, st job.State) (job.State, error) {
	if st.Text.CleanedText == "" {
		return st, invariant(s.Name(), "no cleaned text for field extraction")
	}

	start := time.Now()
	out, err := s.extractor.ExtractFields(ctx, llm.ExtractRequest{
		CleanedText:          st.Text.CleanedText,
		FilenameHint:         st.Document.Filename,
		AllowedDocumentTypes: constants.DocumentTypeStrings(),
		Language:             st.Text.Language,
		OCRConfidence:        st.Metrics.OCRConfidence,
	})
	if err != nil {
		if len(out.Raw) > 0 {
			st.AddError("model raw response: %s", truncateForLog(string(out.Raw), 500))
		}
		switch {
		case errors.Is(err, llm.ErrParse):
			return st, job.NewFailure(job.FailureResponseParse, "model response could not be parsed", err)
		default:
			return st, job.NewFailure(job.FailureLLMCall, "model call failed", err)
		}
	}

	canonical, known := constants.CanonicalizeDocumentType(out.Fields.DocumentType)
	if !known {
		canonical = constants.OtherDocument
		st.AddWarning("unrecognized document type %q, recorded as %s", out.Fields.DocumentType, canonical)
	}
	out.Fields.DocumentType = string(canonical)

	st.ExtractedData = out.Fields.AsMap()
	st.Metrics.TokensUsed = out.TokensUsed
	st.Metrics.CostEstimate = llm.EstimateCost(out.Model, out.TokensUsed)
	st.Quality.Completeness = st.Completeness()
	if out.Fields.ModelConfidence > 0 {
		st.Quality.Confidence = out.Fields.ModelConfidence
	} else if st.Metrics.OCRConfidence > 0 {
		st.Quality.Confidence = st.Metrics.OCRConfidence / 100
	}
	st.AddMessage("fields extracted: %d populated, completeness %.2f", len(st.ExtractedData), st.Quality.Completeness)

	s.logger.Info("pipeline.fields.ok",
		"document_type", out.Fields.DocumentType,
		"fields", len(st.ExtractedData),
		"tokens", out.TokensUsed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return st, nil
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

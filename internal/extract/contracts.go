package extract

import (
	"context"
	"time"

	"github.com/dmreyes/idextract/constants"
)

// TextExtractor turns a document on disk into text plus a
// confidence/method descriptor. Invoked once per job from the
// extraction stage.
type TextExtractor interface {
	Extract(ctx context.Context, path string, format constants.FileFormat) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	Method     string  // constants.MethodPDFText | constants.MethodImageOCR
	Confidence float32 // 0..100, averaged page confidence
	Language   string
	Duration   time.Duration
	Warnings   []string
}

package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/dmreyes/idextract/constants"
	"github.com/dmreyes/idextract/internal/job"
)

// CleaningStage deterministically normalizes raw text before any model
// sees it: control characters stripped, runs of spaces collapsed,
// consecutive blank lines deduplicated.
type CleaningStage struct {
	logger *slog.Logger
}

func NewCleaningStage(logger *slog.Logger) *CleaningStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleaningStage{logger: logger}
}

func (s *CleaningStage) Name() constants.StageName { return constants.StageCleaning }

func (s *CleaningStage) Run(_ context.Context, st job.State) (job.State, error) {
	if st.Text.RawText == "" {
		return st, invariant(s.Name(), "no raw text to clean")
	}

	cleaned := CleanText(st.Text.RawText)
	st.Text.CleanedText = cleaned
	st.Metrics.CleanedChars = int64(len(cleaned))
	st.AddMessage("text cleaned: %d -> %d characters", st.Metrics.ExtractedChars, st.Metrics.CleanedChars)

	s.logger.Debug("pipeline.cleaning.ok",
		"raw_chars", st.Metrics.ExtractedChars,
		"cleaned_chars", st.Metrics.CleanedChars,
	)
	return st, nil
}

// CleanText applies the normalization rules line by line. The same input
// always yields the same output.
func CleanText(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	blankRun := 0
	for _, line := range lines {
		line = stripControl(line)
		line = collapseSpaces(strings.TrimSpace(line))
		if line == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

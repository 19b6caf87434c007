package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmreyes/idextract/internal/job"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "collapses runs of spaces",
			in:   "REPUBLICA   DE    CHILE",
			want: "REPUBLICA DE CHILE",
		},
		{
			name: "tabs become single spaces",
			in:   "NAME\t\tJUAN PEREZ",
			want: "NAME JUAN PEREZ",
		},
		{
			name: "strips control characters",
			in:   "PASS\x00PORT\x07 NO",
			want: "PASSPORT NO",
		},
		{
			name: "dedupes blank lines",
			in:   "line one\n\n\n\nline two",
			want: "line one\n\nline two",
		},
		{
			name: "trims leading and trailing whitespace",
			in:   "   \n  DNI 12.345.678-9  \n   ",
			want: "DNI 12.345.678-9",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestCleanText_Deterministic(t *testing.T) {
	in := "A  B\tC\n\n\nD \x01E"
	first := CleanText(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, CleanText(in))
	}
	assert.Equal(t, first, CleanText(first), "cleaning is idempotent")
}

func TestCleaningStage_Run(t *testing.T) {
	stage := NewCleaningStage(nil)

	st := job.State{}
	st.Text.RawText = "HELLO    WORLD\n\n\n\nBYE"
	st.Metrics.ExtractedChars = int64(len(st.Text.RawText))

	out, err := stage.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "HELLO WORLD\n\nBYE", out.Text.CleanedText)
	assert.Equal(t, int64(len(out.Text.CleanedText)), out.Metrics.CleanedChars)
	assert.Equal(t, st.Text.RawText, out.Text.RawText, "raw text preserved")
}

func TestCleaningStage_NoRawTextInvariant(t *testing.T) {
	stage := NewCleaningStage(nil)

	_, err := stage.Run(context.Background(), job.State{})
	var f *job.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, job.FailureInternal, f.Kind)
}

package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, JobStatusPending.CanTransitionTo(JobStatusProcessing))
	assert.True(t, JobStatusPending.CanTransitionTo(JobStatusFailed))
	assert.True(t, JobStatusProcessing.CanTransitionTo(JobStatusCompleted))
	assert.True(t, JobStatusProcessing.CanTransitionTo(JobStatusFailed))

	assert.False(t, JobStatusProcessing.CanTransitionTo(JobStatusPending))
	assert.False(t, JobStatusCompleted.CanTransitionTo(JobStatusFailed))
	assert.False(t, JobStatusFailed.CanTransitionTo(JobStatusProcessing))
	assert.False(t, JobStatusPending.CanTransitionTo(JobStatusPending))
}

func TestStageIndexOrder(t *testing.T) {
	assert.Equal(t, 0, StageIngestion.Index())
	assert.Equal(t, 3, StageFieldExtraction.Index())
	assert.Equal(t, -1, StageName("bogus").Index())

	for i := 1; i < len(PipelineOrder); i++ {
		assert.Less(t, PipelineOrder[i-1].Index(), PipelineOrder[i].Index())
	}
}

func TestProgressHint(t *testing.T) {
	assert.Equal(t, 0, ProgressHint(JobStatusPending, ""))
	assert.Equal(t, 20, ProgressHint(JobStatusProcessing, StageIngestion))
	assert.Equal(t, 50, ProgressHint(JobStatusProcessing, StageExtraction))
	assert.Equal(t, 70, ProgressHint(JobStatusProcessing, StageCleaning))
	assert.Equal(t, 90, ProgressHint(JobStatusProcessing, StageFieldExtraction))
	assert.Equal(t, 100, ProgressHint(JobStatusCompleted, StageFieldExtraction))
}

func TestCanonicalizeDocumentType(t *testing.T) {
	tests := []struct {
		in   string
		want DocumentType
		ok   bool
	}{
		{"passport", Passport, true},
		{"  national id ", NationalID, true},
		{"DNI", NationalID, true},
		{"drivers_license", DriverLicense, true},
		{"residence card", ResidenceCard, true},
		{"STUDENT_CARD", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalizeDocumentType(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestMapExtToFormat(t *testing.T) {
	assert.Equal(t, PDF, MapExtToFormat(".PDF"))
	assert.Equal(t, IMAGE, MapExtToFormat("jpeg"))
	assert.Equal(t, IMAGE, MapExtToFormat("tif"))
	assert.Equal(t, FileFormat(""), MapExtToFormat("docx"))
}

package constants

// JobStatus is the canonical lifecycle status of a processing job.
type JobStatus string

// Stable values (these exact strings are returned to polling clients).
const (
	JobStatusPending    JobStatus = "PENDING"    // created, waiting for a worker
	JobStatusProcessing JobStatus = "PROCESSING" // claimed by the scheduler
	JobStatusCompleted  JobStatus = "COMPLETED"  // terminal success
	JobStatusFailed     JobStatus = "FAILED"     // terminal failure
)

// IsTerminal reports whether no further transitions may occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// rank orders statuses so monotonicity can be enforced on writes.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next is a legal,
// one-directional transition: PENDING → PROCESSING → {COMPLETED | FAILED}.
// PENDING may also fail directly (submission cleanup, pre-claim errors).
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// StageName identifies one position in the fixed pipeline order.
type StageName string

const (
	StageIngestion       StageName = "ingestion"
	StageExtraction      StageName = "extraction"
	StageCleaning        StageName = "cleaning"
	StageFieldExtraction StageName = "field_extraction"
)

// PipelineOrder is the fixed execution order of all stages.
var PipelineOrder = []StageName{
	StageIngestion,
	StageExtraction,
	StageCleaning,
	StageFieldExtraction,
}

// Index returns the position of the stage in PipelineOrder, or -1.
func (n StageName) Index() int {
	for i, s := range PipelineOrder {
		if s == n {
			return i
		}
	}
	return -1
}

// ProgressHint maps a job's status and current stage to a coarse
// percentage for polling clients.
func ProgressHint(status JobStatus, stage StageName) int {
	switch status {
	case JobStatusPending:
		return 0
	case JobStatusCompleted:
		return 100
	}
	switch stage {
	case StageIngestion:
		return 20
	case StageExtraction:
		return 50
	case StageCleaning:
		return 70
	case StageFieldExtraction:
		return 90
	}
	return 0
}

package constants

// JobStatus is the canonical status for rows in document_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending    JobStatus = "pending"    // created, extraction not started
	JobStatusExtracting JobStatus = "extracting" // extraction capability running
	JobStatusCompleted  JobStatus = "completed"  // terminal: items persisted
	JobStatusFailed     JobStatus = "failed"     // terminal failure
)

// JobStatuses lists every status in lifecycle order.
var JobStatuses = []JobStatus{JobStatusPending, JobStatusExtracting, JobStatusCompleted, JobStatusFailed}

var transitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusExtracting, JobStatusFailed},
	JobStatusExtracting: {JobStatusCompleted, JobStatusFailed},
}

// IsTerminal reports whether no transition may leave s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether s -> next is a legal job transition.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourcesFor lists the statuses from which next can be reached.
func SourcesFor(next JobStatus) []JobStatus {
	var out []JobStatus
	for _, from := range []JobStatus{JobStatusPending, JobStatusExtracting} {
		if from.CanTransitionTo(next) {
			out = append(out, from)
		}
	}
	return out
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusExtracting, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition is permitted from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is a known status value.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusSubmitted, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Job encapsulates one video style-transfer request and its tracked outcome.
// Status only ever moves pending -> submitted -> completed|failed.
type Job struct {
	ID             string
	OwnerID        string
	SourceRef      string
	SourceName     string
	SourceSize     int64
	SourceFormat   string
	Parameters     []byte
	ProviderTicket string
	Status         JobStatus
	ResultRef      string
	ErrorDetail    string
	CreatedAt      time.Time
	SubmittedAt    *time.Time
	FinalizedAt    *time.Time
}

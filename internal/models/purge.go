package models

import "time"

type PurgeTask struct {
	JobID       string
	AccountID   string
	Reason      DeletionReason
	RequestedBy string
	RequestedAt time.Time
}

// PurgeReport summarises one settled purge batch.
type PurgeReport struct {
	JobID          string
	AccountID      string
	Total          int
	BlobsDeleted   int
	BlobFailures   int
	RecordsMarked  int
	RecordFailures int
	ImageCount     int64
}

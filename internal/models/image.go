package models

import "time"

type DeletionReason string

const (
	DeletionReasonNone  DeletionReason = "NONE"
	DeletionReasonUser  DeletionReason = "USER"
	DeletionReasonAdmin DeletionReason = "ADMIN"
	DeletionReasonKey   DeletionReason = "KEY"
)

func (r DeletionReason) Valid() bool {
	switch r {
	case DeletionReasonUser, DeletionReasonAdmin, DeletionReasonKey:
		return true
	}
	return false
}

// Image is the metadata record of one uploaded object. Records are never
// removed; deletion flips Deleted and sets DeletionReason.
type Image struct {
	ShortID        string
	Host           string
	StorageKey     string
	SizeBytes      int64
	ContentType    string
	OriginalName   string
	ContentHash    string
	UploaderID     string
	UploaderIP     string
	DeletionKey    string
	UploadedAt     time.Time
	Deleted        bool
	DeletionReason DeletionReason
}

// MarkDeleted returns the deleted form of the record.
func (i Image) MarkDeleted(reason DeletionReason) Image {
	i.Deleted = true
	i.DeletionReason = reason
	return i
}

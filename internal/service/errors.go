package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredential        = errors.New("upload key is invalid")
	ErrAccountBanned            = errors.New("account banned")
	ErrIdentifierSpaceExhausted = errors.New("could not allocate a unique short id")
	ErrBlobWriteFailed          = errors.New("blob write failed")
	ErrMetadataWriteFailed      = errors.New("metadata write failed")
	ErrTargetNotFound           = errors.New("that user does not exist")
	ErrImageNotFound            = errors.New("image not found")
	ErrInvalidDeletionKey       = errors.New("deletion key is invalid")
	ErrPurgeIncomplete          = errors.New("purge left active records behind")
)

// BannedError carries the ban reason so transports can render it.
// errors.Is(err, ErrAccountBanned) holds for every BannedError.
type BannedError struct {
	Reason string
}

func (e *BannedError) Error() string {
	if e.Reason == "" {
		return ErrAccountBanned.Error()
	}
	return fmt.Sprintf("%s: %s", ErrAccountBanned, e.Reason)
}

func (e *BannedError) Is(target error) bool {
	return target == ErrAccountBanned
}

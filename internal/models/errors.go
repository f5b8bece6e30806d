package models

import "errors"

var (
	// ErrNotFound the referenced row does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyResolved the row already left its open/active state
	ErrAlreadyResolved = errors.New("already resolved")
	// ErrCoolingOffActive the couple already has a live cooling-off period
	ErrCoolingOffActive = errors.New("cooling-off period already active")
	// ErrSafetyCheckPending the partner already has an unanswered check of this type
	ErrSafetyCheckPending = errors.New("safety check already pending")
	// ErrRetryable a storage failure the caller may retry
	ErrRetryable = errors.New("temporary failure, retry later")
)

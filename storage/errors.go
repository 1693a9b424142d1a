package storage

import "errors"

var ErrNotFound = errors.New("item not found in storage")

var (
	ErrDuplicateUsername    = errors.New("username already exists")
	ErrDuplicateApplication = errors.New("you have already applied for this election")
	ErrDuplicateIdentity    = errors.New("student ID or email already registered as candidate")
	ErrDuplicateBallot      = errors.New("you have already voted in this election")
)

// ErrResultsAlreadyAnnounced is returned when an announcement loses the
// conditional write against another announcement.
var ErrResultsAlreadyAnnounced = errors.New("results have already been announced")

// ErrConcurrentUpdate is returned when an exclusive activation raced another one.
var ErrConcurrentUpdate = errors.New("election state changed concurrently, retry")

package election

import "errors"

var (
	ErrElectionInactive     = errors.New("election is not active")
	ErrResultsAnnounced     = errors.New("results have already been announced")
	ErrVotingNotStarted     = errors.New("voting has not started yet")
	ErrVotingClosed         = errors.New("voting has ended for this election")
	ErrCandidateNotEligible = errors.New("candidate not found or not approved")
	ErrResultsNotAvailable  = errors.New("results are not yet available")
)

var (
	ErrNoVotes      = errors.New("no winner could be declared (no votes cast)")
	ErrTie          = errors.New("election is tied, a winner must be chosen manually")
	ErrNotTied      = errors.New("election is not tied, declare results instead")
	ErrNotAmongTied = errors.New("candidate is not among the tied candidates")
)

// ValidationError describes malformed input: missing fields, bad date order,
// out-of-range statement length.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

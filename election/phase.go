package election

import (
	"time"

	"github.com/alex-pricope/campus-election-system/storage"
)

type Phase string

const (
	PhaseNotFound         Phase = "not_found"
	PhaseInactive         Phase = "inactive"
	PhaseResultsAnnounced Phase = "results_announced"
	PhaseNotStarted       Phase = "not_started"
	PhaseTimeEnded        Phase = "time_ended"
	PhaseActive           Phase = "active"
)

// PhaseOf evaluates the voting state of e at now. The checks run in a fixed
// precedence order so exactly one phase applies.
func PhaseOf(e *storage.Election, now time.Time) Phase {
	switch {
	case e == nil:
		return PhaseNotFound
	case !e.Active:
		return PhaseInactive
	case e.ResultsAnnounced:
		return PhaseResultsAnnounced
	case now.Before(e.VotingDate):
		return PhaseNotStarted
	case !now.Before(e.ResultAnnouncementDate):
		return PhaseTimeEnded
	default:
		return PhaseActive
	}
}

func (p Phase) Message() string {
	switch p {
	case PhaseNotFound:
		return "Election not found"
	case PhaseInactive:
		return "Election is not active"
	case PhaseResultsAnnounced:
		return "Results have been announced"
	case PhaseNotStarted:
		return "Voting has not started yet"
	case PhaseTimeEnded:
		return "Voting time has ended"
	case PhaseActive:
		return "Voting is open"
	}
	return ""
}

// CheckCastVote returns the error for the first election-level precondition a
// ballot would violate, or nil when voting is open.
func CheckCastVote(e *storage.Election, now time.Time) error {
	switch PhaseOf(e, now) {
	case PhaseInactive:
		return ErrElectionInactive
	case PhaseResultsAnnounced:
		return ErrResultsAnnounced
	case PhaseNotStarted:
		return ErrVotingNotStarted
	case PhaseTimeEnded:
		return ErrVotingClosed
	}
	return nil
}

// CheckCandidate verifies that c can receive ballots in electionID.
func CheckCandidate(c *storage.Candidacy, electionID string) error {
	if c == nil || c.ElectionID != electionID || c.Status != storage.StatusApproved {
		return ErrCandidateNotEligible
	}
	return nil
}

// ResultsAvailable gates result views, winner queries and declaration.
func ResultsAvailable(e *storage.Election, now time.Time) error {
	if now.Before(e.ResultAnnouncementDate) {
		return ErrResultsNotAvailable
	}
	return nil
}

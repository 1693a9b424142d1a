package models

import (
	"time"

	"github.com/alex-pricope/campus-election-system/election"
)

type CastVoteRequest struct {
	CandidateID string `json:"candidateId"`
	ElectionID  string `json:"electionId"`
}

type BallotReceipt struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidateId"`
	ElectionID  string    `json:"electionId"`
	Timestamp   time.Time `json:"timestamp"`
}

type CastVoteResponse struct {
	Message string        `json:"message"`
	Vote    BallotReceipt `json:"vote"`
}

type VoteStatusResponse struct {
	HasVoted  bool             `json:"hasVoted"`
	VoteID    string           `json:"voteId,omitempty"`
	Candidate *PublicCandidate `json:"candidate,omitempty"`
	VotedAt   *time.Time       `json:"votedAt,omitempty"`
}

type VotingStatusResponse struct {
	ElectionID string         `json:"electionId"`
	Status     election.Phase `json:"status"`
	Message    string         `json:"message"`
	CanVote    bool           `json:"canVote"`
	VotingDate *time.Time     `json:"votingDate,omitempty"`
	EndsAt     *time.Time     `json:"endsAt,omitempty"`
}

type LiveCandidate struct {
	CandidateID   string `json:"candidateId"`
	CandidateName string `json:"candidateName"`
	Position      string `json:"position"`
	VoteCount     int    `json:"voteCount"`
}

type LiveCountResponse struct {
	ElectionID          string          `json:"electionId"`
	ElectionTitle       string          `json:"electionTitle"`
	ElectionPost        string          `json:"electionPost"`
	TotalVotes          int             `json:"totalVotes"`
	TotalEligibleVoters int             `json:"totalEligibleVoters"`
	VotePercentage      float64         `json:"votePercentage"`
	Candidates          []LiveCandidate `json:"candidates"`
	LastUpdated         time.Time       `json:"lastUpdated"`
}

// LiveUpdate is one server-sent event of the live feed.
type LiveUpdate struct {
	ElectionID string          `json:"electionId"`
	TotalVotes int             `json:"totalVotes"`
	Candidates []LiveCandidate `json:"candidates"`
	Timestamp  time.Time       `json:"timestamp"`
}

func TransformLiveCandidates(t *election.Tally) []LiveCandidate {
	out := make([]LiveCandidate, 0, len(t.Standings))
	for _, s := range t.Standings {
		out = append(out, LiveCandidate{
			CandidateID:   s.CandidateID,
			CandidateName: s.Name,
			Position:      s.Position,
			VoteCount:     s.Votes,
		})
	}
	return out
}

type CandidateResult struct {
	CandidateID   string  `json:"candidateId"`
	CandidateName string  `json:"candidateName"`
	StudentID     string  `json:"studentId"`
	Email         string  `json:"email"`
	Position      string  `json:"position"`
	VoteCount     int     `json:"voteCount"`
	Percentage    float64 `json:"percentage"`
	Rank          int     `json:"rank"`
}

func TransformCandidateResults(standings []election.Standing) []CandidateResult {
	out := make([]CandidateResult, 0, len(standings))
	for _, s := range standings {
		out = append(out, CandidateResult{
			CandidateID:   s.CandidateID,
			CandidateName: s.Name,
			StudentID:     s.StudentID,
			Email:         s.Email,
			Position:      s.Position,
			VoteCount:     s.Votes,
			Percentage:    s.Percentage,
			Rank:          s.Rank,
		})
	}
	return out
}

type WinnerEntry struct {
	CandidateID string  `json:"candidateId"`
	Name        string  `json:"name"`
	StudentID   string  `json:"studentId"`
	Email       string  `json:"email"`
	Position    string  `json:"position"`
	VoteCount   int     `json:"voteCount"`
	Percentage  float64 `json:"percentage"`
}

func TransformWinners(standings []election.Standing) []WinnerEntry {
	out := make([]WinnerEntry, 0, len(standings))
	for _, s := range standings {
		out = append(out, WinnerEntry{
			CandidateID: s.CandidateID,
			Name:        s.Name,
			StudentID:   s.StudentID,
			Email:       s.Email,
			Position:    s.Position,
			VoteCount:   s.Votes,
			Percentage:  s.Percentage,
		})
	}
	return out
}

type HourlyVotes struct {
	Date  string `json:"date"`
	Hour  int    `json:"hour"`
	Count int    `json:"count"`
}

func TransformDistribution(hours []election.HourlyCount) []HourlyVotes {
	out := make([]HourlyVotes, 0, len(hours))
	for _, h := range hours {
		out = append(out, HourlyVotes{Date: h.Date, Hour: h.Hour, Count: h.Count})
	}
	return out
}

type ElectionDates struct {
	NominationStart    time.Time `json:"nominationStart"`
	NominationEnd      time.Time `json:"nominationEnd"`
	CampaignStart      time.Time `json:"campaignStart"`
	CampaignEnd        time.Time `json:"campaignEnd"`
	VotingDate         time.Time `json:"votingDate"`
	ResultAnnouncement time.Time `json:"resultAnnouncement"`
}

type ResultsResponse struct {
	ElectionID          string            `json:"electionId"`
	ElectionTitle       string            `json:"electionTitle"`
	ElectionPost        string            `json:"electionPost"`
	ElectionType        string            `json:"electionType,omitempty"`
	ElectionDates       ElectionDates     `json:"electionDates"`
	TotalVotes          int               `json:"totalVotes"`
	TotalEligibleVoters int               `json:"totalEligibleVoters"`
	TurnoutPercentage   float64           `json:"turnoutPercentage"`
	Candidates          []CandidateResult `json:"candidates"`
	Winners             []WinnerEntry     `json:"winners"`
	IsTie               bool              `json:"isTie"`
	ResultsAnnounced    bool              `json:"resultsAnnounced"`
	VoteDistribution    []HourlyVotes     `json:"voteDistribution"`
	ResultGeneratedAt   time.Time         `json:"resultGeneratedAt"`
}

type StatisticsResponse struct {
	ElectionID             string            `json:"electionId"`
	ElectionTitle          string            `json:"electionTitle"`
	ElectionPost           string            `json:"electionPost"`
	TotalVotes             int               `json:"totalVotes"`
	TotalEligibleVoters    int               `json:"totalEligibleVoters"`
	TurnoutPercentage      float64           `json:"turnoutPercentage"`
	Candidates             []CandidateResult `json:"candidates"`
	Leader                 *CandidateResult  `json:"leader"`
	HourlyVoteDistribution []HourlyVotes     `json:"hourlyVoteDistribution"`
	GeneratedAt            time.Time         `json:"generatedAt"`
}

type WinnerResponse struct {
	ElectionID       string        `json:"electionId"`
	ElectionTitle    string        `json:"electionTitle"`
	ElectionPost     string        `json:"electionPost"`
	TotalVotes       int           `json:"totalVotes"`
	Winners          []WinnerEntry `json:"winners"`
	IsTie            bool          `json:"isTie"`
	AnnouncementDate time.Time     `json:"announcementDate"`
	GeneratedAt      time.Time     `json:"generatedAt"`
}

type DeclareResultsResponse struct {
	Message    string            `json:"message"`
	ElectionID string            `json:"electionId"`
	Winners    []WinnerEntry     `json:"winners"`
	IsTie      bool              `json:"isTie"`
	Election   *ElectionResponse `json:"election,omitempty"`
	DeclaredAt *time.Time        `json:"declaredAt,omitempty"`
}

type ResolveTieRequest struct {
	CandidateID string `json:"candidateId" binding:"required"`
}

type SummaryWinner struct {
	Name      string `json:"name"`
	Position  string `json:"position"`
	VoteCount int    `json:"voteCount"`
}

type ElectionResultSummary struct {
	ElectionID             string         `json:"electionId"`
	Title                  string         `json:"title"`
	Post                   string         `json:"post"`
	Type                   string         `json:"type,omitempty"`
	Active                 bool           `json:"active"`
	ResultsAnnounced       bool           `json:"resultsAnnounced"`
	TotalVotes             int            `json:"totalVotes"`
	TotalCandidates        int            `json:"totalCandidates"`
	Winner                 *SummaryWinner `json:"winner"`
	VotingDate             time.Time      `json:"votingDate"`
	ResultAnnouncementDate time.Time      `json:"resultAnnouncementDate"`
	ResultsAvailable       bool           `json:"resultsAvailable"`
}

type AllResultsResponse struct {
	Elections       []ElectionResultSummary `json:"elections"`
	TotalElections  int                     `json:"totalElections"`
	ActiveElections int                     `json:"activeElections"`
	GeneratedAt     time.Time               `json:"generatedAt"`
}

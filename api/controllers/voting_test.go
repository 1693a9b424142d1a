package controllers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	testutils "github.com/alex-pricope/campus-election-system/api/controllers/testing"
	"github.com/alex-pricope/campus-election-system/api/models"
	"github.com/alex-pricope/campus-election-system/election"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func castVote(env *testEnv, token, electionID, candidateID string) *httptest.ResponseRecorder {
	return testutils.PerformRequest(env.router, http.MethodPost, "/api/vote/cast",
		models.CastVoteRequest{ElectionID: electionID, CandidateID: candidateID}, testutils.Bearer(token))
}

func TestCastVote(t *testing.T) {
	env := setupTestEnv(t)
	_, alice := env.addUser(t, "alice", storage.RoleUser)
	_, bob := env.addUser(t, "bob", storage.RoleUser)
	_, carol := env.addUser(t, "carol", storage.RoleUser)
	_, officer := env.addUser(t, "officer", storage.RoleECOfficer)
	e1 := env.addElection(t, "e1", true)
	env.addElection(t, "e2", false)
	env.addCandidate(t, "c1", "e1", "u1", storage.StatusApproved)
	env.addCandidate(t, "c2", "e1", "u2", storage.StatusPending)
	env.addCandidate(t, "c3", "e2", "u3", storage.StatusApproved)

	t.Run("Before the voting date the ballot is refused with the opening time", func(t *testing.T) {
		res := castVote(env, alice, "e1", "c1")
		require.Equal(t, http.StatusBadRequest, res.Code)

		body := testutils.Decode[models.ErrorResponse](t, res)
		assert.Equal(t, election.ErrVotingNotStarted.Error(), body.Error)
		require.NotNil(t, body.AvailableAt)
		assert.True(t, e1.VotingDate.Equal(*body.AvailableAt))
	})

	t.Run("Voting opens exactly at the voting date", func(t *testing.T) {
		env.clock.Set(e1.VotingDate)
		res := castVote(env, alice, "e1", "c1")
		require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

		body := testutils.Decode[models.CastVoteResponse](t, res)
		assert.Equal(t, "c1", body.Vote.CandidateID)
		assert.NotEmpty(t, body.Vote.ID)

		ballot, err := env.ballots.Get(context.Background(), "e1", "alice")
		require.NoError(t, err)
		assert.Equal(t, "c1", ballot.CandidateID)
	})

	t.Run("Second ballot in the same election is refused", func(t *testing.T) {
		env.votingOpen()
		res := castVote(env, alice, "e1", "c1")
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, storage.ErrDuplicateBallot.Error(), testutils.Decode[models.ErrorResponse](t, res).Error)
	})

	t.Run("Unapproved or foreign candidates cannot receive ballots", func(t *testing.T) {
		res := castVote(env, bob, "e1", "c2")
		assert.Equal(t, http.StatusNotFound, res.Code)

		res = castVote(env, bob, "e1", "c3")
		assert.Equal(t, http.StatusNotFound, res.Code)

		res = castVote(env, bob, "e1", "missing")
		assert.Equal(t, http.StatusNotFound, res.Code)
	})

	t.Run("Inactive election refuses ballots", func(t *testing.T) {
		res := castVote(env, bob, "e2", "c3")
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, election.ErrElectionInactive.Error(), testutils.Decode[models.ErrorResponse](t, res).Error)
	})

	t.Run("Unknown election is not found", func(t *testing.T) {
		res := castVote(env, bob, "missing", "c1")
		assert.Equal(t, http.StatusNotFound, res.Code)
	})

	t.Run("Missing ids are a bad request", func(t *testing.T) {
		res := castVote(env, bob, "e1", "")
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	t.Run("Only students vote", func(t *testing.T) {
		res := castVote(env, officer, "e1", "c1")
		assert.Equal(t, http.StatusForbidden, res.Code)
	})

	t.Run("Voting closes at the result announcement date", func(t *testing.T) {
		env.clock.Set(e1.ResultAnnouncementDate)
		res := castVote(env, bob, "e1", "c1")
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, election.ErrVotingClosed.Error(), testutils.Decode[models.ErrorResponse](t, res).Error)
	})

	t.Run("Announced election refuses ballots", func(t *testing.T) {
		env.votingOpen()
		_, err := env.elections.AnnounceResults(context.Background(), "e1", "c1", []string{"c1"}, env.clock.Now())
		require.NoError(t, err)
		require.NoError(t, env.elections.Activate(context.Background(), "e1"))

		res := castVote(env, carol, "e1", "c1")
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, election.ErrResultsAnnounced.Error(), testutils.Decode[models.ErrorResponse](t, res).Error)
	})
}

func TestCastVoteConcurrently(t *testing.T) {
	env := setupTestEnv(t)
	_, token := env.addUser(t, "alice", storage.RoleUser)
	env.addElection(t, "e1", true)
	env.addCandidate(t, "c1", "e1", "u1", storage.StatusApproved)
	env.addCandidate(t, "c2", "e1", "u2", storage.StatusApproved)
	env.votingOpen()

	const attempts = 8
	codes := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			candidate := "c1"
			if i%2 == 1 {
				candidate = "c2"
			}
			codes[i] = castVote(env, token, "e1", candidate).Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
			continue
		}
		assert.Equal(t, http.StatusBadRequest, code)
	}
	assert.Equal(t, 1, created)

	ballots, err := env.ballots.GetByElection(context.Background(), "e1")
	require.NoError(t, err)
	assert.Len(t, ballots, 1)
}

func TestVoteStatus(t *testing.T) {
	env := setupTestEnv(t)
	_, alice := env.addUser(t, "alice", storage.RoleUser)
	_, bob := env.addUser(t, "bob", storage.RoleUser)
	env.addElection(t, "e1", true)
	env.addCandidate(t, "c1", "e1", "u1", storage.StatusApproved)
	env.addBallots(t, "e1", "c1", "alice")

	t.Run("Voter sees their ballot", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/status/e1", nil, testutils.Bearer(alice))
		require.Equal(t, http.StatusOK, res.Code)
		body := testutils.Decode[models.VoteStatusResponse](t, res)
		assert.True(t, body.HasVoted)
		require.NotNil(t, body.Candidate)
		assert.Equal(t, "c1", body.Candidate.ID)
	})

	t.Run("Non-voter has not voted", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/status/e1", nil, testutils.Bearer(bob))
		require.Equal(t, http.StatusOK, res.Code)
		assert.False(t, testutils.Decode[models.VoteStatusResponse](t, res).HasVoted)
	})

	t.Run("Status requires a token", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/status/e1", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, res.Code)
	})
}

func TestVotingStatus(t *testing.T) {
	env := setupTestEnv(t)
	env.addElection(t, "open", true)
	env.addElection(t, "idle", false)

	phase := func(t *testing.T, id string) models.VotingStatusResponse {
		t.Helper()
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/voting-status/"+id, nil, nil)
		require.Equal(t, http.StatusOK, res.Code)
		return testutils.Decode[models.VotingStatusResponse](t, res)
	}

	assert.Equal(t, election.PhaseNotFound, phase(t, "missing").Status)
	assert.Equal(t, election.PhaseInactive, phase(t, "idle").Status)
	assert.Equal(t, election.PhaseNotStarted, phase(t, "open").Status)

	env.votingOpen()
	open := phase(t, "open")
	assert.Equal(t, election.PhaseActive, open.Status)
	assert.True(t, open.CanVote)
	assert.Equal(t, "Voting is open", open.Message)

	env.resultsDue()
	assert.Equal(t, election.PhaseTimeEnded, phase(t, "open").Status)

	_, err := env.elections.AnnounceResults(context.Background(), "open", "", nil, env.clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.elections.Activate(context.Background(), "open"))
	assert.Equal(t, election.PhaseResultsAnnounced, phase(t, "open").Status)
}

func TestApprovedCandidates(t *testing.T) {
	env := setupTestEnv(t)
	env.addElection(t, "e1", true)
	env.addCandidate(t, "c1", "e1", "u1", storage.StatusApproved)
	env.addCandidate(t, "c2", "e1", "u2", storage.StatusPending)
	env.addCandidate(t, "c3", "e1", "u3", storage.StatusRejected)

	res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/candidates/e1", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := testutils.Decode[models.ApprovedCandidatesResponse](t, res)
	require.Len(t, body.Candidates, 1)
	assert.Equal(t, "c1", body.Candidates[0].ID)

	res = testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/candidates/missing", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Empty(t, testutils.Decode[models.ApprovedCandidatesResponse](t, res).Candidates)
}

func TestLiveCount(t *testing.T) {
	env := setupTestEnv(t)
	for i := 1; i <= 4; i++ {
		env.addUser(t, fmt.Sprintf("v%d", i), storage.RoleUser)
	}
	env.addUser(t, "officer", storage.RoleECOfficer)
	env.addElection(t, "e1", true)
	env.addCandidate(t, "c1", "e1", "u1", storage.StatusApproved)
	env.addCandidate(t, "c2", "e1", "u2", storage.StatusApproved)
	env.addCandidate(t, "c3", "e1", "u3", storage.StatusPending)
	env.addBallots(t, "e1", "c2", "v1", "v2")
	env.addBallots(t, "e1", "c1", "v3")

	t.Run("Counts are ordered by votes with turnout over eligible students", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/live-count/e1", nil, nil)
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())

		body := testutils.Decode[models.LiveCountResponse](t, res)
		assert.Equal(t, 3, body.TotalVotes)
		assert.Equal(t, 4, body.TotalEligibleVoters)
		assert.Equal(t, 75.0, body.VotePercentage)
		require.Len(t, body.Candidates, 2)
		assert.Equal(t, "c2", body.Candidates[0].CandidateID)
		assert.Equal(t, 2, body.Candidates[0].VoteCount)
	})

	t.Run("Active election live count", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/live-count/active", nil, nil)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "e1", testutils.Decode[models.LiveCountResponse](t, res).ElectionID)

		require.NoError(t, env.elections.Deactivate(context.Background(), "e1"))
		res = testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/live-count/active", nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Code)
	})

	t.Run("Unknown election is not found", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/live-count/missing", nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Code)
	})
}

func TestLiveUpdates(t *testing.T) {
	env := setupTestEnv(t)
	env.addElection(t, "e1", true)
	env.addCandidate(t, "c1", "e1", "u1", storage.StatusApproved)
	env.addBallots(t, "e1", "c1", "v1")

	t.Run("Stream emits snapshots until the client leaves", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
		defer cancel()

		req := httptest.NewRequest(http.MethodGet, "/api/vote/live-updates/e1", nil).WithContext(ctx)
		res := httptest.NewRecorder()
		env.router.ServeHTTP(res, req)

		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "text/event-stream", res.Header().Get("Content-Type"))

		events := strings.Split(strings.TrimSpace(res.Body.String()), "\n\n")
		assert.GreaterOrEqual(t, len(events), 2)
		assert.True(t, strings.HasPrefix(events[0], "data: "))
		assert.Contains(t, events[0], `"electionId":"e1"`)
		assert.Contains(t, events[0], `"totalVotes":1`)
	})

	t.Run("Unknown election is not found", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/live-updates/missing", nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Code)
	})
}

func TestStatistics(t *testing.T) {
	env := setupTestEnv(t)
	env.addUser(t, "v1", storage.RoleUser)
	env.addUser(t, "v2", storage.RoleUser)
	env.addElection(t, "e1", true)
	env.addElection(t, "empty", false)
	env.addCandidate(t, "c1", "e1", "u1", storage.StatusApproved)
	env.addCandidate(t, "c2", "e1", "u2", storage.StatusApproved)
	env.addBallots(t, "e1", "c1", "v1", "v2")
	env.votingOpen()

	t.Run("Leader and hourly distribution", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/statistics/e1", nil, nil)
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())

		body := testutils.Decode[models.StatisticsResponse](t, res)
		assert.Equal(t, 2, body.TotalVotes)
		assert.Equal(t, 100.0, body.TurnoutPercentage)
		require.NotNil(t, body.Leader)
		assert.Equal(t, "c1", body.Leader.CandidateID)
		assert.Equal(t, 1, body.Leader.Rank)
		assert.Equal(t, 2, body.Candidates[1].Rank)
		assert.Equal(t, []models.HourlyVotes{{Date: "2025-03-04", Hour: 10, Count: 2}}, body.HourlyVoteDistribution)
	})

	t.Run("No ballots means no leader", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/statistics/empty", nil, nil)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Nil(t, testutils.Decode[models.StatisticsResponse](t, res).Leader)
	})
}

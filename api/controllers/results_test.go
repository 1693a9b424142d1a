package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	testutils "github.com/alex-pricope/campus-election-system/api/controllers/testing"
	"github.com/alex-pricope/campus-election-system/api/models"
	"github.com/alex-pricope/campus-election-system/election"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResults(t *testing.T) {
	env := setupTestEnv(t)
	for _, id := range []string{"v1", "v2", "v3", "v4"} {
		env.addUser(t, id, storage.RoleUser)
	}
	e1 := env.addElection(t, "e1", true)
	env.addCandidate(t, "c1", "e1", "u1", storage.StatusApproved)
	env.addCandidate(t, "c2", "e1", "u2", storage.StatusApproved)
	env.addCandidate(t, "c3", "e1", "u3", storage.StatusRejected)
	env.addBallots(t, "e1", "c1", "v1", "v2", "v3")
	env.addBallots(t, "e1", "c3", "v4")

	t.Run("Results are hidden until the announcement date", func(t *testing.T) {
		env.votingOpen()
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/results/e1", nil, nil)
		require.Equal(t, http.StatusBadRequest, res.Code)
		body := testutils.Decode[models.ErrorResponse](t, res)
		assert.Equal(t, election.ErrResultsNotAvailable.Error(), body.Error)
		require.NotNil(t, body.AvailableAt)
		assert.True(t, e1.ResultAnnouncementDate.Equal(*body.AvailableAt))
	})

	t.Run("Results count only approved candidates", func(t *testing.T) {
		env.resultsDue()
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/results/e1", nil, nil)
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())

		body := testutils.Decode[models.ResultsResponse](t, res)
		assert.Equal(t, 3, body.TotalVotes)
		assert.Equal(t, 4, body.TotalEligibleVoters)
		assert.Equal(t, 75.0, body.TurnoutPercentage)
		require.Len(t, body.Candidates, 2)
		assert.Equal(t, 100.0, body.Candidates[0].Percentage)
		require.Len(t, body.Winners, 1)
		assert.Equal(t, "c1", body.Winners[0].CandidateID)
		assert.False(t, body.IsTie)
		assert.False(t, body.ResultsAnnounced)
		assert.Len(t, body.VoteDistribution, 1)

		res = testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/results/active", nil, nil)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "e1", testutils.Decode[models.ResultsResponse](t, res).ElectionID)
	})

	t.Run("Summary of every election", func(t *testing.T) {
		env.addElection(t, "e2", false)
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/results/all", nil, nil)
		require.Equal(t, http.StatusOK, res.Code)

		body := testutils.Decode[models.AllResultsResponse](t, res)
		assert.Equal(t, 2, body.TotalElections)
		assert.Equal(t, 1, body.ActiveElections)
		for _, s := range body.Elections {
			if s.ElectionID != "e1" {
				assert.Nil(t, s.Winner)
				continue
			}
			require.NotNil(t, s.Winner)
			assert.Equal(t, "Candidate C1", s.Winner.Name)
			assert.Equal(t, 3, s.Winner.VoteCount)
			assert.True(t, s.ResultsAvailable)
		}
	})

	t.Run("Unknown election is not found", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/results/missing", nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Code)
	})
}

func TestWinner(t *testing.T) {
	env := setupTestEnv(t)
	_, student := env.addUser(t, "student", storage.RoleUser)
	_, officer := env.addUser(t, "officer", storage.RoleECOfficer)
	_, admin := env.addUser(t, "root", storage.RoleAdmin)
	env.addElection(t, "e1", true)
	env.addCandidate(t, "c1", "e1", "u1", storage.StatusApproved)
	env.addCandidate(t, "c2", "e1", "u2", storage.StatusApproved)
	env.addBallots(t, "e1", "c1", "v1")
	env.addBallots(t, "e1", "c2", "v2")

	res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/winner/e1", nil, testutils.Bearer(officer))
	assert.Equal(t, http.StatusBadRequest, res.Code)

	env.resultsDue()
	res = testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/winner/e1", nil, testutils.Bearer(admin))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	body := testutils.Decode[models.WinnerResponse](t, res)
	assert.True(t, body.IsTie)
	assert.Len(t, body.Winners, 2)

	res = testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/winner/e1", nil, testutils.Bearer(student))
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestDeclareResults(t *testing.T) {
	env := setupTestEnv(t)
	_, officer := env.addUser(t, "officer", storage.RoleECOfficer)
	env.addElection(t, "clear", true)
	env.addElection(t, "tied", false)
	env.addElection(t, "empty", false)
	env.addCandidate(t, "c1", "clear", "u1", storage.StatusApproved)
	env.addCandidate(t, "c2", "clear", "u2", storage.StatusApproved)
	env.addCandidate(t, "t1", "tied", "u1", storage.StatusApproved)
	env.addCandidate(t, "t2", "tied", "u2", storage.StatusApproved)
	env.addCandidate(t, "t3", "tied", "u3", storage.StatusApproved)
	env.addCandidate(t, "n1", "empty", "u1", storage.StatusApproved)
	env.addBallots(t, "clear", "c1", "v1", "v2")
	env.addBallots(t, "clear", "c2", "v3")
	env.addBallots(t, "tied", "t1", "v1")
	env.addBallots(t, "tied", "t2", "v2")

	declare := func(t *testing.T, id string) *models.DeclareResultsResponse {
		t.Helper()
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/declare-results/"+id, nil, testutils.Bearer(officer))
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
		body := testutils.Decode[models.DeclareResultsResponse](t, res)
		return &body
	}

	t.Run("Declaration before the announcement date is refused", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/declare-results/clear", nil, testutils.Bearer(officer))
		require.Equal(t, http.StatusBadRequest, res.Code)
		assert.NotNil(t, testutils.Decode[models.ErrorResponse](t, res).AvailableAt)
		assert.False(t, env.getElection(t, "clear").ResultsAnnounced)
	})

	env.resultsDue()

	t.Run("Clear winner is announced and the election closed", func(t *testing.T) {
		body := declare(t, "clear")
		require.Len(t, body.Winners, 1)
		assert.Equal(t, "c1", body.Winners[0].CandidateID)
		assert.Equal(t, 2, body.Winners[0].VoteCount)

		stored := env.getElection(t, "clear")
		assert.True(t, stored.ResultsAnnounced)
		assert.False(t, stored.Active)
		assert.Equal(t, "c1", stored.WinnerID)
		assert.Equal(t, []string{"c1"}, stored.WinnerIDs)
		require.NotNil(t, stored.AnnouncedAt)
	})

	t.Run("Second declaration is refused", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/declare-results/clear", nil, testutils.Bearer(officer))
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, election.ErrResultsAnnounced.Error(), testutils.Decode[models.ErrorResponse](t, res).Error)
	})

	t.Run("Tie is reported and nothing changes", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/declare-results/tied", nil, testutils.Bearer(officer))
		require.Equal(t, http.StatusBadRequest, res.Code)
		body := testutils.Decode[models.ErrorResponse](t, res)
		assert.Equal(t, election.ErrTie.Error(), body.Error)
		assert.Len(t, body.Candidates, 2)
		assert.False(t, env.getElection(t, "tied").ResultsAnnounced)
	})

	t.Run("No ballots declares nobody", func(t *testing.T) {
		body := declare(t, "empty")
		assert.Empty(t, body.Winners)
		assert.Equal(t, election.ErrNoVotes.Error(), body.Message)
		assert.False(t, env.getElection(t, "empty").ResultsAnnounced)
	})

	t.Run("Unknown election is not found", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/declare-results/missing", nil, testutils.Bearer(officer))
		assert.Equal(t, http.StatusNotFound, res.Code)
	})
}

func TestResolveTie(t *testing.T) {
	env := setupTestEnv(t)
	_, officer := env.addUser(t, "officer", storage.RoleECOfficer)
	env.addElection(t, "tied", true)
	env.addElection(t, "clear", false)
	env.addCandidate(t, "t1", "tied", "u1", storage.StatusApproved)
	env.addCandidate(t, "t2", "tied", "u2", storage.StatusApproved)
	env.addCandidate(t, "t3", "tied", "u3", storage.StatusApproved)
	env.addCandidate(t, "c1", "clear", "u1", storage.StatusApproved)
	env.addBallots(t, "tied", "t1", "v1")
	env.addBallots(t, "tied", "t2", "v2")
	env.addBallots(t, "clear", "c1", "v1")
	env.resultsDue()

	resolve := func(id, candidateID string) *httptest.ResponseRecorder {
		return testutils.PerformRequest(env.router, http.MethodPost, "/api/vote/resolve-tie/"+id,
			models.ResolveTieRequest{CandidateID: candidateID}, testutils.Bearer(officer))
	}

	t.Run("Candidate outside the tie is refused", func(t *testing.T) {
		res := resolve("tied", "t3")
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, election.ErrNotAmongTied.Error(), testutils.Decode[models.ErrorResponse](t, res).Error)
	})

	t.Run("Untied election cannot be resolved", func(t *testing.T) {
		res := resolve("clear", "c1")
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, election.ErrNotTied.Error(), testutils.Decode[models.ErrorResponse](t, res).Error)
	})

	t.Run("Missing candidate is a bad request", func(t *testing.T) {
		res := resolve("tied", "")
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	t.Run("Chosen leader wins and the tied set is kept", func(t *testing.T) {
		res := resolve("tied", "t2")
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
		assert.Equal(t, "t2", testutils.Decode[models.DeclareResultsResponse](t, res).Winners[0].CandidateID)

		stored := env.getElection(t, "tied")
		assert.True(t, stored.ResultsAnnounced)
		assert.Equal(t, "t2", stored.WinnerID)
		assert.ElementsMatch(t, []string{"t1", "t2"}, stored.WinnerIDs)
	})

	t.Run("Resolved election cannot be resolved again", func(t *testing.T) {
		res := resolve("tied", "t1")
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})
}

func TestReopenVoting(t *testing.T) {
	env := setupTestEnv(t)
	_, officer := env.addUser(t, "officer", storage.RoleECOfficer)
	_, admin := env.addUser(t, "root", storage.RoleAdmin)
	env.addElection(t, "e1", true)
	env.addElection(t, "e2", false)
	env.addCandidate(t, "c1", "e1", "u1", storage.StatusApproved)
	env.addCandidate(t, "c2", "e1", "u2", storage.StatusApproved)
	env.addBallots(t, "e1", "c1", "v1")
	env.resultsDue()

	res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/declare-results/e1", nil, testutils.Bearer(officer))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.NoError(t, env.elections.Activate(context.Background(), "e2"))

	t.Run("Only admins reopen", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodPost, "/api/vote/reopen-voting/e1", nil, testutils.Bearer(officer))
		assert.Equal(t, http.StatusForbidden, res.Code)
	})

	t.Run("Reopen clears the announcement and activates exclusively", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodPost, "/api/vote/reopen-voting/e1", nil, testutils.Bearer(admin))
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())

		stored := env.getElection(t, "e1")
		assert.False(t, stored.ResultsAnnounced)
		assert.True(t, stored.Active)
		assert.Empty(t, stored.WinnerID)
		assert.Nil(t, stored.AnnouncedAt)
		assert.False(t, env.getElection(t, "e2").Active)
	})

	t.Run("Declaration is evaluated afresh after reopening", func(t *testing.T) {
		env.addBallots(t, "e1", "c2", "v2")
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/vote/declare-results/e1", nil, testutils.Bearer(officer))
		require.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, election.ErrTie.Error(), testutils.Decode[models.ErrorResponse](t, res).Error)
	})

	t.Run("Unknown election is not found", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodPost, "/api/vote/reopen-voting/missing", nil, testutils.Bearer(admin))
		assert.Equal(t, http.StatusNotFound, res.Code)
	})
}

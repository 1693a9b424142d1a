package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	testutils "github.com/alex-pricope/campus-election-system/api/controllers/testing"
	"github.com/alex-pricope/campus-election-system/api/models"
	"github.com/alex-pricope/campus-election-system/api/transport"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeration(t *testing.T) {
	env := setupTestEnv(t)
	_, officerToken := env.addUser(t, "officer", storage.RoleECOfficer)
	_, adminToken := env.addUser(t, "root", storage.RoleAdmin)
	env.addElection(t, "e1", true)
	env.addCandidate(t, "c1", "e1", "u1", storage.StatusPending)
	env.addCandidate(t, "c2", "e1", "u2", storage.StatusPending)
	env.addCandidate(t, "c3", "e1", "u3", storage.StatusPending)

	status := func(t *testing.T, id string) *storage.Candidacy {
		t.Helper()
		c, err := env.candidacies.Get(context.Background(), id)
		require.NoError(t, err)
		return c
	}

	t.Run("Approve moves a candidacy to approved", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodPost, "/api/ec/approve/c1", nil, testutils.Bearer(officerToken))
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
		assert.Equal(t, storage.StatusApproved, testutils.Decode[models.CandidacyMessageResponse](t, res).Candidate.Status)
		assert.Equal(t, storage.StatusApproved, status(t, "c1").Status)
	})

	t.Run("Reject requires a reason and stores it", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodPost, "/api/ec/reject/c2", models.RejectRequest{}, testutils.Bearer(officerToken))
		assert.Equal(t, http.StatusBadRequest, res.Code)

		res = testutils.PerformRequest(env.router, http.MethodPost, "/api/ec/reject/c2", models.RejectRequest{Reason: "Incomplete documents"}, testutils.Bearer(officerToken))
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
		c := status(t, "c2")
		assert.Equal(t, storage.StatusRejected, c.Status)
		assert.Equal(t, "Incomplete documents", c.RejectionReason)
	})

	t.Run("Moving away from rejected clears the reason", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodPut, "/api/ec/candidate/c2/status",
			models.CandidateStatusRequest{Status: storage.StatusPending}, testutils.Bearer(officerToken))
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
		c := status(t, "c2")
		assert.Equal(t, storage.StatusPending, c.Status)
		assert.Empty(t, c.RejectionReason)
	})

	t.Run("Invalid status is rejected", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodPut, "/api/ec/candidate/c2/status",
			models.CandidateStatusRequest{Status: "elected"}, testutils.Bearer(officerToken))
		assert.Equal(t, http.StatusBadRequest, res.Code)

		res = testutils.PerformRequest(env.router, http.MethodPut, "/api/ec/candidate/c2/status",
			models.CandidateStatusRequest{Status: storage.StatusRejected}, testutils.Bearer(officerToken))
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	t.Run("Unknown candidacy is not found", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodPost, "/api/ec/approve/missing", nil, testutils.Bearer(officerToken))
		assert.Equal(t, http.StatusNotFound, res.Code)

		res = testutils.PerformRequest(env.router, http.MethodGet, "/api/ec/candidate/missing", nil, testutils.Bearer(officerToken))
		assert.Equal(t, http.StatusNotFound, res.Code)
	})

	t.Run("Bulk status updates every known candidacy", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodPut, "/api/ec/candidates/bulk-status",
			models.BulkStatusRequest{CandidateIDs: []string{"c2", "c3", "missing"}, Status: storage.StatusApproved}, testutils.Bearer(officerToken))
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())

		body := testutils.Decode[models.BulkStatusResponse](t, res)
		assert.Equal(t, 2, body.UpdatedCount)
		assert.Len(t, body.Candidates, 2)
		assert.Equal(t, storage.StatusApproved, status(t, "c3").Status)

		res = testutils.PerformRequest(env.router, http.MethodPut, "/api/ec/candidates/bulk-status",
			models.BulkStatusRequest{Status: storage.StatusApproved}, testutils.Bearer(officerToken))
		assert.Equal(t, http.StatusBadRequest, res.Code)

		res = testutils.PerformRequest(env.router, http.MethodPut, "/api/ec/candidates/bulk-status",
			models.BulkStatusRequest{CandidateIDs: []string{"missing"}, Status: storage.StatusApproved}, testutils.Bearer(officerToken))
		assert.Equal(t, http.StatusNotFound, res.Code)
	})

	t.Run("Moderation is allowed after results are announced", func(t *testing.T) {
		env.resultsDue()
		_, err := env.elections.AnnounceResults(context.Background(), "e1", "c1", []string{"c1"}, env.clock.Now())
		require.NoError(t, err)

		res := testutils.PerformRequest(env.router, http.MethodPost, "/api/ec/reject/c3", models.RejectRequest{Reason: "Late withdrawal"}, testutils.Bearer(officerToken))
		assert.Equal(t, http.StatusOK, res.Code)
	})

	t.Run("Candidates are grouped by status", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/ec/candidates", nil, testutils.Bearer(officerToken))
		require.Equal(t, http.StatusOK, res.Code)
		body := testutils.Decode[models.CandidatesByStatusResponse](t, res)
		assert.Len(t, body.Approved, 2)
		assert.Len(t, body.Rejected, 1)
		assert.Empty(t, body.Pending)
	})

	t.Run("Only EC officers moderate", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodPost, "/api/ec/approve/c3", nil, testutils.Bearer(adminToken))
		assert.Equal(t, http.StatusForbidden, res.Code)
	})
}

// unreachableElections fails every election lookup.
type unreachableElections struct {
	storage.ElectionStorage
}

func (unreachableElections) Get(context.Context, string) (*storage.Election, error) {
	return nil, errors.New("connection reset by peer")
}

func TestCandidateElectionLookup(t *testing.T) {
	env := setupTestEnv(t)
	_, officerToken := env.addUser(t, "officer", storage.RoleECOfficer)
	env.addElection(t, "e1", true)
	env.addCandidate(t, "c1", "e1", "u1", storage.StatusPending)
	env.addCandidate(t, "orphan", "gone", "u2", storage.StatusPending)

	t.Run("Missing election leaves the reference empty", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/ec/candidate/orphan", nil, testutils.Bearer(officerToken))
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
		assert.Nil(t, testutils.Decode[models.CandidacyResponse](t, res).Election)

		res = testutils.PerformRequest(env.router, http.MethodGet, "/api/ec/candidate/c1", nil, testutils.Bearer(officerToken))
		require.Equal(t, http.StatusOK, res.Code)
		ref := testutils.Decode[models.CandidacyResponse](t, res).Election
		require.NotNil(t, ref)
		assert.Equal(t, "e1", ref.ID)
	})

	t.Run("Election storage failures are reported", func(t *testing.T) {
		r := transport.NewRouter(gin.TestMode)
		NewECController(env.users, unreachableElections{env.elections}, env.candidacies, env.tokens, env.clock).RegisterRoutes(r)

		res := testutils.PerformRequest(r, http.MethodGet, "/api/ec/candidate/c1", nil, testutils.Bearer(officerToken))
		assert.Equal(t, http.StatusInternalServerError, res.Code)

		res = testutils.PerformRequest(r, http.MethodPost, "/api/ec/approve/c1", nil, testutils.Bearer(officerToken))
		assert.Equal(t, http.StatusInternalServerError, res.Code)
		assert.Equal(t, "Failed to update candidate status", testutils.Decode[models.ErrorResponse](t, res).Error)
	})
}

func TestStudentsAndStats(t *testing.T) {
	env := setupTestEnv(t)
	_, officerToken := env.addUser(t, "officer", storage.RoleECOfficer)
	env.addUser(t, "root", storage.RoleAdmin)
	env.addUser(t, "s1", storage.RoleUser)
	env.addUser(t, "s2", storage.RoleUser)
	env.addElection(t, "e1", true)
	env.addElection(t, "e2", false)
	env.addCandidate(t, "c1", "e1", "s1", storage.StatusPending)
	env.addCandidate(t, "c2", "e1", "s2", storage.StatusApproved)
	env.addBallots(t, "e1", "c2", "s1", "s2")

	t.Run("Students lists only the user role", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/ec/students", nil, testutils.Bearer(officerToken))
		require.Equal(t, http.StatusOK, res.Code)
		assert.Len(t, testutils.Decode[[]models.UserResponse](t, res), 2)
	})

	t.Run("EC stats count accounts, elections and candidacies", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodGet, "/api/ec/stats", nil, testutils.Bearer(officerToken))
		require.Equal(t, http.StatusOK, res.Code)
		body := testutils.Decode[models.ECStatsResponse](t, res)
		assert.Equal(t, models.ECStatsResponse{
			Students:        2,
			ECOfficers:      1,
			TotalElections:  2,
			ActiveElections: 1,
			Candidates:      2,
			Pending:         1,
		}, body)
	})

	t.Run("Removing a student", func(t *testing.T) {
		res := testutils.PerformRequest(env.router, http.MethodDelete, "/api/ec/students/officer", nil, testutils.Bearer(officerToken))
		assert.Equal(t, http.StatusNotFound, res.Code)

		res = testutils.PerformRequest(env.router, http.MethodDelete, "/api/ec/students/s1", nil, testutils.Bearer(officerToken))
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
		assert.Equal(t, "s1", testutils.Decode[models.StudentRemovedResponse](t, res).Student.Username)

		_, err := env.users.Get(context.Background(), "s1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/alex-pricope/campus-election-system/api/models"
	"github.com/alex-pricope/campus-election-system/api/transport"
	"github.com/alex-pricope/campus-election-system/auth"
	"github.com/alex-pricope/campus-election-system/election"
	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/gin-gonic/gin"
)

// ECController holds the election commission's moderation and roster routes.
type ECController struct {
	usersStorage       storage.UserStorage
	electionsStorage   storage.ElectionStorage
	candidaciesStorage storage.CandidacyStorage
	tokens             *auth.TokenManager
	clock              election.Clock
}

func NewECController(users storage.UserStorage, elections storage.ElectionStorage, candidacies storage.CandidacyStorage, tokens *auth.TokenManager, clock election.Clock) *ECController {
	return &ECController{
		usersStorage:       users,
		electionsStorage:   elections,
		candidaciesStorage: candidacies,
		tokens:             tokens,
		clock:              clock,
	}
}

func (c *ECController) RegisterRoutes(engine *gin.Engine) {
	group := engine.Group("/api/ec", transport.AuthMiddleware(c.tokens), transport.RequireRole(storage.RoleECOfficer))

	group.GET("/candidates", c.listCandidates)
	group.GET("/candidate/:id", c.getCandidate)
	group.POST("/approve/:id", c.approve)
	group.POST("/reject/:id", c.reject)
	group.PUT("/candidate/:id/status", c.setStatus)
	group.PUT("/candidates/bulk-status", c.bulkStatus)
	group.DELETE("/election/:electionId", c.deleteElection)
	group.GET("/students", c.listStudents)
	group.DELETE("/students/:id", c.removeStudent)
	group.GET("/stats", c.stats)
}

// listCandidates godoc
// @Summary List candidacies grouped by status
// @Tags ec
// @Security BearerToken
// @Produce json
// @Param electionId query string false "Only candidacies of this election"
// @Success 200 {object} models.CandidatesByStatusResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/ec/candidates [get]
func (c *ECController) listCandidates(g *gin.Context) {
	ctx := g.Request.Context()
	var (
		list []*storage.Candidacy
		err  error
	)
	if electionID := g.Query("electionId"); electionID != "" {
		list, err = c.candidaciesStorage.GetByElection(ctx, electionID)
	} else {
		list, err = c.candidaciesStorage.GetAll(ctx)
	}
	if err != nil {
		writeError(g, err, "", "Failed to fetch candidates")
		return
	}
	elections, err := electionIndex(ctx, c.electionsStorage)
	if err != nil {
		writeError(g, err, "", "Failed to fetch candidates")
		return
	}

	resp := &models.CandidatesByStatusResponse{
		Pending:  []models.CandidacyResponse{},
		Approved: []models.CandidacyResponse{},
		Rejected: []models.CandidacyResponse{},
	}
	for _, candidacy := range list {
		item := models.TransformCandidacy(candidacy, elections[candidacy.ElectionID])
		switch candidacy.Status {
		case storage.StatusApproved:
			resp.Approved = append(resp.Approved, item)
		case storage.StatusRejected:
			resp.Rejected = append(resp.Rejected, item)
		default:
			resp.Pending = append(resp.Pending, item)
		}
	}
	g.JSON(http.StatusOK, resp)
}

// getCandidate godoc
// @Summary Get a candidacy
// @Tags ec
// @Security BearerToken
// @Produce json
// @Param id path string true "Candidacy ID"
// @Success 200 {object} models.CandidacyResponse
// @Failure 404 {object} models.ErrorResponse "Candidate not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/ec/candidate/{id} [get]
func (c *ECController) getCandidate(g *gin.Context) {
	ctx := g.Request.Context()
	candidacy, err := c.candidaciesStorage.Get(ctx, g.Param("id"))
	if err != nil {
		writeError(g, err, "Candidate not found", "Failed to fetch candidate")
		return
	}
	e, err := electionOf(ctx, c.electionsStorage, candidacy)
	if err != nil {
		writeError(g, err, "", "Failed to fetch candidate")
		return
	}
	g.JSON(http.StatusOK, models.TransformCandidacy(candidacy, e))
}

// approve godoc
// @Summary Approve a candidacy
// @Tags ec
// @Security BearerToken
// @Produce json
// @Param id path string true "Candidacy ID"
// @Success 200 {object} models.CandidacyMessageResponse
// @Failure 404 {object} models.ErrorResponse "Candidate not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/ec/approve/{id} [post]
func (c *ECController) approve(g *gin.Context) {
	c.moderate(g, g.Param("id"), storage.StatusApproved, "", "Candidate approved successfully")
}

// reject godoc
// @Summary Reject a candidacy
// @Tags ec
// @Security BearerToken
// @Accept json
// @Produce json
// @Param id path string true "Candidacy ID"
// @Param reason body models.RejectRequest true "Rejection reason"
// @Success 200 {object} models.CandidacyMessageResponse
// @Failure 400 {object} models.ErrorResponse "Missing reason"
// @Failure 404 {object} models.ErrorResponse "Candidate not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/ec/reject/{id} [post]
func (c *ECController) reject(g *gin.Context) {
	var req models.RejectRequest
	if err := g.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "Rejection reason is required"})
		return
	}
	c.moderate(g, g.Param("id"), storage.StatusRejected, strings.TrimSpace(req.Reason), "Candidate rejected successfully")
}

// setStatus godoc
// @Summary Set the status of a candidacy
// @Description A reason is required when rejecting
// @Tags ec
// @Security BearerToken
// @Accept json
// @Produce json
// @Param id path string true "Candidacy ID"
// @Param status body models.CandidateStatusRequest true "New status"
// @Success 200 {object} models.CandidacyMessageResponse
// @Failure 400 {object} models.ErrorResponse "Invalid status or missing reason"
// @Failure 404 {object} models.ErrorResponse "Candidate not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/ec/candidate/{id}/status [put]
func (c *ECController) setStatus(g *gin.Context) {
	var req models.CandidateStatusRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "invalid request format"})
		return
	}
	reason, msg := checkStatusChange(req.Status, req.Reason)
	if msg != "" {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: msg})
		return
	}
	c.moderate(g, g.Param("id"), req.Status, reason, "Candidate status updated successfully")
}

// bulkStatus godoc
// @Summary Set the status of several candidacies
// @Description Unknown ids are skipped
// @Tags ec
// @Security BearerToken
// @Accept json
// @Produce json
// @Param status body models.BulkStatusRequest true "Candidacies and new status"
// @Success 200 {object} models.BulkStatusResponse
// @Failure 400 {object} models.ErrorResponse "Invalid status, ids or reason"
// @Failure 404 {object} models.ErrorResponse "None of the candidates exist"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/ec/candidates/bulk-status [put]
func (c *ECController) bulkStatus(g *gin.Context) {
	var req models.BulkStatusRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "invalid request format"})
		return
	}
	if len(req.CandidateIDs) == 0 {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "Candidate IDs array is required"})
		return
	}
	reason, msg := checkStatusChange(req.Status, req.Reason)
	if msg != "" {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: msg})
		return
	}

	ctx := g.Request.Context()
	n, err := c.candidaciesStorage.SetStatus(ctx, req.CandidateIDs, req.Status, reason, c.clock.Now())
	if err != nil {
		writeError(g, err, "", "Failed to update candidate statuses")
		return
	}
	if n == 0 {
		g.JSON(http.StatusNotFound, &models.ErrorResponse{Error: "No candidates found"})
		return
	}

	elections, err := electionIndex(ctx, c.electionsStorage)
	if err != nil {
		writeError(g, err, "", "Failed to update candidate statuses")
		return
	}
	updated := make([]*storage.Candidacy, 0, n)
	for _, id := range req.CandidateIDs {
		candidacy, err := c.candidaciesStorage.Get(ctx, id)
		if err != nil {
			continue
		}
		updated = append(updated, candidacy)
	}

	logging.Log.Infof("CANDIDACY: %s set %d candidacies to %s", transport.UserID(g), n, req.Status)
	g.JSON(http.StatusOK, &models.BulkStatusResponse{
		Message:      "Candidate statuses updated successfully",
		UpdatedCount: n,
		Candidates:   models.TransformCandidacies(updated, elections),
	})
}

// checkStatusChange returns the trimmed reason, or a message describing why the
// change is invalid.
func checkStatusChange(status storage.CandidacyStatus, reason string) (string, string) {
	if !status.Valid() {
		return "", "Invalid status. Must be pending, approved, or rejected"
	}
	reason = strings.TrimSpace(reason)
	if status == storage.StatusRejected && reason == "" {
		return "", "Rejection reason is required"
	}
	return reason, ""
}

func (c *ECController) moderate(g *gin.Context, id string, status storage.CandidacyStatus, reason, message string) {
	ctx := g.Request.Context()
	n, err := c.candidaciesStorage.SetStatus(ctx, []string{id}, status, reason, c.clock.Now())
	if err != nil {
		writeError(g, err, "Candidate not found", "Failed to update candidate status")
		return
	}
	if n == 0 {
		g.JSON(http.StatusNotFound, &models.ErrorResponse{Error: "Candidate not found"})
		return
	}

	candidacy, err := c.candidaciesStorage.Get(ctx, id)
	if err != nil {
		writeError(g, err, "Candidate not found", "Failed to update candidate status")
		return
	}
	e, err := electionOf(ctx, c.electionsStorage, candidacy)
	if err != nil {
		writeError(g, err, "", "Failed to update candidate status")
		return
	}
	logging.Log.Infof("CANDIDACY: %s set candidacy %s to %s", transport.UserID(g), id, status)
	g.JSON(http.StatusOK, &models.CandidacyMessageResponse{
		Message:   message,
		Candidate: models.TransformCandidacy(candidacy, e),
	})
}

// deleteElection godoc
// @Summary Delete an election with its candidacies
// @Tags ec
// @Security BearerToken
// @Produce json
// @Param electionId path string true "Election ID"
// @Success 200 {object} models.MessageResponse
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/ec/election/{electionId} [delete]
func (c *ECController) deleteElection(g *gin.Context) {
	if err := deleteElectionCascade(g.Request.Context(), c.electionsStorage, c.candidaciesStorage, g.Param("electionId")); err != nil {
		writeError(g, err, "Election not found", "Failed to delete election")
		return
	}
	g.JSON(http.StatusOK, &models.MessageResponse{Message: "Election and associated candidates deleted successfully"})
}

// listStudents godoc
// @Summary List registered students
// @Tags ec
// @Security BearerToken
// @Produce json
// @Success 200 {array} models.UserResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/ec/students [get]
func (c *ECController) listStudents(g *gin.Context) {
	students, err := c.usersStorage.GetByRole(g.Request.Context(), storage.RoleUser)
	if err != nil {
		writeError(g, err, "", "Failed to fetch students")
		return
	}
	out := make([]models.UserResponse, 0, len(students))
	for _, s := range students {
		out = append(out, models.TransformUser(s))
	}
	g.JSON(http.StatusOK, out)
}

// removeStudent godoc
// @Summary Remove a student account
// @Description Only accounts with the user role can be removed here
// @Tags ec
// @Security BearerToken
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.StudentRemovedResponse
// @Failure 404 {object} models.ErrorResponse "Student not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/ec/students/{id} [delete]
func (c *ECController) removeStudent(g *gin.Context) {
	ctx := g.Request.Context()
	student, err := c.usersStorage.Get(ctx, g.Param("id"))
	if err == nil && student.Role != storage.RoleUser {
		err = storage.ErrNotFound
	}
	if err == nil {
		err = c.usersStorage.Delete(ctx, student.ID)
	}
	if err != nil {
		writeError(g, err, "Student not found", "Failed to remove student")
		return
	}
	logging.Log.Infof("USER: %s removed student %s", transport.UserID(g), student.Username)
	g.JSON(http.StatusOK, &models.StudentRemovedResponse{
		Message: "Student removed successfully",
		Student: models.TransformUser(student),
	})
}

// stats godoc
// @Summary Commission dashboard counters
// @Tags ec
// @Security BearerToken
// @Produce json
// @Success 200 {object} models.ECStatsResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/ec/stats [get]
func (c *ECController) stats(g *gin.Context) {
	resp, err := c.collectStats(g.Request.Context())
	if err != nil {
		writeError(g, err, "", "Failed to fetch stats")
		return
	}
	g.JSON(http.StatusOK, resp)
}

func (c *ECController) collectStats(ctx context.Context) (*models.ECStatsResponse, error) {
	students, err := c.usersStorage.CountByRole(ctx, storage.RoleUser)
	if err != nil {
		return nil, err
	}
	officers, err := c.usersStorage.CountByRole(ctx, storage.RoleECOfficer)
	if err != nil {
		return nil, err
	}
	elections, err := c.electionsStorage.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	candidacies, err := c.candidaciesStorage.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	resp := &models.ECStatsResponse{
		Students:       students,
		ECOfficers:     officers,
		TotalElections: len(elections),
		Candidates:     len(candidacies),
	}
	for _, e := range elections {
		if e.Active {
			resp.ActiveElections++
		}
	}
	for _, candidacy := range candidacies {
		if candidacy.Status == storage.StatusPending {
			resp.Pending++
		}
	}
	return resp, nil
}

package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/alex-pricope/campus-election-system/api/models"
	"github.com/alex-pricope/campus-election-system/api/transport"
	"github.com/alex-pricope/campus-election-system/auth"
	"github.com/alex-pricope/campus-election-system/election"
	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/gin-gonic/gin"
)

// ApplicationController serves the student side of candidacies.
type ApplicationController struct {
	electionsStorage   storage.ElectionStorage
	candidaciesStorage storage.CandidacyStorage
	tokens             *auth.TokenManager
	clock              election.Clock
}

func NewApplicationController(elections storage.ElectionStorage, candidacies storage.CandidacyStorage, tokens *auth.TokenManager, clock election.Clock) *ApplicationController {
	return &ApplicationController{
		electionsStorage:   elections,
		candidaciesStorage: candidacies,
		tokens:             tokens,
		clock:              clock,
	}
}

func (c *ApplicationController) RegisterRoutes(engine *gin.Engine) {
	group := engine.Group("/api/user")

	group.GET("/active-election", c.activeElection)
	group.GET("/timeline", c.timeline)

	students := group.Group("", transport.AuthMiddleware(c.tokens), transport.RequireRole(storage.RoleUser))
	students.POST("/apply-candidate", c.apply)
	students.GET("/my-applications", c.myApplications)
	students.GET("/application/:id", c.get)
	students.PUT("/application/:id", c.update)
	students.DELETE("/application/:id", c.delete)
}

// activeElection godoc
// @Summary Get the active election, or null
// @Tags user
// @Produce json
// @Success 200 {object} models.ElectionResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/user/active-election [get]
func (c *ApplicationController) activeElection(g *gin.Context) {
	e, err := c.electionsStorage.GetActive(g.Request.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			g.JSON(http.StatusOK, nil)
			return
		}
		writeError(g, err, "", "Failed to fetch active election")
		return
	}
	g.JSON(http.StatusOK, models.TransformElection(e))
}

// timeline godoc
// @Summary Get the timeline of the most recent election
// @Tags user
// @Produce json
// @Success 200 {object} models.ElectionResponse
// @Failure 404 {object} models.ErrorResponse "No elections"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/user/timeline [get]
func (c *ApplicationController) timeline(g *gin.Context) {
	e, err := latestElection(g.Request.Context(), c.electionsStorage)
	if err != nil {
		writeError(g, err, "No election found", "Failed to fetch timeline")
		return
	}
	g.JSON(http.StatusOK, models.TransformElection(e))
}

// apply godoc
// @Summary Apply as a candidate
// @Description One application per election; student ID and email must be unused
// @Tags user
// @Security BearerToken
// @Accept json
// @Produce json
// @Param application body models.ApplyCandidateRequest true "Application"
// @Success 201 {object} models.ApplyCandidateResponse
// @Failure 400 {object} models.ErrorResponse "Invalid or duplicate application"
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/user/apply-candidate [post]
func (c *ApplicationController) apply(g *gin.Context) {
	var req models.ApplyCandidateRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "invalid request format"})
		return
	}

	ctx := g.Request.Context()
	userID := transport.UserID(g)
	now := c.clock.Now()
	candidacy := &storage.Candidacy{
		UserID:     userID,
		ElectionID: req.ElectionID,
		Name:       req.Name,
		StudentID:  req.StudentID,
		Email:      req.Email,
		Phone:      req.Phone,
		Statement:  req.Statement,
		Position:   req.Position,
		Status:     storage.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := election.ValidateApplication(candidacy); err != nil {
		writeError(g, err, "", "Failed to submit candidate application")
		return
	}
	if _, err := c.electionsStorage.Get(ctx, req.ElectionID); err != nil {
		writeError(g, err, "Election not found", "Failed to submit candidate application")
		return
	}

	// Advisory checks for a clear message; Create enforces both rules.
	exists, err := c.candidaciesStorage.ExistsForUser(ctx, userID, req.ElectionID)
	if err != nil {
		writeError(g, err, "", "Failed to submit candidate application")
		return
	}
	if exists {
		writeError(g, storage.ErrDuplicateApplication, "", "")
		return
	}
	taken, err := c.candidaciesStorage.IdentityTaken(ctx, req.StudentID, req.Email, "")
	if err != nil {
		writeError(g, err, "", "Failed to submit candidate application")
		return
	}
	if taken {
		writeError(g, storage.ErrDuplicateIdentity, "", "")
		return
	}

	id, err := newID()
	if err != nil {
		writeError(g, err, "", "Failed to submit candidate application")
		return
	}
	candidacy.ID = id
	if err := c.candidaciesStorage.Create(ctx, candidacy); err != nil {
		writeError(g, err, "", "Failed to submit candidate application")
		return
	}

	g.JSON(http.StatusCreated, &models.ApplyCandidateResponse{
		Message: "Candidate application submitted successfully",
		Candidate: models.ApplicationSummary{
			ID:       candidacy.ID,
			Name:     candidacy.Name,
			Position: candidacy.Position,
			Status:   candidacy.Status,
		},
	})
}

// myApplications godoc
// @Summary List the caller's applications
// @Tags user
// @Security BearerToken
// @Produce json
// @Success 200 {array} models.CandidacyResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/user/my-applications [get]
func (c *ApplicationController) myApplications(g *gin.Context) {
	ctx := g.Request.Context()
	list, err := c.candidaciesStorage.GetByUser(ctx, transport.UserID(g))
	if err != nil {
		writeError(g, err, "", "Failed to fetch candidate applications")
		return
	}
	elections, err := electionIndex(ctx, c.electionsStorage)
	if err != nil {
		writeError(g, err, "", "Failed to fetch candidate applications")
		return
	}
	g.JSON(http.StatusOK, models.TransformCandidacies(list, elections))
}

// get godoc
// @Summary Get one of the caller's applications
// @Tags user
// @Security BearerToken
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} models.CandidacyResponse
// @Failure 404 {object} models.ErrorResponse "Application not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/user/application/{id} [get]
func (c *ApplicationController) get(g *gin.Context) {
	ctx := g.Request.Context()
	candidacy, err := c.owned(ctx, g.Param("id"), transport.UserID(g), false)
	if err != nil {
		writeError(g, err, "Candidate application not found", "Failed to fetch candidate application")
		return
	}
	e, err := electionOf(ctx, c.electionsStorage, candidacy)
	if err != nil {
		writeError(g, err, "", "Failed to fetch candidate application")
		return
	}
	g.JSON(http.StatusOK, models.TransformCandidacy(candidacy, e))
}

// update godoc
// @Summary Edit a pending application
// @Description Only fields present in the body change
// @Tags user
// @Security BearerToken
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param application body models.UpdateApplicationRequest true "Changes"
// @Success 200 {object} models.CandidacyMessageResponse
// @Failure 400 {object} models.ErrorResponse "Invalid statement or identity taken"
// @Failure 404 {object} models.ErrorResponse "Not found or no longer pending"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/user/application/{id} [put]
func (c *ApplicationController) update(g *gin.Context) {
	var req models.UpdateApplicationRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "invalid request format"})
		return
	}

	ctx := g.Request.Context()
	previous, err := c.owned(ctx, g.Param("id"), transport.UserID(g), true)
	if err != nil {
		writeError(g, err, "Candidate application not found or cannot be modified", "Failed to update candidate application")
		return
	}
	if req.Statement != "" {
		if err := election.ValidateStatement(req.Statement); err != nil {
			writeError(g, err, "", "")
			return
		}
	}

	updated := *previous
	req.Apply(&updated)
	updated.UpdatedAt = c.clock.Now()
	if updated.StudentID != previous.StudentID || updated.Email != previous.Email {
		taken, err := c.candidaciesStorage.IdentityTaken(ctx, updated.StudentID, updated.Email, updated.ID)
		if err != nil {
			writeError(g, err, "", "Failed to update candidate application")
			return
		}
		if taken {
			writeError(g, storage.ErrDuplicateIdentity, "", "")
			return
		}
	}
	if err := c.candidaciesStorage.Update(ctx, previous, &updated); err != nil {
		writeError(g, err, "Candidate application not found or cannot be modified", "Failed to update candidate application")
		return
	}
	e, err := electionOf(ctx, c.electionsStorage, &updated)
	if err != nil {
		writeError(g, err, "", "Failed to update candidate application")
		return
	}

	g.JSON(http.StatusOK, &models.CandidacyMessageResponse{
		Message:   "Candidate application updated successfully",
		Candidate: models.TransformCandidacy(&updated, e),
	})
}

// delete godoc
// @Summary Withdraw a pending application
// @Tags user
// @Security BearerToken
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} models.MessageResponse
// @Failure 404 {object} models.ErrorResponse "Not found or no longer pending"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/user/application/{id} [delete]
func (c *ApplicationController) delete(g *gin.Context) {
	ctx := g.Request.Context()
	candidacy, err := c.owned(ctx, g.Param("id"), transport.UserID(g), true)
	if err == nil {
		err = c.candidaciesStorage.Delete(ctx, candidacy)
	}
	if err != nil {
		writeError(g, err, "Candidate application not found or cannot be deleted", "Failed to delete candidate application")
		return
	}
	logging.Log.Infof("CANDIDACY: user %s withdrew application %s", candidacy.UserID, candidacy.ID)
	g.JSON(http.StatusOK, &models.MessageResponse{Message: "Candidate application deleted successfully"})
}

// owned loads a candidacy of userID. Someone else's candidacy, or a reviewed
// one when pendingOnly is set, reads as not found.
func (c *ApplicationController) owned(ctx context.Context, id, userID string, pendingOnly bool) (*storage.Candidacy, error) {
	candidacy, err := c.candidaciesStorage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if candidacy.UserID != userID || (pendingOnly && candidacy.Status != storage.StatusPending) {
		return nil, storage.ErrNotFound
	}
	return candidacy, nil
}

// electionOf loads the election a candidacy belongs to. A missing election is
// not an error; the response then carries no election reference.
func electionOf(ctx context.Context, elections storage.ElectionStorage, candidacy *storage.Candidacy) (*storage.Election, error) {
	e, err := elections.Get(ctx, candidacy.ElectionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return e, err
}

func electionIndex(ctx context.Context, elections storage.ElectionStorage) (map[string]*storage.Election, error) {
	all, err := elections.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]*storage.Election, len(all))
	for _, e := range all {
		index[e.ID] = e
	}
	return index, nil
}

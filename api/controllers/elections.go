package controllers

import (
	"context"
	"errors"
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

type ElectionController struct {
	electionsStorage   storage.ElectionStorage
	candidaciesStorage storage.CandidacyStorage
	tokens             *auth.TokenManager
	clock              election.Clock
}

func NewElectionController(elections storage.ElectionStorage, candidacies storage.CandidacyStorage, tokens *auth.TokenManager, clock election.Clock) *ElectionController {
	return &ElectionController{
		electionsStorage:   elections,
		candidaciesStorage: candidacies,
		tokens:             tokens,
		clock:              clock,
	}
}

func (c *ElectionController) RegisterRoutes(engine *gin.Engine) {
	group := engine.Group("/api/elections")

	group.GET("/active", c.getActive)
	group.GET("/timeline", c.getTimeline)
	group.GET("/all", c.getAll)
	group.GET("/:id", c.get)

	authn := transport.AuthMiddleware(c.tokens)
	group.POST("/create", authn, transport.RequireRole(storage.RoleECOfficer), c.create)
	group.PUT("/:id/status", authn, transport.RequireRole(storage.RoleAdmin, storage.RoleECOfficer), c.updateStatus)
	group.DELETE("/:id", authn, transport.RequireRole(storage.RoleAdmin), c.delete)
}

// getActive godoc
// @Summary Get the active election
// @Tags elections
// @Produce json
// @Success 200 {object} models.ElectionResponse
// @Failure 404 {object} models.ErrorResponse "No active election"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/elections/active [get]
func (c *ElectionController) getActive(g *gin.Context) {
	e, err := c.electionsStorage.GetActive(g.Request.Context())
	if err != nil {
		writeError(g, err, "No active election found", "Failed to fetch active election")
		return
	}
	g.JSON(http.StatusOK, models.TransformElection(e))
}

// getTimeline godoc
// @Summary Get the timeline of the most recent election
// @Description Returns the election with the latest nomination start date
// @Tags elections
// @Produce json
// @Success 200 {object} models.ElectionResponse
// @Failure 404 {object} models.ErrorResponse "No elections"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/elections/timeline [get]
func (c *ElectionController) getTimeline(g *gin.Context) {
	e, err := latestElection(g.Request.Context(), c.electionsStorage)
	if err != nil {
		writeError(g, err, "No election found", "Failed to fetch timeline")
		return
	}
	g.JSON(http.StatusOK, models.TransformElection(e))
}

func latestElection(ctx context.Context, elections storage.ElectionStorage) (*storage.Election, error) {
	all, err := elections.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var latest *storage.Election
	for _, e := range all {
		if latest == nil || e.NominationStart.After(latest.NominationStart) {
			latest = e
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

// getAll godoc
// @Summary List all elections
// @Tags elections
// @Produce json
// @Success 200 {array} models.ElectionResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/elections/all [get]
func (c *ElectionController) getAll(g *gin.Context) {
	all, err := c.electionsStorage.GetAll(g.Request.Context())
	if err != nil {
		writeError(g, err, "", "Failed to fetch elections")
		return
	}
	g.JSON(http.StatusOK, models.TransformElections(all))
}

// get godoc
// @Summary Get an election
// @Tags elections
// @Produce json
// @Param id path string true "Election ID"
// @Success 200 {object} models.ElectionResponse
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/elections/{id} [get]
func (c *ElectionController) get(g *gin.Context) {
	e, err := c.electionsStorage.Get(g.Request.Context(), g.Param("id"))
	if err != nil {
		writeError(g, err, "Election not found", "Failed to fetch election")
		return
	}
	g.JSON(http.StatusOK, models.TransformElection(e))
}

// create godoc
// @Summary Create an election
// @Description Validates the schedule and stores the election inactive
// @Tags elections
// @Security BearerToken
// @Accept json
// @Produce json
// @Param election body models.CreateElectionRequest true "Election"
// @Success 201 {object} models.ElectionMessageResponse
// @Failure 400 {object} models.ErrorResponse "Missing fields or bad schedule"
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/elections/create [post]
func (c *ElectionController) create(g *gin.Context) {
	var req models.CreateElectionRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "invalid request format"})
		return
	}

	e := req.ToElection()
	e.Title = strings.TrimSpace(e.Title)
	e.Post = strings.TrimSpace(e.Post)
	now := c.clock.Now()
	if err := election.ValidateNew(e, now); err != nil {
		logging.Log.Warnf("ELECTION: rejected schedule for %q: %v", e.Title, err)
		writeError(g, err, "", "Failed to create election")
		return
	}

	id, err := newID()
	if err != nil {
		writeError(g, err, "", "Failed to create election")
		return
	}
	e.ID = id
	e.Active = false
	e.CreatedAt = now
	if err := c.electionsStorage.Create(g.Request.Context(), e); err != nil {
		writeError(g, err, "", "Failed to create election")
		return
	}

	g.JSON(http.StatusCreated, &models.ElectionMessageResponse{
		Message:  "Election created successfully",
		Election: models.TransformElection(e),
	})
}

// updateStatus godoc
// @Summary Activate or deactivate an election
// @Description Activating an election deactivates every other election
// @Tags elections
// @Security BearerToken
// @Accept json
// @Produce json
// @Param id path string true "Election ID"
// @Param status body models.UpdateElectionStatusRequest true "New status"
// @Success 200 {object} models.ElectionMessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Failure 409 {object} models.ErrorResponse "Concurrent activation"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/elections/{id}/status [put]
func (c *ElectionController) updateStatus(g *gin.Context) {
	var req models.UpdateElectionStatusRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "active flag is required"})
		return
	}

	ctx := g.Request.Context()
	id := g.Param("id")
	var err error
	if *req.Active {
		err = c.electionsStorage.Activate(ctx, id)
	} else {
		err = c.electionsStorage.Deactivate(ctx, id)
	}
	if err != nil {
		writeError(g, err, "Election not found", "Failed to update election status")
		return
	}

	e, err := c.electionsStorage.Get(ctx, id)
	if err != nil {
		writeError(g, err, "Election not found", "Failed to update election status")
		return
	}
	logging.Log.Infof("ELECTION: %s set election %s active=%t", transport.UserID(g), id, *req.Active)
	g.JSON(http.StatusOK, &models.ElectionMessageResponse{
		Message:  "Election status updated successfully",
		Election: models.TransformElection(e),
	})
}

// delete godoc
// @Summary Delete an election
// @Description Deletes the election's candidacies, then the election
// @Tags elections
// @Security BearerToken
// @Produce json
// @Param id path string true "Election ID"
// @Success 200 {object} models.MessageResponse
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/elections/{id} [delete]
func (c *ElectionController) delete(g *gin.Context) {
	if err := deleteElectionCascade(g.Request.Context(), c.electionsStorage, c.candidaciesStorage, g.Param("id")); err != nil {
		writeError(g, err, "Election not found", "Failed to delete election")
		return
	}
	g.JSON(http.StatusOK, &models.MessageResponse{Message: "Election deleted successfully"})
}

// deleteElectionCascade removes the candidacies of an election, then the
// election. The order must not change.
func deleteElectionCascade(ctx context.Context, elections storage.ElectionStorage, candidacies storage.CandidacyStorage, id string) error {
	if _, err := elections.Get(ctx, id); err != nil {
		return err
	}
	n, err := candidacies.DeleteByElection(ctx, id)
	if err != nil {
		return err
	}
	if err := elections.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	logging.Log.Infof("ELECTION: deleted election %s with %d candidacies", id, n)
	return nil
}

package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alex-pricope/campus-election-system/api/models"
	"github.com/alex-pricope/campus-election-system/api/transport"
	"github.com/alex-pricope/campus-election-system/auth"
	"github.com/alex-pricope/campus-election-system/election"
	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/gin-gonic/gin"
)

// ResultsController serves result views and the announcement lifecycle.
type ResultsController struct {
	usersStorage       storage.UserStorage
	electionsStorage   storage.ElectionStorage
	candidaciesStorage storage.CandidacyStorage
	ballotsStorage     storage.BallotStorage
	tokens             *auth.TokenManager
	clock              election.Clock
}

func NewResultsController(users storage.UserStorage, elections storage.ElectionStorage, candidacies storage.CandidacyStorage, ballots storage.BallotStorage, tokens *auth.TokenManager, clock election.Clock) *ResultsController {
	return &ResultsController{
		usersStorage:       users,
		electionsStorage:   elections,
		candidaciesStorage: candidacies,
		ballotsStorage:     ballots,
		tokens:             tokens,
		clock:              clock,
	}
}

func (c *ResultsController) RegisterRoutes(engine *gin.Engine) {
	group := engine.Group("/api/vote")

	group.GET("/results/active", c.activeResults)
	group.GET("/results/all", c.allResults)
	group.GET("/results/:electionId", c.results)

	authn := transport.AuthMiddleware(c.tokens)
	officials := transport.RequireRole(storage.RoleECOfficer, storage.RoleAdmin)
	group.GET("/winner/:electionId", authn, officials, c.winner)
	group.GET("/declare-results/:electionId", authn, officials, c.declare)
	group.POST("/resolve-tie/:electionId", authn, officials, c.resolveTie)
	group.POST("/reopen-voting/:electionId", authn, transport.RequireRole(storage.RoleAdmin), c.reopen)
}

// results godoc
// @Summary Results of an election
// @Description Available once the result announcement date has passed
// @Tags results
// @Produce json
// @Param electionId path string true "Election ID"
// @Success 200 {object} models.ResultsResponse
// @Failure 400 {object} models.ErrorResponse "Results not yet available"
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/results/{electionId} [get]
func (c *ResultsController) results(g *gin.Context) {
	e, err := c.electionsStorage.Get(g.Request.Context(), g.Param("electionId"))
	if err != nil {
		writeError(g, err, "Election not found", "Failed to fetch election results")
		return
	}
	c.writeResults(g, e)
}

// activeResults godoc
// @Summary Results of the active election
// @Tags results
// @Produce json
// @Success 200 {object} models.ResultsResponse
// @Failure 400 {object} models.ErrorResponse "Results not yet available"
// @Failure 404 {object} models.ErrorResponse "No active election"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/results/active [get]
func (c *ResultsController) activeResults(g *gin.Context) {
	e, err := c.electionsStorage.GetActive(g.Request.Context())
	if err != nil {
		writeError(g, err, "No active election found", "Failed to fetch election results")
		return
	}
	c.writeResults(g, e)
}

func (c *ResultsController) writeResults(g *gin.Context, e *storage.Election) {
	ctx := g.Request.Context()
	now := c.clock.Now()
	if err := election.ResultsAvailable(e, now); err != nil {
		notAvailable(g, e)
		return
	}

	t, err := tallyElection(ctx, c.candidaciesStorage, c.ballotsStorage, e.ID)
	if err != nil {
		writeError(g, err, "", "Failed to fetch election results")
		return
	}
	eligible, err := c.usersStorage.CountByRole(ctx, storage.RoleUser)
	if err != nil {
		writeError(g, err, "", "Failed to fetch election results")
		return
	}
	ballots, err := c.ballotsStorage.GetByElection(ctx, e.ID)
	if err != nil {
		writeError(g, err, "", "Failed to fetch election results")
		return
	}

	g.JSON(http.StatusOK, &models.ResultsResponse{
		ElectionID:    e.ID,
		ElectionTitle: e.Title,
		ElectionPost:  e.Post,
		ElectionType:  e.Type,
		ElectionDates: models.ElectionDates{
			NominationStart:    e.NominationStart,
			NominationEnd:      e.NominationEnd,
			CampaignStart:      e.CampaignStart,
			CampaignEnd:        e.CampaignEnd,
			VotingDate:         e.VotingDate,
			ResultAnnouncement: e.ResultAnnouncementDate,
		},
		TotalVotes:          t.TotalVotes,
		TotalEligibleVoters: eligible,
		TurnoutPercentage:   election.Turnout(t.TotalVotes, eligible),
		Candidates:          models.TransformCandidateResults(t.Standings),
		Winners:             models.TransformWinners(t.Winners),
		IsTie:               t.IsTie,
		ResultsAnnounced:    e.ResultsAnnounced,
		VoteDistribution:    models.TransformDistribution(election.Distribution(ballots, time.Time{})),
		ResultGeneratedAt:   now,
	})
}

// allResults godoc
// @Summary Result summary of every election
// @Tags results
// @Produce json
// @Success 200 {object} models.AllResultsResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/results/all [get]
func (c *ResultsController) allResults(g *gin.Context) {
	ctx := g.Request.Context()
	elections, err := c.electionsStorage.GetAll(ctx)
	if err != nil {
		writeError(g, err, "", "Failed to fetch election results")
		return
	}

	now := c.clock.Now()
	resp := &models.AllResultsResponse{
		Elections:      make([]models.ElectionResultSummary, 0, len(elections)),
		TotalElections: len(elections),
		GeneratedAt:    now,
	}
	for _, e := range elections {
		summary, err := c.summarize(ctx, e, now)
		if err != nil {
			writeError(g, err, "", "Failed to fetch election results")
			return
		}
		if e.Active {
			resp.ActiveElections++
		}
		resp.Elections = append(resp.Elections, *summary)
	}
	g.JSON(http.StatusOK, resp)
}

func (c *ResultsController) summarize(ctx context.Context, e *storage.Election, now time.Time) (*models.ElectionResultSummary, error) {
	t, err := tallyElection(ctx, c.candidaciesStorage, c.ballotsStorage, e.ID)
	if err != nil {
		return nil, err
	}
	available := election.ResultsAvailable(e, now) == nil
	summary := &models.ElectionResultSummary{
		ElectionID:             e.ID,
		Title:                  e.Title,
		Post:                   e.Post,
		Type:                   e.Type,
		Active:                 e.Active,
		ResultsAnnounced:       e.ResultsAnnounced,
		TotalVotes:             t.TotalVotes,
		TotalCandidates:        len(t.Standings),
		VotingDate:             e.VotingDate,
		ResultAnnouncementDate: e.ResultAnnouncementDate,
		ResultsAvailable:       available,
	}
	if available {
		if w := leadingWinner(e, t); w != nil {
			summary.Winner = &models.SummaryWinner{Name: w.Name, Position: w.Position, VoteCount: w.Votes}
		}
	}
	return summary, nil
}

// leadingWinner is the announced winner when there is one, otherwise the sole
// leader of the tally. A tie without an announcement has no winner.
func leadingWinner(e *storage.Election, t *election.Tally) *election.Standing {
	if e.WinnerID != "" {
		for i := range t.Standings {
			if t.Standings[i].CandidateID == e.WinnerID {
				return &t.Standings[i]
			}
		}
	}
	if len(t.Winners) == 1 {
		return &t.Winners[0]
	}
	return nil
}

// winner godoc
// @Summary Winners of an election
// @Tags results
// @Security BearerToken
// @Produce json
// @Param electionId path string true "Election ID"
// @Success 200 {object} models.WinnerResponse
// @Failure 400 {object} models.ErrorResponse "Results not yet available"
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/winner/{electionId} [get]
func (c *ResultsController) winner(g *gin.Context) {
	ctx := g.Request.Context()
	e, err := c.electionsStorage.Get(ctx, g.Param("electionId"))
	if err != nil {
		writeError(g, err, "Election not found", "Failed to fetch winner")
		return
	}
	now := c.clock.Now()
	if err := election.ResultsAvailable(e, now); err != nil {
		notAvailable(g, e)
		return
	}
	t, err := tallyElection(ctx, c.candidaciesStorage, c.ballotsStorage, e.ID)
	if err != nil {
		writeError(g, err, "", "Failed to fetch winner")
		return
	}

	g.JSON(http.StatusOK, &models.WinnerResponse{
		ElectionID:       e.ID,
		ElectionTitle:    e.Title,
		ElectionPost:     e.Post,
		TotalVotes:       t.TotalVotes,
		Winners:          models.TransformWinners(t.Winners),
		IsTie:            t.IsTie,
		AnnouncementDate: e.ResultAnnouncementDate,
		GeneratedAt:      now,
	})
}

// declare godoc
// @Summary Declare the results of an election
// @Description Finalizes a clear winner once. A tie is reported for manual resolution and changes nothing.
// @Tags results
// @Security BearerToken
// @Produce json
// @Param electionId path string true "Election ID"
// @Success 200 {object} models.DeclareResultsResponse
// @Failure 400 {object} models.ErrorResponse "Too early, tied or already announced"
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/declare-results/{electionId} [get]
func (c *ResultsController) declare(g *gin.Context) {
	ctx := g.Request.Context()
	e, err := c.electionsStorage.Get(ctx, g.Param("electionId"))
	if err != nil {
		writeError(g, err, "Election not found", "Failed to declare results")
		return
	}
	t, err := tallyElection(ctx, c.candidaciesStorage, c.ballotsStorage, e.ID)
	if err != nil {
		writeError(g, err, "", "Failed to declare results")
		return
	}

	now := c.clock.Now()
	w, err := election.Declare(e, t, now)
	switch {
	case errors.Is(err, election.ErrResultsNotAvailable):
		notAvailable(g, e)
		return
	case errors.Is(err, election.ErrNoVotes):
		g.JSON(http.StatusOK, &models.DeclareResultsResponse{
			Message:    err.Error(),
			ElectionID: e.ID,
			Winners:    []models.WinnerEntry{},
		})
		return
	case errors.Is(err, election.ErrTie):
		logging.Log.Infof("ELECTION: declaration of %s refused, %d candidates tied", e.ID, len(t.Winners))
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{
			Error:      err.Error(),
			Candidates: models.TransformWinners(t.Winners),
		})
		return
	case err != nil:
		writeError(g, err, "", "Failed to declare results")
		return
	}

	c.announce(g, e.ID, w, []string{w.CandidateID}, now)
}

// resolveTie godoc
// @Summary Pick the winner of a tied election
// @Description The candidate must be one of the tied leaders
// @Tags results
// @Security BearerToken
// @Accept json
// @Produce json
// @Param electionId path string true "Election ID"
// @Param winner body models.ResolveTieRequest true "Chosen candidate"
// @Success 200 {object} models.DeclareResultsResponse
// @Failure 400 {object} models.ErrorResponse "Not tied, not among the tied or already announced"
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/resolve-tie/{electionId} [post]
func (c *ResultsController) resolveTie(g *gin.Context) {
	var req models.ResolveTieRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "Candidate ID is required"})
		return
	}

	ctx := g.Request.Context()
	e, err := c.electionsStorage.Get(ctx, g.Param("electionId"))
	if err != nil {
		writeError(g, err, "Election not found", "Failed to resolve tie")
		return
	}
	t, err := tallyElection(ctx, c.candidaciesStorage, c.ballotsStorage, e.ID)
	if err != nil {
		writeError(g, err, "", "Failed to resolve tie")
		return
	}

	now := c.clock.Now()
	w, err := election.ResolveTie(e, t, req.CandidateID, now)
	if err != nil {
		if errors.Is(err, election.ErrResultsNotAvailable) {
			notAvailable(g, e)
			return
		}
		writeError(g, err, "", "Failed to resolve tie")
		return
	}

	logging.Log.Infof("ELECTION: %s resolved tie in %s for %s", transport.UserID(g), e.ID, w.CandidateID)
	c.announce(g, e.ID, w, t.WinnerIDs(), now)
}

func (c *ResultsController) announce(g *gin.Context, id string, w *election.Standing, winnerIDs []string, now time.Time) {
	updated, err := c.electionsStorage.AnnounceResults(g.Request.Context(), id, w.CandidateID, winnerIDs, now)
	if err != nil {
		writeError(g, err, "Election not found", "Failed to declare results")
		return
	}

	logging.Log.Infof("ELECTION: results of %s announced, winner %s with %d votes", id, w.CandidateID, w.Votes)
	resp := models.TransformElection(updated)
	g.JSON(http.StatusOK, &models.DeclareResultsResponse{
		Message:    "Results declared successfully",
		ElectionID: id,
		Winners:    models.TransformWinners([]election.Standing{*w}),
		IsTie:      false,
		Election:   &resp,
		DeclaredAt: &now,
	})
}

// reopen godoc
// @Summary Reopen voting
// @Description Clears the announcement and winner and activates the election exclusively
// @Tags results
// @Security BearerToken
// @Produce json
// @Param electionId path string true "Election ID"
// @Success 200 {object} models.ElectionMessageResponse
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Failure 409 {object} models.ErrorResponse "Concurrent activation"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/reopen-voting/{electionId} [post]
func (c *ResultsController) reopen(g *gin.Context) {
	ctx := g.Request.Context()
	id := g.Param("electionId")
	if err := c.electionsStorage.Reopen(ctx, id); err != nil {
		writeError(g, err, "Election not found", "Failed to reopen voting")
		return
	}
	e, err := c.electionsStorage.Get(ctx, id)
	if err != nil {
		writeError(g, err, "Election not found", "Failed to reopen voting")
		return
	}

	logging.Log.Warnf("ELECTION: %s reopened voting for %s", transport.UserID(g), id)
	g.JSON(http.StatusOK, &models.ElectionMessageResponse{
		Message:  "Voting reopened successfully",
		Election: models.TransformElection(e),
	})
}

func notAvailable(g *gin.Context, e *storage.Election) {
	at := e.ResultAnnouncementDate
	g.JSON(http.StatusBadRequest, &models.ErrorResponse{
		Error:       election.ErrResultsNotAvailable.Error(),
		AvailableAt: &at,
	})
}

package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

// statisticsWindow bounds the hourly distribution on the statistics view.
const statisticsWindow = 24 * time.Hour

type VotingController struct {
	usersStorage       storage.UserStorage
	electionsStorage   storage.ElectionStorage
	candidaciesStorage storage.CandidacyStorage
	ballotsStorage     storage.BallotStorage
	tokens             *auth.TokenManager
	clock              election.Clock
	liveInterval       time.Duration
}

func NewVotingController(users storage.UserStorage, elections storage.ElectionStorage, candidacies storage.CandidacyStorage, ballots storage.BallotStorage, tokens *auth.TokenManager, clock election.Clock, liveInterval time.Duration) *VotingController {
	return &VotingController{
		usersStorage:       users,
		electionsStorage:   elections,
		candidaciesStorage: candidacies,
		ballotsStorage:     ballots,
		tokens:             tokens,
		clock:              clock,
		liveInterval:       liveInterval,
	}
}

func (c *VotingController) RegisterRoutes(engine *gin.Engine) {
	group := engine.Group("/api/vote")

	group.GET("/candidates/:electionId", c.approvedCandidates)
	group.GET("/voting-status/:electionId", c.votingStatus)
	group.GET("/live-count/active", c.activeLiveCount)
	group.GET("/live-count/:electionId", c.liveCount)
	group.GET("/live-updates/:electionId", c.liveUpdates)
	group.GET("/statistics/:electionId", c.statistics)

	authn := transport.AuthMiddleware(c.tokens)
	group.POST("/cast", authn, transport.RequireRole(storage.RoleUser), c.cast)
	group.GET("/status/:electionId", authn, c.status)
}

// cast godoc
// @Summary Cast a ballot
// @Description One ballot per voter and election, only while voting is open
// @Tags voting
// @Security BearerToken
// @Accept json
// @Produce json
// @Param vote body models.CastVoteRequest true "Ballot"
// @Success 201 {object} models.CastVoteResponse
// @Failure 400 {object} models.ErrorResponse "Voting closed or already voted"
// @Failure 404 {object} models.ErrorResponse "Election or candidate not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/cast [post]
func (c *VotingController) cast(g *gin.Context) {
	var req models.CastVoteRequest
	if err := g.ShouldBindJSON(&req); err != nil || req.CandidateID == "" || req.ElectionID == "" {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "Candidate ID and Election ID are required"})
		return
	}

	ctx := g.Request.Context()
	e, err := c.electionsStorage.Get(ctx, req.ElectionID)
	if err != nil {
		writeError(g, err, "Election not found", "Failed to cast vote")
		return
	}

	now := c.clock.Now()
	if err := election.CheckCastVote(e, now); err != nil {
		logging.Log.Warnf("VOTE: rejected ballot for election %s: %v", e.ID, err)
		if errors.Is(err, election.ErrVotingNotStarted) {
			at := e.VotingDate
			g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: err.Error(), AvailableAt: &at})
			return
		}
		writeError(g, err, "", "Failed to cast vote")
		return
	}

	candidacy, err := c.candidaciesStorage.Get(ctx, req.CandidateID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeError(g, err, "", "Failed to cast vote")
		return
	}
	if err := election.CheckCandidate(candidacy, e.ID); err != nil {
		writeError(g, err, "", "Failed to cast vote")
		return
	}

	voterID := transport.UserID(g)
	if _, err := c.ballotsStorage.Get(ctx, e.ID, voterID); err == nil {
		writeError(g, storage.ErrDuplicateBallot, "", "")
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		writeError(g, err, "", "Failed to cast vote")
		return
	}

	id, err := newID()
	if err != nil {
		writeError(g, err, "", "Failed to cast vote")
		return
	}
	ballot := &storage.Ballot{
		ID:          id,
		ElectionID:  e.ID,
		VoterID:     voterID,
		CandidateID: candidacy.ID,
		CastAt:      now,
	}
	if err := c.ballotsStorage.Create(ctx, ballot); err != nil {
		writeError(g, err, "", "Failed to cast vote")
		return
	}

	logging.Log.Infof("VOTE: ballot %s cast in election %s", ballot.ID, e.ID)
	g.JSON(http.StatusCreated, &models.CastVoteResponse{
		Message: "Vote cast successfully",
		Vote: models.BallotReceipt{
			ID:          ballot.ID,
			CandidateID: ballot.CandidateID,
			ElectionID:  ballot.ElectionID,
			Timestamp:   ballot.CastAt,
		},
	})
}

// status godoc
// @Summary Whether the caller has voted
// @Tags voting
// @Security BearerToken
// @Produce json
// @Param electionId path string true "Election ID"
// @Success 200 {object} models.VoteStatusResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/status/{electionId} [get]
func (c *VotingController) status(g *gin.Context) {
	ctx := g.Request.Context()
	ballot, err := c.ballotsStorage.Get(ctx, g.Param("electionId"), transport.UserID(g))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			g.JSON(http.StatusOK, &models.VoteStatusResponse{HasVoted: false})
			return
		}
		writeError(g, err, "", "Failed to check vote status")
		return
	}

	resp := &models.VoteStatusResponse{HasVoted: true, VoteID: ballot.ID, VotedAt: &ballot.CastAt}
	if candidacy, err := c.candidaciesStorage.Get(ctx, ballot.CandidateID); err == nil {
		pc := publicCandidate(candidacy)
		resp.Candidate = &pc
	}
	g.JSON(http.StatusOK, resp)
}

// votingStatus godoc
// @Summary Voting phase of an election
// @Description One of not_found, inactive, results_announced, not_started, time_ended or active
// @Tags voting
// @Produce json
// @Param electionId path string true "Election ID"
// @Success 200 {object} models.VotingStatusResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/voting-status/{electionId} [get]
func (c *VotingController) votingStatus(g *gin.Context) {
	id := g.Param("electionId")
	e, err := c.electionsStorage.Get(g.Request.Context(), id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeError(g, err, "", "Failed to fetch voting status")
		return
	}

	phase := election.PhaseOf(e, c.clock.Now())
	resp := &models.VotingStatusResponse{
		ElectionID: id,
		Status:     phase,
		Message:    phase.Message(),
		CanVote:    phase == election.PhaseActive,
	}
	if e != nil {
		resp.VotingDate = &e.VotingDate
		resp.EndsAt = &e.ResultAnnouncementDate
	}
	g.JSON(http.StatusOK, resp)
}

// approvedCandidates godoc
// @Summary Approved candidates of an election
// @Tags voting
// @Produce json
// @Param electionId path string true "Election ID"
// @Success 200 {object} models.ApprovedCandidatesResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/candidates/{electionId} [get]
func (c *VotingController) approvedCandidates(g *gin.Context) {
	id := g.Param("electionId")
	list, err := c.candidaciesStorage.GetByElection(g.Request.Context(), id)
	if err != nil {
		writeError(g, err, "", "Failed to fetch candidates")
		return
	}
	out := make([]models.PublicCandidate, 0, len(list))
	for _, candidacy := range list {
		if candidacy.Status == storage.StatusApproved {
			out = append(out, publicCandidate(candidacy))
		}
	}
	g.JSON(http.StatusOK, &models.ApprovedCandidatesResponse{ElectionID: id, Candidates: out})
}

// liveCount godoc
// @Summary Current vote counts of an election
// @Tags live
// @Produce json
// @Param electionId path string true "Election ID"
// @Success 200 {object} models.LiveCountResponse
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/live-count/{electionId} [get]
func (c *VotingController) liveCount(g *gin.Context) {
	ctx := g.Request.Context()
	e, err := c.electionsStorage.Get(ctx, g.Param("electionId"))
	if err != nil {
		writeError(g, err, "Election not found", "Failed to fetch live vote count")
		return
	}
	c.writeLiveCount(g, e)
}

// activeLiveCount godoc
// @Summary Current vote counts of the active election
// @Tags live
// @Produce json
// @Success 200 {object} models.LiveCountResponse
// @Failure 404 {object} models.ErrorResponse "No active election"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/live-count/active [get]
func (c *VotingController) activeLiveCount(g *gin.Context) {
	e, err := c.electionsStorage.GetActive(g.Request.Context())
	if err != nil {
		writeError(g, err, "No active election found", "Failed to fetch live vote count")
		return
	}
	c.writeLiveCount(g, e)
}

func (c *VotingController) writeLiveCount(g *gin.Context, e *storage.Election) {
	ctx := g.Request.Context()
	t, err := tallyElection(ctx, c.candidaciesStorage, c.ballotsStorage, e.ID)
	if err != nil {
		writeError(g, err, "", "Failed to fetch live vote count")
		return
	}
	eligible, err := c.usersStorage.CountByRole(ctx, storage.RoleUser)
	if err != nil {
		writeError(g, err, "", "Failed to fetch live vote count")
		return
	}
	g.JSON(http.StatusOK, &models.LiveCountResponse{
		ElectionID:          e.ID,
		ElectionTitle:       e.Title,
		ElectionPost:        e.Post,
		TotalVotes:          t.TotalVotes,
		TotalEligibleVoters: eligible,
		VotePercentage:      election.Turnout(t.TotalVotes, eligible),
		Candidates:          models.TransformLiveCandidates(t),
		LastUpdated:         c.clock.Now(),
	})
}

// liveUpdates godoc
// @Summary Stream vote counts
// @Description Server-sent events, one JSON snapshot per interval until the client disconnects
// @Tags live
// @Produce text/event-stream
// @Param electionId path string true "Election ID"
// @Success 200 {object} models.LiveUpdate
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Router /api/vote/live-updates/{electionId} [get]
func (c *VotingController) liveUpdates(g *gin.Context) {
	ctx := g.Request.Context()
	id := g.Param("electionId")
	if _, err := c.electionsStorage.Get(ctx, id); err != nil {
		writeError(g, err, "Election not found", "Failed to open live updates")
		return
	}

	header := g.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	g.Status(http.StatusOK)

	fetch := func(ctx context.Context) (*models.LiveUpdate, error) {
		t, err := tallyElection(ctx, c.candidaciesStorage, c.ballotsStorage, id)
		if err != nil {
			return nil, err
		}
		return &models.LiveUpdate{
			ElectionID: id,
			TotalVotes: t.TotalVotes,
			Candidates: models.TransformLiveCandidates(t),
			Timestamp:  c.clock.Now(),
		}, nil
	}
	emit := func(update *models.LiveUpdate) error {
		payload, err := json.Marshal(update)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(g.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		g.Writer.Flush()
		return nil
	}

	logging.Log.Debugf("LIVE: observer joined election %s", id)
	err := election.Watch(ctx, c.liveInterval, fetch, emit)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logging.Log.Warnf("LIVE: stream for election %s ended: %v", id, err)
		return
	}
	logging.Log.Debugf("LIVE: observer left election %s", id)
}

// statistics godoc
// @Summary Vote statistics of an election
// @Description Standings, leader and the hourly distribution of the last 24 hours
// @Tags voting
// @Produce json
// @Param electionId path string true "Election ID"
// @Success 200 {object} models.StatisticsResponse
// @Failure 404 {object} models.ErrorResponse "Election not found"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/vote/statistics/{electionId} [get]
func (c *VotingController) statistics(g *gin.Context) {
	ctx := g.Request.Context()
	e, err := c.electionsStorage.Get(ctx, g.Param("electionId"))
	if err != nil {
		writeError(g, err, "Election not found", "Failed to fetch vote statistics")
		return
	}
	t, err := tallyElection(ctx, c.candidaciesStorage, c.ballotsStorage, e.ID)
	if err != nil {
		writeError(g, err, "", "Failed to fetch vote statistics")
		return
	}
	eligible, err := c.usersStorage.CountByRole(ctx, storage.RoleUser)
	if err != nil {
		writeError(g, err, "", "Failed to fetch vote statistics")
		return
	}
	ballots, err := c.ballotsStorage.GetByElection(ctx, e.ID)
	if err != nil {
		writeError(g, err, "", "Failed to fetch vote statistics")
		return
	}

	now := c.clock.Now()
	candidates := models.TransformCandidateResults(t.Standings)
	var leader *models.CandidateResult
	if t.TotalVotes > 0 {
		leader = &candidates[0]
	}
	g.JSON(http.StatusOK, &models.StatisticsResponse{
		ElectionID:             e.ID,
		ElectionTitle:          e.Title,
		ElectionPost:           e.Post,
		TotalVotes:             t.TotalVotes,
		TotalEligibleVoters:    eligible,
		TurnoutPercentage:      election.Turnout(t.TotalVotes, eligible),
		Candidates:             candidates,
		Leader:                 leader,
		HourlyVoteDistribution: models.TransformDistribution(election.Distribution(ballots, now.Add(-statisticsWindow))),
		GeneratedAt:            now,
	})
}

// tallyElection counts the ballots of an election against its candidacies.
func tallyElection(ctx context.Context, candidacies storage.CandidacyStorage, ballots storage.BallotStorage, electionID string) (*election.Tally, error) {
	list, err := candidacies.GetByElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	votes, err := ballots.CountByCandidate(ctx, electionID)
	if err != nil {
		return nil, err
	}
	return election.Count(electionID, list, votes), nil
}

func publicCandidate(c *storage.Candidacy) models.PublicCandidate {
	return models.PublicCandidate{
		ID:        c.ID,
		Name:      c.Name,
		StudentID: c.StudentID,
		Email:     c.Email,
		Position:  c.Position,
		Statement: c.Statement,
	}
}

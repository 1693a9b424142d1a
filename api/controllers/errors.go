package controllers

import (
	"errors"
	"net/http"

	"github.com/alex-pricope/campus-election-system/api/models"
	"github.com/alex-pricope/campus-election-system/auth"
	"github.com/alex-pricope/campus-election-system/election"
	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// badRequest lists the domain errors reported to the caller as 400 with their
// own message.
var badRequest = []error{
	storage.ErrDuplicateUsername,
	storage.ErrDuplicateApplication,
	storage.ErrDuplicateIdentity,
	storage.ErrDuplicateBallot,
	storage.ErrResultsAlreadyAnnounced,
	election.ErrElectionInactive,
	election.ErrResultsAnnounced,
	election.ErrVotingNotStarted,
	election.ErrVotingClosed,
	election.ErrResultsNotAvailable,
	election.ErrNoVotes,
	election.ErrTie,
	election.ErrNotTied,
	election.ErrNotAmongTied,
	auth.ErrPasswordTooShort,
}

// writeError maps err to a status and writes the error body. notFound is the
// message used for storage.ErrNotFound and failure the one used for
// unexpected errors, whose details stay in the log.
func writeError(g *gin.Context, err error, notFound, failure string) {
	var verr *election.ValidationError
	switch {
	case errors.As(err, &verr):
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: verr.Message})
		return
	case errors.Is(err, storage.ErrNotFound):
		g.JSON(http.StatusNotFound, &models.ErrorResponse{Error: notFound})
		return
	case errors.Is(err, election.ErrCandidateNotEligible):
		g.JSON(http.StatusNotFound, &models.ErrorResponse{Error: "Candidate not found or not approved"})
		return
	case errors.Is(err, storage.ErrConcurrentUpdate):
		g.JSON(http.StatusConflict, &models.ErrorResponse{Error: err.Error()})
		return
	}
	for _, known := range badRequest {
		if errors.Is(err, known) {
			g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: known.Error()})
			return
		}
	}

	logging.Log.Errorf("%s: %v", failure, err)
	g.JSON(http.StatusInternalServerError, &models.ErrorResponse{Error: failure})
}

func newID() (string, error) {
	return gonanoid.Generate(models.Alphabet, models.IDLength)
}

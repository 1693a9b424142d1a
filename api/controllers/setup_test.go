package controllers

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alex-pricope/campus-election-system/api/transport"
	"github.com/alex-pricope/campus-election-system/auth"
	"github.com/alex-pricope/campus-election-system/election"
	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// baseTime is the fixed "now" every test starts from. Seeded elections open
// voting one day later and announce results two days later.
var baseTime = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

const (
	testPassword  = "secret123"
	testStatement = "I will work to improve student services, study spaces and campus transport for everyone."
	liveInterval  = 10 * time.Millisecond
)

type testEnv struct {
	router      *gin.Engine
	clock       *election.FixedClock
	tokens      *auth.TokenManager
	users       storage.UserStorage
	elections   storage.ElectionStorage
	candidacies storage.CandidacyStorage
	ballots     storage.BallotStorage
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logging.Log = logrus.New()
	logging.Log.SetOutput(io.Discard)

	db, err := storage.OpenSQL(storage.BackendSQLite, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.CloseSQL(db) })

	env := &testEnv{
		clock:       election.NewFixedClock(baseTime),
		tokens:      auth.NewTokenManager("test-secret", time.Hour),
		users:       &storage.GormUserStorage{DB: db},
		elections:   &storage.GormElectionStorage{DB: db},
		candidacies: &storage.GormCandidacyStorage{DB: db},
		ballots:     &storage.GormBallotStorage{DB: db},
	}

	r := transport.NewRouter(gin.TestMode)
	NewAuthController(env.users, env.tokens, env.clock).RegisterRoutes(r)
	NewElectionController(env.elections, env.candidacies, env.tokens, env.clock).RegisterRoutes(r)
	NewApplicationController(env.elections, env.candidacies, env.tokens, env.clock).RegisterRoutes(r)
	NewECController(env.users, env.elections, env.candidacies, env.tokens, env.clock).RegisterRoutes(r)
	NewAdminController(env.users, env.elections, env.ballots, env.tokens, baseTime).RegisterRoutes(r)
	NewVotingController(env.users, env.elections, env.candidacies, env.ballots, env.tokens, env.clock, liveInterval).RegisterRoutes(r)
	NewResultsController(env.users, env.elections, env.candidacies, env.ballots, env.tokens, env.clock).RegisterRoutes(r)
	env.router = r

	return env
}

// addUser stores an account with testPassword and returns it with a valid token.
func (env *testEnv) addUser(t *testing.T, id string, role storage.Role) (*storage.User, string) {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	user := &storage.User{
		ID:           id,
		Name:         "Name " + id,
		Username:     id,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    baseTime,
	}
	require.NoError(t, env.users.Create(context.Background(), user))
	token, err := env.tokens.Issue(user)
	require.NoError(t, err)
	return user, token
}

func (env *testEnv) addElection(t *testing.T, id string, active bool) *storage.Election {
	t.Helper()
	e := &storage.Election{
		ID:                     id,
		Title:                  "Student Council " + id,
		Post:                   "President",
		NominationStart:        baseTime.Add(-72 * time.Hour),
		NominationEnd:          baseTime.Add(-48 * time.Hour),
		CampaignStart:          baseTime.Add(-48 * time.Hour),
		CampaignEnd:            baseTime.Add(12 * time.Hour),
		VotingDate:             baseTime.Add(24 * time.Hour),
		ResultAnnouncementDate: baseTime.Add(48 * time.Hour),
		Active:                 active,
		CreatedAt:              baseTime,
	}
	require.NoError(t, env.elections.Create(context.Background(), e))
	return e
}

func (env *testEnv) addCandidate(t *testing.T, id, electionID, userID string, status storage.CandidacyStatus) *storage.Candidacy {
	t.Helper()
	c := &storage.Candidacy{
		ID:         id,
		UserID:     userID,
		ElectionID: electionID,
		Name:       "Candidate " + strings.ToUpper(id),
		StudentID:  "S-" + id,
		Email:      id + "@campus.edu",
		Phone:      "555-0100",
		Statement:  testStatement,
		Position:   "President",
		Status:     status,
		CreatedAt:  baseTime,
		UpdatedAt:  baseTime,
	}
	if status == storage.StatusRejected {
		c.RejectionReason = "incomplete"
	}
	require.NoError(t, env.candidacies.Create(context.Background(), c))
	return c
}

func (env *testEnv) addBallots(t *testing.T, electionID, candidateID string, voters ...string) {
	t.Helper()
	for _, voter := range voters {
		require.NoError(t, env.ballots.Create(context.Background(), &storage.Ballot{
			ID:          "b-" + electionID + "-" + voter,
			ElectionID:  electionID,
			VoterID:     voter,
			CandidateID: candidateID,
			CastAt:      baseTime.Add(25 * time.Hour),
		}))
	}
}

func (env *testEnv) getElection(t *testing.T, id string) *storage.Election {
	t.Helper()
	e, err := env.elections.Get(context.Background(), id)
	require.NoError(t, err)
	return e
}

// votingOpen moves the clock into the voting window of seeded elections.
func (env *testEnv) votingOpen() {
	env.clock.Set(baseTime.Add(30 * time.Hour))
}

// resultsDue moves the clock past the announcement date of seeded elections.
func (env *testEnv) resultsDue() {
	env.clock.Set(baseTime.Add(49 * time.Hour))
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	logging.Log = logrus.New()

	db, err := OpenSQL(BackendSQLite, filepath.Join(t.TempDir(), "elections.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseSQL(db) })
	return db
}

func seedElection(t *testing.T, s ElectionStorage, id string, active bool) *Election {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	e := &Election{
		ID:                     id,
		Title:                  "Election " + id,
		Post:                   "President",
		NominationStart:        now,
		NominationEnd:          now.Add(time.Hour),
		CampaignStart:          now.Add(2 * time.Hour),
		CampaignEnd:            now.Add(3 * time.Hour),
		VotingDate:             now.Add(4 * time.Hour),
		ResultAnnouncementDate: now.Add(5 * time.Hour),
		Active:                 active,
		CreatedAt:              now,
	}
	require.NoError(t, s.Create(context.Background(), e))
	return e
}

func activeIDs(t *testing.T, s ElectionStorage) []string {
	t.Helper()
	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, e := range all {
		if e.Active {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func TestGormElectionStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("Activate leaves exactly one active election", func(t *testing.T) {
		s := &GormElectionStorage{DB: setupTestDB(t)}
		seedElection(t, s, "e1", true)
		seedElection(t, s, "e2", true)
		seedElection(t, s, "e3", false)

		require.NoError(t, s.Activate(ctx, "e3"))
		assert.Equal(t, []string{"e3"}, activeIDs(t, s))

		active, err := s.GetActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, "e3", active.ID)
	})

	t.Run("Activate unknown election changes nothing", func(t *testing.T) {
		s := &GormElectionStorage{DB: setupTestDB(t)}
		seedElection(t, s, "e1", true)

		err := s.Activate(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, []string{"e1"}, activeIDs(t, s))
	})

	t.Run("Concurrent activations never leave two active", func(t *testing.T) {
		s := &GormElectionStorage{DB: setupTestDB(t)}
		for i := 0; i < 5; i++ {
			seedElection(t, s, fmt.Sprintf("e%d", i), false)
		}

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_ = s.Activate(ctx, id)
			}(fmt.Sprintf("e%d", i))
		}
		wg.Wait()
		assert.Len(t, activeIDs(t, s), 1)
	})

	t.Run("GetActive without an active election", func(t *testing.T) {
		s := &GormElectionStorage{DB: setupTestDB(t)}
		seedElection(t, s, "e1", false)
		_, err := s.GetActive(ctx)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("AnnounceResults only once", func(t *testing.T) {
		s := &GormElectionStorage{DB: setupTestDB(t)}
		seedElection(t, s, "e1", true)
		at := time.Now().UTC().Truncate(time.Second)

		e, err := s.AnnounceResults(ctx, "e1", "c1", []string{"c1"}, at)
		require.NoError(t, err)
		assert.True(t, e.ResultsAnnounced)
		assert.False(t, e.Active)
		assert.Equal(t, "c1", e.WinnerID)
		assert.Equal(t, []string{"c1"}, e.WinnerIDs)
		require.NotNil(t, e.AnnouncedAt)

		_, err = s.AnnounceResults(ctx, "e1", "c2", []string{"c2"}, at)
		assert.ErrorIs(t, err, ErrResultsAlreadyAnnounced)

		stored, err := s.Get(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, "c1", stored.WinnerID)

		_, err = s.AnnounceResults(ctx, "missing", "c1", nil, at)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Reopen clears the announcement and activates exclusively", func(t *testing.T) {
		s := &GormElectionStorage{DB: setupTestDB(t)}
		seedElection(t, s, "e1", false)
		seedElection(t, s, "e2", true)
		_, err := s.AnnounceResults(ctx, "e1", "c1", []string{"c1"}, time.Now())
		require.NoError(t, err)

		require.NoError(t, s.Reopen(ctx, "e1"))
		e, err := s.Get(ctx, "e1")
		require.NoError(t, err)
		assert.False(t, e.ResultsAnnounced)
		assert.True(t, e.Active)
		assert.Empty(t, e.WinnerID)
		assert.Empty(t, e.WinnerIDs)
		assert.Nil(t, e.AnnouncedAt)
		assert.Equal(t, []string{"e1"}, activeIDs(t, s))
	})

	t.Run("Deactivate and delete", func(t *testing.T) {
		s := &GormElectionStorage{DB: setupTestDB(t)}
		seedElection(t, s, "e1", true)

		require.NoError(t, s.Deactivate(ctx, "e1"))
		assert.Empty(t, activeIDs(t, s))
		require.NoError(t, s.Delete(ctx, "e1"))
		assert.ErrorIs(t, s.Delete(ctx, "e1"), ErrNotFound)
		_, err := s.Get(ctx, "e1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func newCandidacy(id, user, election, studentID, email string) *Candidacy {
	now := time.Now().UTC()
	return &Candidacy{
		ID:         id,
		UserID:     user,
		ElectionID: election,
		Name:       "Candidate " + id,
		StudentID:  studentID,
		Email:      email,
		Phone:      "555-0100",
		Statement:  "I will make the library open all night during exam weeks.",
		Position:   "President",
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestGormCandidacyStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("Uniqueness rules map to distinct errors", func(t *testing.T) {
		s := &GormCandidacyStorage{DB: setupTestDB(t)}
		require.NoError(t, s.Create(ctx, newCandidacy("c1", "u1", "e1", "S1", "one@campus.edu")))

		err := s.Create(ctx, newCandidacy("c2", "u1", "e1", "S2", "two@campus.edu"))
		assert.ErrorIs(t, err, ErrDuplicateApplication)

		err = s.Create(ctx, newCandidacy("c3", "u2", "e1", "S1", "three@campus.edu"))
		assert.ErrorIs(t, err, ErrDuplicateIdentity)

		err = s.Create(ctx, newCandidacy("c4", "u3", "e2", "S4", "ONE@campus.edu "))
		assert.ErrorIs(t, err, ErrDuplicateIdentity)

		// Same user may apply to another election with a fresh identity.
		require.NoError(t, s.Create(ctx, newCandidacy("c5", "u1", "e2", "S5", "five@campus.edu")))
	})

	t.Run("Concurrent applications by one user store one candidacy", func(t *testing.T) {
		s := &GormCandidacyStorage{DB: setupTestDB(t)}

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Create(ctx, newCandidacy(fmt.Sprintf("c%d", i), "u1", "e1", fmt.Sprintf("S%d", i), fmt.Sprintf("%d@campus.edu", i)))
			}(i)
		}
		wg.Wait()
		close(errs)

		ok := 0
		for err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, ErrDuplicateApplication)
		}
		assert.Equal(t, 1, ok)
	})

	t.Run("Lookups", func(t *testing.T) {
		s := &GormCandidacyStorage{DB: setupTestDB(t)}
		require.NoError(t, s.Create(ctx, newCandidacy("c1", "u1", "e1", "S1", "one@campus.edu")))
		require.NoError(t, s.Create(ctx, newCandidacy("c2", "u2", "e1", "S2", "two@campus.edu")))

		exists, err := s.ExistsForUser(ctx, "u1", "e1")
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = s.ExistsForUser(ctx, "u1", "e2")
		require.NoError(t, err)
		assert.False(t, exists)

		taken, err := s.IdentityTaken(ctx, "S1", "new@campus.edu", "")
		require.NoError(t, err)
		assert.True(t, taken)
		taken, err = s.IdentityTaken(ctx, "S1", "one@campus.edu", "c1")
		require.NoError(t, err)
		assert.False(t, taken)

		byElection, err := s.GetByElection(ctx, "e1")
		require.NoError(t, err)
		assert.Len(t, byElection, 2)
		byUser, err := s.GetByUser(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, byUser, 1)
		assert.Equal(t, "c2", byUser[0].ID)
	})

	t.Run("Update keeps identity unique", func(t *testing.T) {
		s := &GormCandidacyStorage{DB: setupTestDB(t)}
		require.NoError(t, s.Create(ctx, newCandidacy("c1", "u1", "e1", "S1", "one@campus.edu")))
		require.NoError(t, s.Create(ctx, newCandidacy("c2", "u2", "e1", "S2", "two@campus.edu")))

		prev, err := s.Get(ctx, "c2")
		require.NoError(t, err)
		next := *prev
		next.Email = "one@campus.edu"
		assert.ErrorIs(t, s.Update(ctx, prev, &next), ErrDuplicateIdentity)

		next.Email = "new@campus.edu"
		next.Phone = "555-0199"
		require.NoError(t, s.Update(ctx, prev, &next))
		got, err := s.Get(ctx, "c2")
		require.NoError(t, err)
		assert.Equal(t, "new@campus.edu", got.Email)
		assert.Equal(t, "555-0199", got.Phone)
	})

	t.Run("Owner edits and withdrawal lose to moderation", func(t *testing.T) {
		s := &GormCandidacyStorage{DB: setupTestDB(t)}
		require.NoError(t, s.Create(ctx, newCandidacy("c1", "u1", "e1", "S1", "one@campus.edu")))

		// The owner loaded the candidacy while pending; an officer approves it
		// before the edit lands.
		prev, err := s.Get(ctx, "c1")
		require.NoError(t, err)
		_, err = s.SetStatus(ctx, []string{"c1"}, StatusApproved, "", time.Now())
		require.NoError(t, err)

		next := *prev
		next.Statement = "Edited after the officer already looked at this application."
		assert.ErrorIs(t, s.Update(ctx, prev, &next), ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, prev), ErrNotFound)

		got, err := s.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, got.Status)
		assert.Equal(t, prev.Statement, got.Statement)
	})

	t.Run("Owner edit never writes status", func(t *testing.T) {
		s := &GormCandidacyStorage{DB: setupTestDB(t)}
		require.NoError(t, s.Create(ctx, newCandidacy("c1", "u1", "e1", "S1", "one@campus.edu")))

		prev, err := s.Get(ctx, "c1")
		require.NoError(t, err)
		next := *prev
		next.Status = StatusApproved
		next.RejectionReason = "forged"
		next.Phone = "555-0142"
		require.NoError(t, s.Update(ctx, prev, &next))

		got, err := s.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, StatusPending, got.Status)
		assert.Empty(t, got.RejectionReason)
		assert.Equal(t, "555-0142", got.Phone)
	})

	t.Run("SetStatus and rejection reason", func(t *testing.T) {
		s := &GormCandidacyStorage{DB: setupTestDB(t)}
		require.NoError(t, s.Create(ctx, newCandidacy("c1", "u1", "e1", "S1", "one@campus.edu")))
		require.NoError(t, s.Create(ctx, newCandidacy("c2", "u2", "e1", "S2", "two@campus.edu")))

		n, err := s.SetStatus(ctx, []string{"c1", "c2", "missing"}, StatusRejected, "incomplete", time.Now())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		got, err := s.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, got.Status)
		assert.Equal(t, "incomplete", got.RejectionReason)

		n, err = s.SetStatus(ctx, []string{"c1"}, StatusApproved, "ignored", time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		got, err = s.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, got.Status)
		assert.Empty(t, got.RejectionReason)
	})

	t.Run("Delete and cascade by election", func(t *testing.T) {
		s := &GormCandidacyStorage{DB: setupTestDB(t)}
		c1 := newCandidacy("c1", "u1", "e1", "S1", "one@campus.edu")
		require.NoError(t, s.Create(ctx, c1))
		require.NoError(t, s.Create(ctx, newCandidacy("c2", "u2", "e1", "S2", "two@campus.edu")))
		require.NoError(t, s.Create(ctx, newCandidacy("c3", "u2", "e2", "S3", "three@campus.edu")))
		require.NoError(t, s.Create(ctx, newCandidacy("c4", "u4", "e1", "S4", "four@campus.edu")))
		_, err := s.SetStatus(ctx, []string{"c4"}, StatusApproved, "", time.Now())
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, c1))
		assert.ErrorIs(t, s.Delete(ctx, c1), ErrNotFound)

		// The cascade removes moderated candidacies too.
		n, err := s.DeleteByElection(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "c3", all[0].ID)
	})
}

func TestGormBallotStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("Concurrent ballots by one voter store exactly one", func(t *testing.T) {
		s := &GormBallotStorage{DB: setupTestDB(t)}

		var wg sync.WaitGroup
		var mu sync.Mutex
		ok, dup := 0, 0
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.Create(ctx, &Ballot{
					ID:          fmt.Sprintf("b%d", i),
					ElectionID:  "e1",
					VoterID:     "v1",
					CandidateID: "c1",
					CastAt:      time.Now(),
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrDuplicateBallot):
					dup++
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, ok)
		assert.Equal(t, 9, dup)
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("Counts per candidate", func(t *testing.T) {
		s := &GormBallotStorage{DB: setupTestDB(t)}
		cast := func(id, election, voter, candidate string) {
			require.NoError(t, s.Create(ctx, &Ballot{ID: id, ElectionID: election, VoterID: voter, CandidateID: candidate, CastAt: time.Now()}))
		}
		cast("b1", "e1", "v1", "a")
		cast("b2", "e1", "v2", "a")
		cast("b3", "e1", "v3", "b")
		cast("b4", "e2", "v1", "x")

		counts, err := s.CountByCandidate(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"a": 2, "b": 1}, counts)

		ballots, err := s.GetByElection(ctx, "e2")
		require.NoError(t, err)
		assert.Len(t, ballots, 1)

		b, err := s.Get(ctx, "e1", "v3")
		require.NoError(t, err)
		assert.Equal(t, "b", b.CandidateID)
		_, err = s.Get(ctx, "e2", "v3")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestGormUserStorage(t *testing.T) {
	ctx := context.Background()
	s := &GormUserStorage{DB: setupTestDB(t)}

	require.NoError(t, s.Create(ctx, &User{ID: "u1", Name: "Ada", Username: "Ada", PasswordHash: "x", Role: RoleUser}))
	require.NoError(t, s.Create(ctx, &User{ID: "u2", Name: "Officer", Username: "officer", PasswordHash: "x", Role: RoleECOfficer}))
	assert.ErrorIs(t, s.Create(ctx, &User{ID: "u3", Username: " ADA ", PasswordHash: "x", Role: RoleUser}), ErrDuplicateUsername)

	u, err := s.GetByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	n, err := s.CountByRole(ctx, RoleUser)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	total, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	officers, err := s.GetByRole(ctx, RoleECOfficer)
	require.NoError(t, err)
	require.Len(t, officers, 1)

	require.NoError(t, s.Delete(ctx, "u1"))
	_, err = s.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

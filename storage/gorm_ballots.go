package storage

import (
	"context"

	"github.com/alex-pricope/campus-election-system/logging"
	"gorm.io/gorm"
)

type GormBallotStorage struct {
	DB *gorm.DB
}

func (s *GormBallotStorage) Create(ctx context.Context, ballot *Ballot) error {
	if err := s.DB.WithContext(ctx).Create(ballot).Error; err != nil {
		if _, ok := uniqueViolation(err); ok {
			logging.Log.Warnf("VOTE: voter %s already voted in election %s", ballot.VoterID, ballot.ElectionID)
			return ErrDuplicateBallot
		}
		logging.Log.Errorf("VOTE: failed to create ballot: %v", err)
		return err
	}
	return nil
}

func (s *GormBallotStorage) Get(ctx context.Context, electionID, voterID string) (*Ballot, error) {
	var ballot Ballot
	err := s.DB.WithContext(ctx).First(&ballot, "election_id = ? AND voter_id = ?", electionID, voterID).Error
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrNotFound
		}
		logging.Log.Errorf("VOTE: failed to get ballot %s/%s: %v", electionID, voterID, err)
		return nil, err
	}
	return &ballot, nil
}

func (s *GormBallotStorage) GetByElection(ctx context.Context, electionID string) ([]*Ballot, error) {
	var ballots []*Ballot
	err := s.DB.WithContext(ctx).Where("election_id = ?", electionID).Order("cast_at").Find(&ballots).Error
	if err != nil {
		logging.Log.Errorf("VOTE: failed to list ballots for election %s: %v", electionID, err)
		return nil, err
	}
	return ballots, nil
}

func (s *GormBallotStorage) CountByCandidate(ctx context.Context, electionID string) (map[string]int, error) {
	var rows []struct {
		CandidateID string
		Votes       int
	}
	err := s.DB.WithContext(ctx).Model(&Ballot{}).
		Select("candidate_id, COUNT(*) AS votes").
		Where("election_id = ?", electionID).
		Group("candidate_id").
		Scan(&rows).Error
	if err != nil {
		logging.Log.Errorf("VOTE: failed to count ballots for election %s: %v", electionID, err)
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.CandidateID] = r.Votes
	}
	return counts, nil
}

func (s *GormBallotStorage) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&Ballot{}).Count(&n).Error; err != nil {
		logging.Log.Errorf("VOTE: count failed: %v", err)
		return 0, err
	}
	return int(n), nil
}

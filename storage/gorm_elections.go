package storage

import (
	"context"
	"errors"
	"time"

	"github.com/alex-pricope/campus-election-system/logging"
	"gorm.io/gorm"
)

type GormElectionStorage struct {
	DB *gorm.DB
}

func (s *GormElectionStorage) Get(ctx context.Context, id string) (*Election, error) {
	return getElection(s.DB.WithContext(ctx), id)
}

func getElection(db *gorm.DB, id string) (*Election, error) {
	var election Election
	if err := db.First(&election, "id = ?", id).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, ErrNotFound
		}
		logging.Log.Errorf("ELECTION: failed to get election %s: %v", id, err)
		return nil, err
	}
	return &election, nil
}

func (s *GormElectionStorage) GetAll(ctx context.Context) ([]*Election, error) {
	var elections []*Election
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&elections).Error; err != nil {
		logging.Log.Errorf("ELECTION: failed to list elections: %v", err)
		return nil, err
	}
	return elections, nil
}

func (s *GormElectionStorage) GetActive(ctx context.Context) (*Election, error) {
	var election Election
	if err := s.DB.WithContext(ctx).Where("active = ?", true).First(&election).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, ErrNotFound
		}
		logging.Log.Errorf("ELECTION: failed to get active election: %v", err)
		return nil, err
	}
	return &election, nil
}

func (s *GormElectionStorage) Create(ctx context.Context, election *Election) error {
	if err := s.DB.WithContext(ctx).Create(election).Error; err != nil {
		logging.Log.Errorf("ELECTION: failed to create election: %v", err)
		return err
	}
	logging.Log.Infof("ELECTION: created election %s (%s)", election.ID, election.Title)
	return nil
}

// activateExclusive flips every election's flag in one statement so no reader
// ever observes two active elections.
func activateExclusive(tx *gorm.DB, id string) error {
	if _, err := getElection(tx, id); err != nil {
		return err
	}
	return tx.Model(&Election{}).
		Where("1 = 1").
		Update("active", gorm.Expr("id = ?", id)).Error
}

func (s *GormElectionStorage) Activate(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return activateExclusive(tx, id)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.Log.Errorf("ELECTION: failed to activate election %s: %v", id, err)
		}
		return err
	}
	logging.Log.Infof("ELECTION: election %s is now the active election", id)
	return nil
}

func (s *GormElectionStorage) Reopen(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := activateExclusive(tx, id); err != nil {
			return err
		}
		return tx.Model(&Election{}).
			Where("id = ?", id).
			Select("ResultsAnnounced", "WinnerID", "WinnerIDs", "AnnouncedAt").
			Updates(&Election{}).Error
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.Log.Errorf("ELECTION: failed to reopen election %s: %v", id, err)
		}
		return err
	}
	logging.Log.Infof("ELECTION: election %s reopened for voting", id)
	return nil
}

func (s *GormElectionStorage) Deactivate(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&Election{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		logging.Log.Errorf("ELECTION: failed to deactivate election %s: %v", id, res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormElectionStorage) AnnounceResults(ctx context.Context, id, winnerID string, winnerIDs []string, at time.Time) (*Election, error) {
	var announced *Election
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Election{}).
			Where("id = ? AND results_announced = ?", id, false).
			Select("ResultsAnnounced", "Active", "WinnerID", "WinnerIDs", "AnnouncedAt").
			Updates(&Election{
				ResultsAnnounced: true,
				Active:           false,
				WinnerID:         winnerID,
				WinnerIDs:        winnerIDs,
				AnnouncedAt:      &at,
			})
		if res.Error != nil {
			return res.Error
		}

		e, err := getElection(tx, id)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return ErrResultsAlreadyAnnounced
		}
		announced = e
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
		case errors.Is(err, ErrResultsAlreadyAnnounced):
			logging.Log.Warnf("ELECTION: results for %s were already announced", id)
		default:
			logging.Log.Errorf("ELECTION: failed to announce results for %s: %v", id, err)
		}
		return nil, err
	}
	logging.Log.Infof("ELECTION: results announced for %s, winner %s", id, winnerID)
	return announced, nil
}

func (s *GormElectionStorage) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Delete(&Election{}, "id = ?", id)
	if res.Error != nil {
		logging.Log.Errorf("ELECTION: failed to delete election %s: %v", id, res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	logging.Log.Infof("ELECTION: deleted election %s", id)
	return nil
}

package storage

import (
	"context"
	"strings"
	"time"

	"github.com/alex-pricope/campus-election-system/logging"
	"gorm.io/gorm"
)

type GormCandidacyStorage struct {
	DB *gorm.DB
}

func (s *GormCandidacyStorage) Get(ctx context.Context, id string) (*Candidacy, error) {
	var c Candidacy
	if err := s.DB.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, ErrNotFound
		}
		logging.Log.Errorf("CANDIDACY: failed to get candidacy %s: %v", id, err)
		return nil, err
	}
	return &c, nil
}

func (s *GormCandidacyStorage) GetAll(ctx context.Context) ([]*Candidacy, error) {
	return s.find(ctx, s.DB.WithContext(ctx))
}

func (s *GormCandidacyStorage) GetByElection(ctx context.Context, electionID string) ([]*Candidacy, error) {
	return s.find(ctx, s.DB.WithContext(ctx).Where("election_id = ?", electionID))
}

func (s *GormCandidacyStorage) GetByUser(ctx context.Context, userID string) ([]*Candidacy, error) {
	return s.find(ctx, s.DB.WithContext(ctx).Where("user_id = ?", userID))
}

func (s *GormCandidacyStorage) find(_ context.Context, q *gorm.DB) ([]*Candidacy, error) {
	var list []*Candidacy
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		logging.Log.Errorf("CANDIDACY: failed to list candidacies: %v", err)
		return nil, err
	}
	return list, nil
}

func (s *GormCandidacyStorage) ExistsForUser(ctx context.Context, userID, electionID string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&Candidacy{}).
		Where("user_id = ? AND election_id = ?", userID, electionID).
		Count(&n).Error
	if err != nil {
		logging.Log.Errorf("CANDIDACY: application lookup failed: %v", err)
		return false, err
	}
	return n > 0, nil
}

func (s *GormCandidacyStorage) IdentityTaken(ctx context.Context, studentID, email, excludeID string) (bool, error) {
	probe := &Candidacy{StudentID: studentID, Email: email}
	normalizeIdentity(probe)

	var n int64
	err := s.DB.WithContext(ctx).Model(&Candidacy{}).
		Where("(student_id = ? OR email = ?) AND id <> ?", probe.StudentID, probe.Email, excludeID).
		Count(&n).Error
	if err != nil {
		logging.Log.Errorf("CANDIDACY: identity lookup failed: %v", err)
		return false, err
	}
	return n > 0, nil
}

// classifyUnique maps a violated candidacy index to its domain error.
func classifyUnique(constraint string) error {
	if strings.Contains(constraint, "idx_candidacy_user_election") || strings.Contains(constraint, "user_id") {
		return ErrDuplicateApplication
	}
	return ErrDuplicateIdentity
}

func (s *GormCandidacyStorage) Create(ctx context.Context, c *Candidacy) error {
	normalizeIdentity(c)
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			logging.Log.Warnf("CANDIDACY: rejected duplicate application by %s: %s", c.UserID, constraint)
			return classifyUnique(constraint)
		}
		logging.Log.Errorf("CANDIDACY: failed to create candidacy: %v", err)
		return err
	}
	logging.Log.Infof("CANDIDACY: user %s applied for election %s", c.UserID, c.ElectionID)
	return nil
}

func (s *GormCandidacyStorage) Update(ctx context.Context, _, updated *Candidacy) error {
	normalizeIdentity(updated)
	res := s.DB.WithContext(ctx).Model(&Candidacy{}).
		Where("id = ? AND status = ?", updated.ID, StatusPending).
		Select("*").Omit("ID", "CreatedAt", "Status", "RejectionReason").
		Updates(updated)
	if res.Error != nil {
		if constraint, ok := uniqueViolation(res.Error); ok {
			return classifyUnique(constraint)
		}
		logging.Log.Errorf("CANDIDACY: failed to update candidacy %s: %v", updated.ID, res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormCandidacyStorage) SetStatus(ctx context.Context, ids []string, status CandidacyStatus, reason string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if status != StatusRejected {
		reason = ""
	}
	res := s.DB.WithContext(ctx).Model(&Candidacy{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":           status,
			"rejection_reason": reason,
			"updated_at":       at,
		})
	if res.Error != nil {
		logging.Log.Errorf("CANDIDACY: failed to set status %s: %v", status, res.Error)
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (s *GormCandidacyStorage) Delete(ctx context.Context, c *Candidacy) error {
	res := s.DB.WithContext(ctx).Delete(&Candidacy{}, "id = ? AND status = ?", c.ID, StatusPending)
	if res.Error != nil {
		logging.Log.Errorf("CANDIDACY: failed to delete candidacy %s: %v", c.ID, res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormCandidacyStorage) DeleteByElection(ctx context.Context, electionID string) (int, error) {
	res := s.DB.WithContext(ctx).Where("election_id = ?", electionID).Delete(&Candidacy{})
	if res.Error != nil {
		logging.Log.Errorf("CANDIDACY: failed to delete candidacies of election %s: %v", electionID, res.Error)
		return 0, res.Error
	}
	logging.Log.Infof("CANDIDACY: deleted %d candidacies of election %s", res.RowsAffected, electionID)
	return int(res.RowsAffected), nil
}

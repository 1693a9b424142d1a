package storage

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleECOfficer Role = "ecofficer"
	RoleAdmin     Role = "admin"
)

type CandidacyStatus string

const (
	StatusPending  CandidacyStatus = "pending"
	StatusApproved CandidacyStatus = "approved"
	StatusRejected CandidacyStatus = "rejected"
)

func (s CandidacyStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type User struct {
	ID           string    `dynamodbav:"PK" gorm:"primaryKey;size:32"`
	Name         string    `dynamodbav:"Name"`
	Username     string    `dynamodbav:"Username" gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string    `dynamodbav:"PasswordHash" gorm:"not null"`
	Department   string    `dynamodbav:"Department"`
	Year         string    `dynamodbav:"Year"`
	Role         Role      `dynamodbav:"Role" gorm:"index;size:16;not null"`
	CreatedAt    time.Time `dynamodbav:"CreatedAt"`
}

type Election struct {
	ID                     string     `dynamodbav:"PK" gorm:"primaryKey;size:32"`
	Title                  string     `dynamodbav:"Title" gorm:"not null"`
	Description            string     `dynamodbav:"Description"`
	Post                   string     `dynamodbav:"Post" gorm:"not null"`
	Type                   string     `dynamodbav:"Type"`
	NominationStart        time.Time  `dynamodbav:"NominationStart"`
	NominationEnd          time.Time  `dynamodbav:"NominationEnd"`
	CampaignStart          time.Time  `dynamodbav:"CampaignStart"`
	CampaignEnd            time.Time  `dynamodbav:"CampaignEnd"`
	VotingDate             time.Time  `dynamodbav:"VotingDate"`
	ResultAnnouncementDate time.Time  `dynamodbav:"ResultAnnouncementDate"`
	Active                 bool       `dynamodbav:"Active" gorm:"index"`
	ResultsAnnounced       bool       `dynamodbav:"ResultsAnnounced"`
	WinnerID               string     `dynamodbav:"WinnerID"`
	WinnerIDs              []string   `dynamodbav:"WinnerIDs" gorm:"type:text;serializer:json"`
	AnnouncedAt            *time.Time `dynamodbav:"AnnouncedAt"`
	CreatedAt              time.Time  `dynamodbav:"CreatedAt"`
}

// Candidacy is a user's application to stand in one election.
type Candidacy struct {
	ID              string          `dynamodbav:"PK" gorm:"primaryKey;size:32"`
	UserID          string          `dynamodbav:"UserID" gorm:"size:32;not null;uniqueIndex:idx_candidacy_user_election"`
	ElectionID      string          `dynamodbav:"ElectionID" gorm:"size:32;not null;uniqueIndex:idx_candidacy_user_election;index"`
	Name            string          `dynamodbav:"Name"`
	StudentID       string          `dynamodbav:"StudentID" gorm:"uniqueIndex;size:64;not null"`
	Email           string          `dynamodbav:"Email" gorm:"uniqueIndex;size:128;not null"`
	Phone           string          `dynamodbav:"Phone"`
	Statement       string          `dynamodbav:"Statement"`
	Position        string          `dynamodbav:"Position"`
	Status          CandidacyStatus `dynamodbav:"Status" gorm:"size:16;index;not null"`
	RejectionReason string          `dynamodbav:"RejectionReason,omitempty"`
	CreatedAt       time.Time       `dynamodbav:"CreatedAt"`
	UpdatedAt       time.Time       `dynamodbav:"UpdatedAt"`
}

// Ballot is keyed by (election, voter); the key is the uniqueness guard.
type Ballot struct {
	ElectionID  string    `dynamodbav:"PK" gorm:"size:32;not null;uniqueIndex:idx_ballot_election_voter"`
	VoterID     string    `dynamodbav:"SK" gorm:"size:32;not null;uniqueIndex:idx_ballot_election_voter"`
	ID          string    `dynamodbav:"BallotID" gorm:"primaryKey;size:32"`
	CandidateID string    `dynamodbav:"CandidateID" gorm:"size:32;not null;index"`
	CastAt      time.Time `dynamodbav:"CastAt"`
}

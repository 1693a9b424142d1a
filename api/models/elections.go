package models

import (
	"time"

	"github.com/alex-pricope/campus-election-system/storage"
)

type CreateElectionRequest struct {
	Title                  string    `json:"title"`
	Description            string    `json:"description"`
	Post                   string    `json:"post"`
	Type                   string    `json:"type"`
	NominationStartDate    time.Time `json:"nominationStartDate"`
	NominationEndDate      time.Time `json:"nominationEndDate"`
	CampaignStartDate      time.Time `json:"campaignStartDate"`
	CampaignEndDate        time.Time `json:"campaignEndDate"`
	VotingDate             time.Time `json:"votingDate"`
	ResultAnnouncementDate time.Time `json:"resultAnnouncementDate"`
}

func (r *CreateElectionRequest) ToElection() *storage.Election {
	return &storage.Election{
		Title:                  r.Title,
		Description:            r.Description,
		Post:                   r.Post,
		Type:                   r.Type,
		NominationStart:        r.NominationStartDate.UTC(),
		NominationEnd:          r.NominationEndDate.UTC(),
		CampaignStart:          r.CampaignStartDate.UTC(),
		CampaignEnd:            r.CampaignEndDate.UTC(),
		VotingDate:             r.VotingDate.UTC(),
		ResultAnnouncementDate: r.ResultAnnouncementDate.UTC(),
	}
}

type UpdateElectionStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type ElectionResponse struct {
	ID                     string     `json:"id"`
	Title                  string     `json:"title"`
	Description            string     `json:"description,omitempty"`
	Post                   string     `json:"post"`
	Type                   string     `json:"type,omitempty"`
	NominationStartDate    time.Time  `json:"nominationStartDate"`
	NominationEndDate      time.Time  `json:"nominationEndDate"`
	CampaignStartDate      time.Time  `json:"campaignStartDate"`
	CampaignEndDate        time.Time  `json:"campaignEndDate"`
	VotingDate             time.Time  `json:"votingDate"`
	ResultAnnouncementDate time.Time  `json:"resultAnnouncementDate"`
	Active                 bool       `json:"active"`
	ResultsAnnounced       bool       `json:"resultsAnnounced"`
	WinnerID               string     `json:"winnerId,omitempty"`
	WinnerIDs              []string   `json:"winnerIds,omitempty"`
	AnnouncedAt            *time.Time `json:"announcedAt,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
}

type ElectionMessageResponse struct {
	Message  string           `json:"message"`
	Election ElectionResponse `json:"election"`
}

func TransformElection(e *storage.Election) ElectionResponse {
	return ElectionResponse{
		ID:                     e.ID,
		Title:                  e.Title,
		Description:            e.Description,
		Post:                   e.Post,
		Type:                   e.Type,
		NominationStartDate:    e.NominationStart,
		NominationEndDate:      e.NominationEnd,
		CampaignStartDate:      e.CampaignStart,
		CampaignEndDate:        e.CampaignEnd,
		VotingDate:             e.VotingDate,
		ResultAnnouncementDate: e.ResultAnnouncementDate,
		Active:                 e.Active,
		ResultsAnnounced:       e.ResultsAnnounced,
		WinnerID:               e.WinnerID,
		WinnerIDs:              e.WinnerIDs,
		AnnouncedAt:            e.AnnouncedAt,
		CreatedAt:              e.CreatedAt,
	}
}

func TransformElections(list []*storage.Election) []ElectionResponse {
	out := make([]ElectionResponse, 0, len(list))
	for _, e := range list {
		out = append(out, TransformElection(e))
	}
	return out
}

// ElectionRef is the short election summary embedded in candidacy views.
type ElectionRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Post   string `json:"post"`
	Active bool   `json:"active"`
}

func TransformElectionRef(e *storage.Election) *ElectionRef {
	if e == nil {
		return nil
	}
	return &ElectionRef{ID: e.ID, Title: e.Title, Post: e.Post, Active: e.Active}
}

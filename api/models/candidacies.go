package models

import (
	"time"

	"github.com/alex-pricope/campus-election-system/storage"
)

type ApplyCandidateRequest struct {
	ElectionID string `json:"electionId"`
	Name       string `json:"name"`
	StudentID  string `json:"studentId"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Statement  string `json:"statement"`
	Position   string `json:"position"`
}

// UpdateApplicationRequest changes only the fields that are set.
type UpdateApplicationRequest struct {
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Statement string `json:"statement"`
	Position  string `json:"position"`
}

func (r *UpdateApplicationRequest) Apply(c *storage.Candidacy) {
	if r.Name != "" {
		c.Name = r.Name
	}
	if r.StudentID != "" {
		c.StudentID = r.StudentID
	}
	if r.Email != "" {
		c.Email = r.Email
	}
	if r.Phone != "" {
		c.Phone = r.Phone
	}
	if r.Statement != "" {
		c.Statement = r.Statement
	}
	if r.Position != "" {
		c.Position = r.Position
	}
}

type CandidacyResponse struct {
	ID              string                  `json:"id"`
	UserID          string                  `json:"userId"`
	ElectionID      string                  `json:"electionId"`
	Election        *ElectionRef            `json:"election,omitempty"`
	Name            string                  `json:"name"`
	StudentID       string                  `json:"studentId"`
	Email           string                  `json:"email"`
	Phone           string                  `json:"phone"`
	Statement       string                  `json:"statement"`
	Position        string                  `json:"position"`
	Status          storage.CandidacyStatus `json:"status"`
	RejectionReason string                  `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

func TransformCandidacy(c *storage.Candidacy, e *storage.Election) CandidacyResponse {
	return CandidacyResponse{
		ID:              c.ID,
		UserID:          c.UserID,
		ElectionID:      c.ElectionID,
		Election:        TransformElectionRef(e),
		Name:            c.Name,
		StudentID:       c.StudentID,
		Email:           c.Email,
		Phone:           c.Phone,
		Statement:       c.Statement,
		Position:        c.Position,
		Status:          c.Status,
		RejectionReason: c.RejectionReason,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// TransformCandidacies resolves each candidacy's election from elections when
// present.
func TransformCandidacies(list []*storage.Candidacy, elections map[string]*storage.Election) []CandidacyResponse {
	out := make([]CandidacyResponse, 0, len(list))
	for _, c := range list {
		out = append(out, TransformCandidacy(c, elections[c.ElectionID]))
	}
	return out
}

type ApplicationSummary struct {
	ID       string                  `json:"id"`
	Name     string                  `json:"name"`
	Position string                  `json:"position"`
	Status   storage.CandidacyStatus `json:"status"`
}

type ApplyCandidateResponse struct {
	Message   string             `json:"message"`
	Candidate ApplicationSummary `json:"candidate"`
}

type CandidacyMessageResponse struct {
	Message   string            `json:"message"`
	Candidate CandidacyResponse `json:"candidate"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type CandidateStatusRequest struct {
	Status storage.CandidacyStatus `json:"status"`
	Reason string                  `json:"reason"`
}

type BulkStatusRequest struct {
	CandidateIDs []string                `json:"candidateIds"`
	Status       storage.CandidacyStatus `json:"status"`
	Reason       string                  `json:"reason"`
}

type BulkStatusResponse struct {
	Message      string              `json:"message"`
	UpdatedCount int                 `json:"updatedCount"`
	Candidates   []CandidacyResponse `json:"candidates"`
}

type CandidatesByStatusResponse struct {
	Pending  []CandidacyResponse `json:"pending"`
	Approved []CandidacyResponse `json:"approved"`
	Rejected []CandidacyResponse `json:"rejected"`
}

// PublicCandidate is the view of an approved candidate shown to voters.
type PublicCandidate struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Email     string `json:"email"`
	Position  string `json:"position"`
	Statement string `json:"statement"`
}

type ApprovedCandidatesResponse struct {
	ElectionID string            `json:"electionId"`
	Candidates []PublicCandidate `json:"candidates"`
}

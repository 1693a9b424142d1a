package election

import (
	"strings"
	"time"
	"unicode/utf16"

	"github.com/alex-pricope/campus-election-system/storage"
)

// NominationGrace is how far in the past a nomination start may lie.
const NominationGrace = 24 * time.Hour

const (
	MinStatementLength = 50
	MaxStatementLength = 500
)

// ValidateNew checks a new election's details and timeline.
// Edges up to the campaign end allow equal dates; voting must be strictly after
// the campaign end and the announcement strictly after voting.
func ValidateNew(e *storage.Election, now time.Time) error {
	if strings.TrimSpace(e.Title) == "" || strings.TrimSpace(e.Post) == "" ||
		e.NominationStart.IsZero() || e.NominationEnd.IsZero() ||
		e.CampaignStart.IsZero() || e.CampaignEnd.IsZero() ||
		e.VotingDate.IsZero() || e.ResultAnnouncementDate.IsZero() {
		return invalid("All date fields and election details are required")
	}

	if e.NominationStart.Before(now.Add(-NominationGrace)) {
		return invalid("Nomination start date cannot be more than 1 day in the past")
	}
	if e.NominationEnd.Before(e.NominationStart) {
		return invalid("Nomination end date must be after nomination start date")
	}
	if e.CampaignStart.Before(e.NominationEnd) {
		return invalid("Campaign start date must be on or after nomination end date")
	}
	if e.CampaignEnd.Before(e.CampaignStart) {
		return invalid("Campaign end date must be after campaign start date")
	}
	if !e.VotingDate.After(e.CampaignEnd) {
		return invalid("Voting date must be after campaign end date")
	}
	if !e.ResultAnnouncementDate.After(e.VotingDate) {
		return invalid("Result announcement date must be after voting date")
	}
	return nil
}

// ValidateStatement bounds the candidate statement. Length is counted in UTF-16
// code units, the way browser clients count it, so characters outside the
// Basic Multilingual Plane count twice.
func ValidateStatement(statement string) error {
	n := statementLength(statement)
	if n < MinStatementLength || n > MaxStatementLength {
		return invalid("Statement must be between 50 and 500 characters")
	}
	return nil
}

func statementLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// ValidateApplication checks a new candidacy before it is stored.
func ValidateApplication(c *storage.Candidacy) error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.StudentID) == "" ||
		strings.TrimSpace(c.Email) == "" || strings.TrimSpace(c.Phone) == "" ||
		c.Statement == "" || strings.TrimSpace(c.Position) == "" || c.ElectionID == "" {
		return invalid("All fields are required")
	}
	return ValidateStatement(c.Statement)
}

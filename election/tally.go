package election

import (
	"math"
	"sort"
	"time"

	"github.com/alex-pricope/campus-election-system/storage"
)

// Standing is one approved candidate's position in a tally.
type Standing struct {
	CandidateID string
	Name        string
	StudentID   string
	Email       string
	Position    string
	Votes       int
	Percentage  float64
	Rank        int
}

type Tally struct {
	ElectionID string
	Standings  []Standing
	TotalVotes int
	MaxVotes   int
	Winners    []Standing
	IsTie      bool
}

// Count builds the tally of an election from its candidacies and the
// per-candidate ballot counts. Only approved candidacies of the election take
// part; ballots for anyone else are ignored, including in the total.
func Count(electionID string, candidacies []*storage.Candidacy, votes map[string]int) *Tally {
	t := &Tally{
		ElectionID: electionID,
		Standings:  make([]Standing, 0, len(candidacies)),
		Winners:    []Standing{},
	}

	for _, c := range candidacies {
		if c.ElectionID != electionID || c.Status != storage.StatusApproved {
			continue
		}
		n := votes[c.ID]
		t.TotalVotes += n
		t.Standings = append(t.Standings, Standing{
			CandidateID: c.ID,
			Name:        c.Name,
			StudentID:   c.StudentID,
			Email:       c.Email,
			Position:    c.Position,
			Votes:       n,
		})
	}

	sort.SliceStable(t.Standings, func(i, j int) bool {
		a, b := t.Standings[i], t.Standings[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.CandidateID < b.CandidateID
	})

	// Competition ranking: equal counts share a rank, the next rank skips.
	for i := range t.Standings {
		s := &t.Standings[i]
		s.Percentage = Percentage(s.Votes, t.TotalVotes)
		if i > 0 && s.Votes == t.Standings[i-1].Votes {
			s.Rank = t.Standings[i-1].Rank
		} else {
			s.Rank = i + 1
		}
	}

	if len(t.Standings) > 0 {
		t.MaxVotes = t.Standings[0].Votes
	}
	if t.MaxVotes > 0 {
		for _, s := range t.Standings {
			if s.Votes == t.MaxVotes {
				t.Winners = append(t.Winners, s)
			}
		}
	}
	t.IsTie = len(t.Winners) > 1

	return t
}

func (t *Tally) WinnerIDs() []string {
	ids := make([]string, 0, len(t.Winners))
	for _, w := range t.Winners {
		ids = append(ids, w.CandidateID)
	}
	return ids
}

// Declare decides whether e can be finalized now and returns the sole winner.
func Declare(e *storage.Election, t *Tally, now time.Time) (*Standing, error) {
	if e.ResultsAnnounced {
		return nil, ErrResultsAnnounced
	}
	if err := ResultsAvailable(e, now); err != nil {
		return nil, err
	}
	if t.MaxVotes == 0 {
		return nil, ErrNoVotes
	}
	if t.IsTie {
		return nil, ErrTie
	}
	w := t.Winners[0]
	return &w, nil
}

// ResolveTie finalizes a tied election with a manually chosen winner.
func ResolveTie(e *storage.Election, t *Tally, candidateID string, now time.Time) (*Standing, error) {
	if e.ResultsAnnounced {
		return nil, ErrResultsAnnounced
	}
	if err := ResultsAvailable(e, now); err != nil {
		return nil, err
	}
	if !t.IsTie {
		return nil, ErrNotTied
	}
	for _, w := range t.Winners {
		if w.CandidateID == candidateID {
			return &w, nil
		}
	}
	return nil, ErrNotAmongTied
}

// Percentage returns part/whole as a percentage rounded to two decimals, or 0
// when whole is 0.
func Percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

// Turnout is the share of eligible voters who cast a ballot.
func Turnout(totalVotes, eligibleVoters int) float64 {
	return Percentage(totalVotes, eligibleVoters)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type HourlyCount struct {
	Date  string
	Hour  int
	Count int
}

// Distribution groups ballots by UTC calendar date and hour, oldest first.
// A zero since keeps every ballot.
func Distribution(ballots []*storage.Ballot, since time.Time) []HourlyCount {
	type key struct {
		date string
		hour int
	}
	counts := make(map[key]int)
	for _, b := range ballots {
		if !since.IsZero() && b.CastAt.Before(since) {
			continue
		}
		at := b.CastAt.UTC()
		counts[key{date: at.Format("2006-01-02"), hour: at.Hour()}]++
	}

	out := make([]HourlyCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, HourlyCount{Date: k.date, Hour: k.hour, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

// Package election holds the voting rules: which phase an election is in,
// whether a ballot may be cast, how ballots are tallied into ranks and winners,
// and the periodic live-count loop.
package election

package models

type ECOfficerSummary struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

type MemoryStats struct {
	Alloc      string `json:"alloc"`
	TotalAlloc string `json:"totalAlloc"`
	Sys        string `json:"sys"`
	HeapInUse  string `json:"heapInUse"`
	NumGC      uint32 `json:"numGC"`
}

type AdminStatsResponse struct {
	Users           int                `json:"users"`
	ECOfficers      int                `json:"ecOfficers"`
	ECOfficerDocs   []ECOfficerSummary `json:"ecOfficerDocs"`
	ActiveElections int                `json:"activeElections"`
	TotalVotes      int                `json:"totalVotes"`
	Uptime          float64            `json:"uptime"`
	Goroutines      int                `json:"goroutines"`
	Memory          MemoryStats        `json:"memory"`
}

type DBStatsResponse struct {
	Students   int `json:"students"`
	ECOfficers int `json:"ecOfficers"`
	Votes      int `json:"votes"`
}

type ECStatsResponse struct {
	Students        int `json:"students"`
	ECOfficers      int `json:"ecOfficers"`
	TotalElections  int `json:"totalElections"`
	ActiveElections int `json:"activeElections"`
	Candidates      int `json:"candidates"`
	Pending         int `json:"pendingCandidates"`
}

type StudentRemovedResponse struct {
	Message string       `json:"message"`
	Student UserResponse `json:"student"`
}

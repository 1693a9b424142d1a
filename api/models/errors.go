package models

import "time"

type ErrorResponse struct {
	Error       string        `json:"error"`
	AvailableAt *time.Time    `json:"availableAt,omitempty"`
	Candidates  []WinnerEntry `json:"candidates,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

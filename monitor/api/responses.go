package api

import "time"

type StatusResponseDTO struct {
	RunID        string    `json:"run_id"`
	Strategy     string    `json:"strategy"`
	State        string    `json:"state"`
	CurrentRound int       `json:"current_round"`
	TotalRounds  int       `json:"total_rounds"`
	NumClients   int       `json:"num_clients"`
	LatestLoss   float64   `json:"latest_loss"`
	StartTime    time.Time `json:"start_time"`
	Error        string    `json:"error,omitempty"`
}

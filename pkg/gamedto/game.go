// Package gamedto is the JSON shape of a finished game shared by the Redis
// sink and the webhook.
package gamedto

import "time"

type FinishedGame struct {
	GameID         string    `json:"game_id"`
	SessionID      string    `json:"session_id"`
	Black          string    `json:"black"`
	White          string    `json:"white"`
	Player         string    `json:"player"`
	Color          string    `json:"color"`
	Labels         []string  `json:"labels"`
	Outcome        string    `json:"outcome"`
	Special        string    `json:"special,omitempty"`
	Moves          []string  `json:"moves"`
	Plies          int       `json:"plies"`
	BlackRemaining int       `json:"black_remaining"`
	WhiteRemaining int       `json:"white_remaining"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	DurationMS     int64     `json:"duration_ms"`
}

// Outcome values from the client's point of view.
const (
	OutcomeWin     = "win"
	OutcomeLose    = "lose"
	OutcomeDraw    = "draw"
	OutcomeUnknown = "unknown"
)

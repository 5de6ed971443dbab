package types

import "time"

type PlayerView struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	EmpireID int    `json:"empire_id"`
	IsHost   bool   `json:"is_host"`
}

type SettingsView struct {
	WorldSize    string   `json:"world_size"`
	WorldType    string   `json:"world_type"`
	GameSpeed    string   `json:"game_speed"`
	VictoryTypes []string `json:"victory_types"`
}

type ResultView struct {
	WinnerID   int    `json:"winner_id"`
	WinnerName string `json:"winner_name"`
	Victory    string `json:"victory"`
	Turns      int    `json:"turns"`
}

// LobbyView is the admin snapshot of the match.
type LobbyView struct {
	MatchID       string       `json:"match_id"`
	Phase         string       `json:"phase"` // "lobby" | "game"
	Turn          int          `json:"turn"`
	TurnTimeLimit string       `json:"turn_time_limit,omitempty"`
	Players       []PlayerView `json:"players"`
	Settings      SettingsView `json:"settings"`
	Result        *ResultView  `json:"result,omitempty"`
}

type MatchRecord struct {
	ID         string    `json:"id"`
	WinnerID   int       `json:"winner_id"`
	WinnerName string    `json:"winner_name"`
	Victory    string    `json:"victory"`
	Turns      int       `json:"turns"`
	Players    int       `json:"players"`
	EndedAt    time.Time `json:"ended_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

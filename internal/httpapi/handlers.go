package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/hub"
	"github.com/arwic/dominion/internal/store"
	"github.com/arwic/dominion/internal/transport"
	"github.com/arwic/dominion/internal/types"
)

// Match is the part of the hub the admin API drives.
type Match interface {
	State(ctx context.Context) (hub.View, error)
	EndTurn(ctx context.Context) error
}

// Peers exposes transport counters.
type Peers interface {
	Stats() []transport.ConnStats
}

const requestTimeout = 2 * time.Second

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func GetLobby(m Match) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		v, err := m.State(ctx)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusOK, lobbyView(v))
	}
}

func EndTurn(m Match) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		err := m.EndTurn(ctx)
		switch {
		case errors.Is(err, hub.ErrNotInGame):
			writeError(w, http.StatusConflict, err)
		case err != nil:
			// Frames that did not reach every peer still ended the turn.
			writeError(w, http.StatusAccepted, err)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func GetStats(p Peers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conns := p.Stats()
		var total transport.Stats
		for _, c := range conns {
			total = total.Add(c.Stats)
		}
		writeJSON(w, http.StatusOK, struct {
			Connections []transport.ConnStats `json:"connections"`
			Total       transport.Stats       `json:"total"`
		}{Connections: conns, Total: total})
	}
}

func GetResults(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if q := r.URL.Query().Get("limit"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
				return
			}
			limit = n
		}
		results, err := s.Results(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out := make([]types.MatchRecord, 0, len(results))
		for _, res := range results {
			out = append(out, types.MatchRecord{
				ID:         res.ID.String(),
				WinnerID:   res.WinnerID,
				WinnerName: res.WinnerName,
				Victory:    res.Victory,
				Turns:      res.Turns,
				Players:    res.Players,
				EndedAt:    res.EndedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func lobbyView(v hub.View) types.LobbyView {
	out := types.LobbyView{
		MatchID: v.MatchID.String(),
		Phase:   v.Phase.String(),
		Turn:    v.Turn,
		Players: make([]types.PlayerView, 0, len(v.Lobby.Players)),
		Settings: types.SettingsView{
			WorldSize:    v.Lobby.WorldSize.String(),
			WorldType:    v.Lobby.WorldType.String(),
			GameSpeed:    v.Lobby.GameSpeed.String(),
			VictoryTypes: []string{},
		},
	}
	if v.TimeLimit > 0 {
		out.TurnTimeLimit = v.TimeLimit.String()
	}
	for _, p := range v.Lobby.Players {
		out.Players = append(out.Players, types.PlayerView{ID: p.InstanceID, Name: p.Name, EmpireID: p.EmpireID, IsHost: p.IsHost})
	}
	for vt := game.VictoryType(0); vt < game.VictoryTypeCount; vt++ {
		if v.Lobby.VictoryEnabled(vt) {
			out.Settings.VictoryTypes = append(out.Settings.VictoryTypes, vt.String())
		}
	}
	if v.Over {
		out.Result = &types.ResultView{
			WinnerID:   v.Result.WinnerID,
			WinnerName: v.Result.WinnerName,
			Victory:    v.Result.Victory.String(),
			Turns:      v.Result.Turns,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, types.ErrorResponse{Error: err.Error()})
}

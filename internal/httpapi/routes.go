package httpapi

import (
	"net/http"

	"github.com/arwic/dominion/internal/store"
	"github.com/arwic/dominion/internal/transport"
	"github.com/arwic/dominion/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Deps struct {
	Match  Match
	Server *transport.Server
	Store  store.Store
	Logger *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/lobby", GetLobby(d.Match))
	r.Post("/turn/end", EndTurn(d.Match))
	r.Get("/results", GetResults(d.Store))
	if d.Server != nil {
		r.Get("/stats", GetStats(d.Server))
		r.Get("/ws", ws.Handler(d.Server, d.Logger))
	}
	return r
}

// Package api exposes a read-only observer for a running venue: REST
// snapshots of prices, depth, and trades, plus a WebSocket stream of
// per-tick summaries. Snapshots taken mid-tick can be one tick stale;
// the observer has no write path into the simulation.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/quantmesh/tickmesh/pkg/market"
)

type Server struct {
	ex     *market.Exchange
	router *mux.Router
	hub    *Hub
}

func NewServer(ex *market.Exchange) *Server {
	s := &Server{
		ex:     ex,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/prices", s.handleGetPrices).Methods("GET")
	api.HandleFunc("/instruments/{id}/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/status", s.handleGetStatus).Methods("GET")

	s.router.HandleFunc("/ws", s.hub.serve)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start blocks serving HTTP; run it on its own goroutine.
func (s *Server) Start(addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	log.Printf("[api] observer listening on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// PublishTick pushes a tick summary to WebSocket observers.
func (s *Server) PublishTick(tick int, trades int) {
	s.hub.Broadcast(TickUpdate{
		Type:   "tick",
		Tick:   tick,
		Prices: s.ex.AllPrices(),
		Trades: trades,
	})
}

func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, PricesResponse{
		Rank:   s.ex.Rank(),
		Local:  s.ex.AllPrices(),
		Global: s.ex.GlobalPrices(),
	})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid instrument id", http.StatusBadRequest)
		return
	}
	snap, ok := s.ex.Snapshot(id)
	if !ok {
		http.Error(w, "unknown instrument", http.StatusNotFound)
		return
	}
	writeJSON(w, BookResponse{
		Instrument: id,
		LastPrice:  snap.LastPrice,
		HistAvg:    snap.HistAvg,
		Bids:       snap.Bids,
		Asks:       snap.Asks,
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	all := s.ex.Trades()
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]TradeInfo, len(all))
	for i, t := range all {
		out[i] = tradeInfo(t)
	}
	writeJSON(w, TradesResponse{Count: len(out), Trades: out})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StatusResponse{
		Rank:        s.ex.Rank(),
		Instruments: s.ex.Instruments(),
		Trades:      len(s.ex.Trades()),
		Dropped:     s.ex.Dropped(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode: %v", err)
	}
}

// Package api exposes the engine over REST and WebSocket: read paths
// for markets, positions, config and the event log, plus submission of
// signed instruction envelopes. Indexers consume the /ws event stream.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/predictr-labs/predictr/pkg/app/core"
	"github.com/predictr-labs/predictr/pkg/app/core/transaction"
	"github.com/predictr-labs/predictr/pkg/app/engine"
	"github.com/predictr-labs/predictr/pkg/storage"
)

// Server handles REST API and WebSocket connections.
type Server struct {
	engine *engine.Engine
	store  *storage.Store
	router *mux.Router
	hub    *Hub
}

// NewServer wires the API to an engine and its store. The hub is
// attached to the engine's event sink.
func NewServer(eng *engine.Engine, store *storage.Store) *Server {
	s := &Server{
		engine: eng,
		store:  store,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}
	eng.OnEvent = s.hub.BroadcastEvent
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market endpoints
	api.HandleFunc("/markets", s.handleListMarkets).Methods("GET")
	api.HandleFunc("/markets/{id}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{id}/quote", s.handleQuote).Methods("GET")
	api.HandleFunc("/markets/{id}/positions/{address}", s.handleGetPosition).Methods("GET")

	// Config and accounts
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")

	// Event log (indexer bootstrap; live tail is /ws)
	api.HandleFunc("/events", s.handleGetEvents).Methods("GET")

	// Instruction submission
	api.HandleFunc("/instructions", s.handleSubmitInstruction).Methods("POST")

	// WebSocket event stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the HTTP server.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      c.Handler(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	log.Printf("[api] listening on %s", addr)
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  uint32 `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var coded *core.Error
	if errors.As(err, &coded) {
		resp.Code = uint32(coded.Code)
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := s.engine.Config()
	if cfg == nil {
		writeError(w, http.StatusNotFound, core.NewError(core.ErrInvalidGlobalConfig, "not initialized"))
		return
	}
	writeJSON(w, http.StatusOK, newConfigView(cfg))
}

func (s *Server) handleListMarkets(w http.ResponseWriter, _ *http.Request) {
	markets := s.engine.ListMarkets()
	out := make([]marketView, 0, len(markets))
	for _, m := range markets {
		out = append(out, newMarketView(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := transaction.ParseMarketID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, err := s.engine.GetMarket(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketView(m))
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	id, err := transaction.ParseMarketID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	outcome := r.URL.Query().Get("outcome") != "no"
	budget, err := strconv.ParseUint(r.URL.Query().Get("budget"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("budget must be a base-unit integer"))
		return
	}
	q, err := s.engine.QuoteBuy(id, outcome, budget)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := transaction.ParseMarketID(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !common.IsHexAddress(vars["address"]) {
		writeError(w, http.StatusBadRequest, errors.New("invalid address"))
		return
	}
	pos, err := s.engine.GetPosition(id, common.HexToAddress(vars["address"]))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, newPositionView(pos))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addrStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addrStr) {
		writeError(w, http.StatusBadRequest, errors.New("invalid address"))
		return
	}
	addr := common.HexToAddress(addrStr)
	writeJSON(w, http.StatusOK, map[string]any{
		"address":  addr.Hex(),
		"lamports": s.engine.Ledger().Balance(addr),
		"nonce":    s.engine.Ledger().Nonce(addr),
	})
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, []core.Event{})
		return
	}
	events, err := s.store.RecentEvents(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleSubmitInstruction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ev, err := s.engine.Apply(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "applied",
		"event":  ev,
	})
}

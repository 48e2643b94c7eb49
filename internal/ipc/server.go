package ipc

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hearthcore/hearth/pkg/capability"
)

// Server is the admin/debug HTTP+WS surface, bound to a unix domain
// socket at the path given in config (spec.md §6's local IPC surface).
type Server struct {
	lister  Lister
	killer  Killer
	spawner Spawner
	logger  *slog.Logger

	router   chi.Router
	listener net.Listener
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

func NewServer(lister Lister, killer Killer, spawner Spawner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		lister:  lister,
		killer:  killer,
		spawner: spawner,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // local socket only, no browser CORS concern
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/processes", s.handleList)
	r.Post("/processes/kill", s.handleKill)
	r.Post("/processes/spawn", s.handleSpawn)
	r.Get("/ws/processes", s.handleWatch)
	return r
}

// Listen binds the unix domain socket at path, removing any stale
// socket file left behind by a previous, uncleanly terminated run.
func (s *Server) Listen(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	s.listener = ln
	s.httpSrv = &http.Server{Handler: s.router}
	return nil
}

// Serve blocks serving connections until the listener closes.
func (s *Server) Serve() error {
	return s.httpSrv.Serve(s.listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	infos := s.lister.Snapshot()
	views := make([]ProcessView, 0, len(infos))
	for _, info := range infos {
		views = append(views, toView(info))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	var req KillRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := parseProcessID(req.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.killer.KillByID(id); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req SpawnRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := s.spawner.SpawnGuest(req.Digest, req.Entry)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, SpawnResponse{ID: id.String()})
}

// handleWatch upgrades to a websocket and pushes a ListProcesses
// snapshot once a second until the client disconnects — the same
// "bridge an internal state source to an external transport" shape as
// the teacher's ws delivery handler, swapping per-user chat events for
// periodic process-table snapshots.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ipc: websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		infos := s.lister.Snapshot()
		views := make([]ProcessView, 0, len(infos))
		for _, info := range infos {
			views = append(views, toView(info))
		}
		if err := conn.WriteJSON(views); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func parseProcessID(s string) (capability.ProcessID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return capability.ProcessID{}, err
	}
	return capability.ProcessID(id), nil
}

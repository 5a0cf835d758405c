package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-sharing/internal/dispatch"
	"github.com/example/ride-sharing/internal/engine"
	"github.com/example/ride-sharing/internal/models"
)

// Directory is the user/vehicle registry exposed over HTTP.
type Directory interface {
	engine.Directory
	AddUser(name string) (string, error)
	AddVehicle(userID, category, number string, totalSeats int) error
	Vehicles(userID string) ([]models.Vehicle, error)
}

type Server struct {
	Engine       *engine.Engine
	Directory    Directory
	WSReg        *dispatch.WSRegistry
	DefaultSeats int

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(eng *engine.Engine, dir Directory, ws *dispatch.WSRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{Engine: eng, Directory: dir, WSReg: ws, DefaultSeats: 1, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/users", s.handleAddUser).Methods("POST")
	api.HandleFunc("/users/{user_id}/vehicles", s.handleAddVehicle).Methods("POST")
	api.HandleFunc("/users/{user_id}/vehicles", s.handleListVehicles).Methods("GET")
	api.HandleFunc("/users/{user_id}/stats", s.handleUserStats).Methods("GET")
	api.HandleFunc("/rides", s.handleOfferRide).Methods("POST")
	api.HandleFunc("/rides", s.handleListRides).Methods("GET")
	api.HandleFunc("/rides/select", s.handleSelectRide).Methods("POST")
	api.HandleFunc("/rides/{ride_id}", s.handleGetRide).Methods("GET")
	api.HandleFunc("/rides/{ride_id}/selections", s.handleRideSelections).Methods("GET")
	api.HandleFunc("/rides/{ride_id}/end", s.handleEndRide).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/cancel", s.handleCancelRide).Methods("POST")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{user_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type addUserRequest struct {
	Name string `json:"name"`
}

type addVehicleRequest struct {
	Category string `json:"category"`
	Number   string `json:"number"`
	Seats    int    `json:"seats"`
}

type offerRideRequest struct {
	UserID        string `json:"user_id"`
	VehicleNumber string `json:"vehicle_number"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	Seats         int    `json:"seats"`
}

type selectRideRequest struct {
	RiderID     string `json:"rider_id"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Seats       int    `json:"seats"`
	Category    string `json:"category"`
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := s.Directory.AddUser(req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": id})
}

func (s *Server) handleAddVehicle(w http.ResponseWriter, r *http.Request) {
	var req addVehicleRequest
	if !decode(w, r, &req) {
		return
	}
	userID := mux.Vars(r)["user_id"]
	if err := s.Directory.AddVehicle(userID, req.Category, req.Number, req.Seats); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	vs, err := s.Directory.Vehicles(mux.Vars(r)["user_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func (s *Server) handleOfferRide(w http.ResponseWriter, r *http.Request) {
	var req offerRideRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := s.Engine.OfferRide(r.Context(), engine.OfferCommand{
		UserID:        req.UserID,
		VehicleNumber: req.VehicleNumber,
		Origin:        req.Origin,
		Destination:   req.Destination,
		Seats:         req.Seats,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"ride_id": id})
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	rides := s.Engine.ActiveRides()
	sort.Slice(rides, func(i, j int) bool { return rides[i].OfferedAt.Before(rides[j].OfferedAt) })
	writeJSON(w, http.StatusOK, rides)
}

func (s *Server) handleSelectRide(w http.ResponseWriter, r *http.Request) {
	var req selectRideRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Seats == 0 {
		req.Seats = s.DefaultSeats
	}
	legs, ok, err := s.Engine.SelectRide(r.Context(), engine.SelectCommand{
		RiderID:     req.RiderID,
		Origin:      req.Origin,
		Destination: req.Destination,
		Seats:       req.Seats,
		Category:    req.Category,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no rides found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"legs": legs})
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.Engine.Ride(mux.Vars(r)["ride_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleRideSelections(w http.ResponseWriter, r *http.Request) {
	sels, err := s.Engine.Selections(mux.Vars(r)["ride_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sels)
}

func (s *Server) handleEndRide(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.EndRide(r.Context(), mux.Vars(r)["ride_id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.CancelRide(r.Context(), mux.Vars(r)["ride_id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.Engine.AllStats()
	sort.Slice(stats, func(i, j int) bool { return stats[i].UserID < stats[j].UserID })
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if _, err := s.Directory.LookupUser(userID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Stats(userID))
}

var upgrader = websocket.Upgrader{}

// handleWS keeps a ride owner's session open until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["user_id"]
	if _, err := s.Directory.LookupUser(id); err != nil {
		s.writeError(w, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "user_id", id, "error", err)
		return
	}
	s.WSReg.Add(id, conn)
	go func() {
		defer s.WSReg.Remove(id, conn)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				_ = conn.Close()
				return
			}
		}
	}()
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case models.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrVehicleUnavailable):
		status = http.StatusConflict
	case models.IsNotFound(err):
		status = http.StatusNotFound
	case models.IsInvalidState(err), models.IsCapacityExceeded(err):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

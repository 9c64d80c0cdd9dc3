package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/trv-controller/internal/config"
	"github.com/thatsimonsguy/trv-controller/internal/coordinator"
	"github.com/thatsimonsguy/trv-controller/internal/model"
)

type Server struct {
	coord *coordinator.Coordinator
}

type RoomRequest struct {
	model.RoomConfig
	TargetTemp float64        `json:"target_temp,omitempty"`
	Mode       model.HVACMode `json:"mode,omitempty"`
}

type TargetRequest struct {
	Target float64 `json:"target"`
}

type ModeRequest struct {
	Mode string `json:"mode"`
}

type ValveRequest struct {
	Position int `json:"position"`
}

type ThresholdsRequest struct {
	CloseThreshold float64 `json:"close_threshold"`
	OpenThreshold  float64 `json:"open_threshold"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(coord *coordinator.Coordinator) *Server {
	return &Server{coord: coord}
}

func (s *Server) Start(port int) error {
	mux := http.NewServeMux()

	// Add CORS middleware
	corsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		mux.ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/rooms", s.handleRooms)
	mux.HandleFunc("/api/rooms/", s.handleRoomOperations)

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", addr).Msg("Starting REST API server")

	return http.ListenAndServe(addr, corsHandler)
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getRooms(w, r)
	case http.MethodPost:
		s.addRoom(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleRoomOperations(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	parts := strings.Split(path, "/")

	if len(parts) < 1 || parts[0] == "" {
		s.writeError(w, http.StatusNotFound, "Room ID required")
		return
	}

	roomID := parts[0]

	if len(parts) == 1 {
		// /api/rooms/{id}
		switch r.Method {
		case http.MethodGet:
			s.getRoom(w, r, roomID)
		case http.MethodDelete:
			s.removeRoom(w, r, roomID)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	} else if len(parts) == 2 {
		operation := parts[1]

		if operation == "ws" && r.Method == http.MethodGet {
			s.streamRoom(w, r, roomID)
			return
		}

		if r.Method != http.MethodPut {
			s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		switch operation {
		case "target":
			s.setRoomTarget(w, r, roomID)
		case "mode":
			s.setRoomMode(w, r, roomID)
		case "valve":
			s.setRoomValve(w, r, roomID)
		case "thresholds":
			s.setRoomThresholds(w, r, roomID)
		default:
			s.writeError(w, http.StatusNotFound, "Unknown operation")
		}
	} else {
		s.writeError(w, http.StatusNotFound, "Invalid path")
	}
}

func (s *Server) getRooms(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.coord.Attributes())
}

func (s *Server) addRoom(w http.ResponseWriter, r *http.Request) {
	var req RoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	cfg := req.RoomConfig
	config.ApplyRoomDefaults(&cfg)
	rt := model.Runtime{
		TargetTemp:     req.TargetTemp,
		Mode:           req.Mode,
		CloseThreshold: cfg.CloseThreshold,
		OpenThreshold:  cfg.OpenThreshold,
	}

	if err := s.coord.AddRoom(cfg, rt); err != nil {
		s.writeDomainError(w, err)
		return
	}

	log.Info().Str("room_id", cfg.ID).Msg("Room added via API")
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request, roomID string) {
	eng, err := s.coord.Room(roomID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, eng.Attributes())
}

func (s *Server) removeRoom(w http.ResponseWriter, r *http.Request, roomID string) {
	if err := s.coord.RemoveRoom(roomID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	log.Info().Str("room_id", roomID).Msg("Room removed via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) setRoomTarget(w http.ResponseWriter, r *http.Request, roomID string) {
	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	eng, err := s.coord.Room(roomID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if err := eng.SetTargetTemperature(req.Target); err != nil {
		s.writeDomainError(w, err)
		return
	}

	log.Info().Str("room_id", roomID).Float64("target", req.Target).Msg("Room target updated via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) setRoomMode(w http.ResponseWriter, r *http.Request, roomID string) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	mode := model.HVACMode(req.Mode)
	if !model.ValidMode(mode) {
		s.writeError(w, http.StatusBadRequest, "Invalid mode. Valid modes: heat, off")
		return
	}

	eng, err := s.coord.Room(roomID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if err := eng.SetMode(mode); err != nil {
		s.writeDomainError(w, err)
		return
	}

	log.Info().Str("room_id", roomID).Str("mode", req.Mode).Msg("Room mode updated via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) setRoomValve(w http.ResponseWriter, r *http.Request, roomID string) {
	var req ValveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	eng, err := s.coord.Room(roomID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if err := eng.SetValvePosition(req.Position); err != nil {
		s.writeDomainError(w, err)
		return
	}

	log.Info().Str("room_id", roomID).Int("position", req.Position).Msg("Room valve updated via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) setRoomThresholds(w http.ResponseWriter, r *http.Request, roomID string) {
	var req ThresholdsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	eng, err := s.coord.Room(roomID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if err := eng.SetThresholds(req.CloseThreshold, req.OpenThreshold); err != nil {
		s.writeDomainError(w, err)
		return
	}

	log.Info().Str("room_id", roomID).
		Float64("close", req.CloseThreshold).Float64("open", req.OpenThreshold).
		Msg("Room thresholds updated via API")
	w.WriteHeader(http.StatusOK)
}

// writeDomainError maps controller errors onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrRoomNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidRange), errors.Is(err, model.ErrInvalidThresholds):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrDuplicateRoom), errors.Is(err, model.ErrHeatingBlocked):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("Request failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"door-opener-bridge/internal/bridge"
	"door-opener-bridge/internal/door"
	"door-opener-bridge/internal/health"
	"door-opener-bridge/internal/logging"
	"door-opener-bridge/internal/types"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DoorResponse describes a tracked door
type DoorResponse struct {
	door.Record
	HeldOpen bool       `json:"heldOpen"`
	OpenTill *time.Time `json:"openTill,omitempty"`
}

// InvertRequest is the body of PUT /doors/{id}/invert
type InvertRequest struct {
	InvertOpen *bool `json:"invertOpen"`
}

// OpenResponse tells the host which toggle opens the door
type OpenResponse struct {
	DoorResponse
	Direction types.ToggleType `json:"direction"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		report := s.health.Check(r.Context())

		statusCode := http.StatusOK
		if report.Status == health.HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		s.writeJSON(w, statusCode, report)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   logging.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var event types.ToggleEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.submit(w, r, types.NewToggleEnvelope(event))
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var event types.InteractionEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.submit(w, r, types.NewInteractionEnvelope(&event))
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, env types.Envelope) {
	result, err := s.events.Submit(r.Context(), env)
	switch {
	case errors.Is(err, types.ErrInvalidEnvelope):
		s.writeError(w, http.StatusBadRequest, "INVALID_EVENT", err.Error())
	case errors.Is(err, bridge.ErrDispatcherClosed):
		s.writeError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", err.Error())
	case err != nil:
		logging.LogTransportError(logging.NewTransportLogger(s.logger, "http"), err, "http", "submit")
		s.writeError(w, http.StatusServiceUnavailable, "DISPATCH_FAILED", err.Error())
	default:
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleListDoors(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	doors := s.doors.All()

	response := make([]DoorResponse, 0, len(doors))
	for _, d := range doors {
		response = append(response, newDoorResponse(d, now))
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetDoor(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDoor(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, newDoorResponse(d, time.Now()))
}

func (s *Server) handleSetInvert(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDoor(w, r)
	if !ok {
		return
	}

	var req InvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	if req.InvertOpen == nil {
		d.ToggleInvertOpen()
	} else {
		d.SetInvertOpen(*req.InvertOpen)
	}

	s.logger.WithFields(logrus.Fields{
		"door_id":     d.ID(),
		"invert_open": d.InvertOpen(),
	}).Info("Door invert flag changed")

	s.writeJSON(w, http.StatusOK, newDoorResponse(d, time.Now()))
}

// handleOpenDoor holds the door open until the host reports the toggle it is told to perform
func (s *Server) handleOpenDoor(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookupDoor(w, r)
	if !ok {
		return
	}
	if !d.Enabled() {
		s.writeError(w, http.StatusConflict, "DOOR_DISABLED", "door is disabled")
		return
	}

	d.MarkOpening()
	direction := d.OpenDirection()

	s.logger.WithFields(logrus.Fields{
		"door_id":   d.ID(),
		"direction": direction.String(),
	}).Info("Door open requested")

	s.writeJSON(w, http.StatusOK, OpenResponse{
		DoorResponse: newDoorResponse(d, time.Now()),
		Direction:    direction,
	})
}

func (s *Server) lookupDoor(w http.ResponseWriter, r *http.Request) (*door.TrackedDoor, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_DOOR_ID", err.Error())
		return nil, false
	}

	d, err := s.doors.Get(types.DoorID(id))
	if err != nil {
		if errors.Is(err, door.ErrDoorNotFound) {
			s.writeError(w, http.StatusNotFound, "DOOR_NOT_FOUND", err.Error())
		} else {
			s.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		}
		return nil, false
	}
	return d, true
}

func newDoorResponse(d *door.TrackedDoor, now time.Time) DoorResponse {
	response := DoorResponse{
		Record:   d.Record(),
		HeldOpen: d.HeldOpen(now),
	}
	if till := d.OpenTill(); !till.IsZero() {
		response.OpenTill = &till
	}
	return response
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Code:    statusCode,
		Message: message,
	})
}

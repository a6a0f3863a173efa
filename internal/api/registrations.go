package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"door-opener-bridge/internal/door"
	"door-opener-bridge/internal/registration"
	"door-opener-bridge/internal/types"
)

// Intent names accepted by POST /registrations/{actor}
const (
	IntentSelectBlock  = "select_block"
	IntentSelectRegion = "select_region"
)

var errUnknownIntent = errors.New("unknown intent")

// RegisterRequest is the body of POST /registrations/{actor}.
// select_block moves DoorID to the next right-clicked block.
// select_region applies the door settings to every door inside the next two left-clicked corners.
type RegisterRequest struct {
	Intent     string       `json:"intent"`
	DoorID     types.DoorID `json:"doorId,omitempty"`
	InvertOpen *bool        `json:"invertOpen,omitempty"`
	StayOpen   *int         `json:"stayOpen,omitempty"`
	Enabled    *bool        `json:"enabled,omitempty"`
}

// RegistrationResponse describes the registration state of an actor
type RegistrationResponse struct {
	Actor   uuid.UUID `json:"actor"`
	Intent  string    `json:"intent,omitempty"`
	Pending bool      `json:"pending"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.parseActor(w, r)
	if !ok {
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	intent, err := s.buildIntent(actor, req)
	switch {
	case errors.Is(err, door.ErrDoorNotFound):
		s.writeError(w, http.StatusNotFound, "DOOR_NOT_FOUND", err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusBadRequest, "INVALID_INTENT", err.Error())
		return
	}

	s.registrations.Register(actor, intent)
	s.logger.WithFields(logrus.Fields{
		"actor":  actor,
		"intent": req.Intent,
	}).Info("Interaction registration created")

	s.writeJSON(w, http.StatusCreated, RegistrationResponse{Actor: actor, Intent: req.Intent, Pending: true})
}

func (s *Server) buildIntent(actor uuid.UUID, req RegisterRequest) (registration.Intent, error) {
	switch req.Intent {
	case IntentSelectBlock:
		if _, err := s.doors.Get(req.DoorID); err != nil {
			return nil, err
		}
		return &registration.SelectBlock{OnSelect: s.moveDoor(actor, req.DoorID)}, nil

	case IntentSelectRegion:
		if req.InvertOpen == nil && req.StayOpen == nil && req.Enabled == nil {
			return nil, fmt.Errorf("%s needs at least one of invertOpen, stayOpen or enabled", IntentSelectRegion)
		}
		if req.StayOpen != nil && *req.StayOpen < 0 {
			return nil, fmt.Errorf("stayOpen must not be negative")
		}
		return &registration.SelectRegion{
			OnFirst: func(world string, pos types.BlockPos) {
				s.logger.WithFields(logrus.Fields{
					"actor": actor,
					"world": world,
					"pos":   pos.String(),
				}).Debug("First region corner selected")
			},
			OnSelect: s.configureRegion(actor, req),
		}, nil

	default:
		return nil, fmt.Errorf("%w %q", errUnknownIntent, req.Intent)
	}
}

func (s *Server) moveDoor(actor uuid.UUID, id types.DoorID) func(string, types.BlockPos) error {
	return func(world string, pos types.BlockPos) error {
		d, err := s.doors.Get(id)
		if err != nil {
			return err
		}
		d.MoveTo(world, pos)

		s.logger.WithFields(logrus.Fields{
			"actor":   actor,
			"door_id": id,
			"world":   world,
			"pos":     pos.String(),
		}).Info("Door moved")
		return nil
	}
}

func (s *Server) configureRegion(actor uuid.UUID, req RegisterRequest) func(registration.Region) error {
	return func(region registration.Region) error {
		var changed int
		for _, d := range s.doors.All() {
			if !region.Contains(d.World(), d.Position()) {
				continue
			}
			if req.InvertOpen != nil {
				d.SetInvertOpen(*req.InvertOpen)
			}
			if req.StayOpen != nil {
				d.SetStayOpen(*req.StayOpen)
			}
			if req.Enabled != nil {
				d.SetEnabled(*req.Enabled)
			}
			changed++
		}

		s.logger.WithFields(logrus.Fields{
			"actor": actor,
			"world": region.World,
			"min":   region.Min.String(),
			"max":   region.Max.String(),
			"doors": changed,
		}).Info("Region doors configured")
		return nil
	}
}

func (s *Server) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.parseActor(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, RegistrationResponse{Actor: actor, Pending: s.registrations.Pending(actor)})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.parseActor(w, r)
	if !ok {
		return
	}

	if !s.registrations.Unregister(actor) {
		s.writeError(w, http.StatusNotFound, "NOT_REGISTERED", "no pending registration for actor")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) parseActor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actor, err := uuid.Parse(mux.Vars(r)["actor"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_ACTOR", err.Error())
		return uuid.Nil, false
	}
	return actor, true
}

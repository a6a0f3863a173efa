package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"door-opener-bridge/internal/bridge"
	"door-opener-bridge/internal/logging"
	"door-opener-bridge/internal/types"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsMaxMessage   = 64 * 1024
)

// StreamReply answers one envelope received on the event stream
type StreamReply struct {
	bridge.Result
	Error string `json:"error,omitempty"`
}

// handleStream upgrades to a websocket on which the host pushes envelopes
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := logging.NewTransportLogger(s.logger, "websocket").WithFields(logrus.Fields{
		"connection_id": uuid.NewString(),
		"remote_addr":   r.RemoteAddr,
	})
	logger.Info("Event stream connected")

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	// The request context is not cancelled on hijacked connections, so derive our own.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).Warn("Event stream closed unexpectedly")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if messageType != websocket.TextMessage {
			logger.Warn("Binary messages not supported")
			continue
		}

		reply, submitErr := s.handleStreamMessage(ctx, logger, data)

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(reply); err != nil {
			logger.WithError(err).Error("Failed to write WebSocket message")
			break
		}

		if errors.Is(submitErr, bridge.ErrDispatcherClosed) {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			break
		}
	}

	logger.Info("Event stream disconnected")
}

func (s *Server) handleStreamMessage(ctx context.Context, logger *logrus.Entry, data []byte) (StreamReply, error) {
	env, err := types.DecodeEnvelope(data)
	if err != nil {
		logging.LogTransportError(logger, err, "websocket", "decode")
		return StreamReply{Error: err.Error()}, err
	}

	result, err := s.events.Submit(ctx, env)
	if err != nil {
		return StreamReply{Result: bridge.Result{Type: env.Type}, Error: err.Error()}, err
	}
	return StreamReply{Result: result}, nil
}

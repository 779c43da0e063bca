package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-reality/engine"
)

// wsRequest is one inbound WebSocket frame.
type wsRequest struct {
	InputText string `json:"input_text"`
}

// handleWebSocket runs one session per connection. The session ends when
// the socket closes.
func (s *Server) handleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			s.logger.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		sess := s.sessions.Start(r.URL.Query().Get("user_id"))
		defer s.sessions.End(sess.ID())

		logger := s.logger.With(zap.String("session", sess.ID()), zap.String("owner", sess.OwnerID()))
		logger.Info("websocket connected")

		ctx := r.Context()
		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				if !isDecodeError(err) {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						logger.Warn("websocket closed unexpectedly", zap.Error(err))
					}
					logger.Info("websocket disconnected", zap.Int("turns", sess.Len()))
					return
				}
				// A malformed frame leaves the connection usable.
				if err := conn.WriteJSON(errorResponse{Error: "invalid JSON frame"}); err != nil {
					return
				}
				continue
			}

			out, err := s.engine.Run(ctx, &engine.Input{Text: req.InputText, Session: sess})
			if err != nil {
				status, msg := statusFor(err)
				if status >= http.StatusInternalServerError {
					logger.Error("turn failed", zap.Error(err))
				}
				if err := conn.WriteJSON(errorResponse{Error: msg}); err != nil {
					return
				}
				continue
			}
			if err := conn.WriteJSON(out.Response()); err != nil {
				return
			}
		}
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

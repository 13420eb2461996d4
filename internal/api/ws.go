package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"leadscore/internal/features"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Enrichment tools connect from arbitrary origins; access control is
	// the deployment's concern (reverse proxy), same as the REST routes.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleStream scores companies over a WebSocket, one JSON company per
// client message, one result (or error record) per reply. Row-by-row
// enrichment tools use this to avoid per-row HTTP overhead.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("stream client connected")

	for {
		var raw features.RawInput
		if err := conn.ReadJSON(&raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("stream read failed")
			}
			return
		}

		res, err := s.scorer.Score(raw)
		if err != nil {
			var verr *features.ValidationError
			if !errors.As(err, &verr) {
				log.Error().Err(err).Msg("stream scoring failed")
			}
			if werr := conn.WriteJSON(errorRecord(raw, err)); werr != nil {
				return
			}
			continue
		}

		s.persist(res)
		if err := conn.WriteJSON(toResponse(res, false)); err != nil {
			return
		}
	}
}

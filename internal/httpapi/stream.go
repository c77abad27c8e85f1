package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const pingInterval = 30 * time.Second

// streamEnvelope tags each pushed message with its kind so a single
// websocket connection can multiplex both queryapi broadcast channels.
type streamEnvelope struct {
	Kind string      `json:"kind"` // "incident" or "transition"
	Data interface{} `json:"data"`
}

// stream implements GET /incidents/stream: it upgrades to a websocket
// connection and fans out queryapi's two broadcast channels to this one
// subscriber until the client disconnects — grounded on the teacher's
// websocket adapter (agent/streaming/ws_adapter.go), adapted from a
// client dialer to a server-side Accept.
func (h *incidentHandlers) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing")

	ctx := conn.CloseRead(r.Context())
	incidents := h.api.Incidents()
	transitions := h.api.Transitions()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-incidents:
			if !ok {
				return
			}
			if err := writeEnvelope(ctx, conn, "incident", evt); err != nil {
				return
			}
		case evt, ok := <-transitions:
			if !ok {
				return
			}
			if err := writeEnvelope(ctx, conn, "transition", evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, kind string, data interface{}) error {
	body, err := json.Marshal(streamEnvelope{Kind: kind, Data: data})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, body)
}

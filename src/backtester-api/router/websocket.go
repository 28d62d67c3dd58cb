package router

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Type    string      `json:"type"`
	Request StepRequest `json:"request"`
}

type wsReply struct {
	Type  string                        `json:"type"`
	Step  *StepResponse                 `json:"step,omitempty"`
	Error *eventmodels.WebErrorResponse `json:"error,omitempty"`
}

// handleWebsocket runs a reset/step loop over one connection. Each message
// gets exactly one reply; failures are reported without closing the socket.
func (h *handler) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	id, webErr := sessionID(r)
	if webErr != nil {
		setErrorResponse(webErr, w)
		return
	}

	if _, err := h.service.session(id); err != nil {
		setErrorResponse(toWebError("websocket", err), w)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("websocket: failed to upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				log.Warnf("websocket: session %s: read failed: %v", id, err)
			}
			return
		}

		var resp *StepResponse
		switch msg.Type {
		case "reset":
			resp, err = h.service.Reset(ctx, id)
		case "step":
			resp, err = h.service.Step(ctx, id, msg.Request)
		default:
			err = eventmodels.NewWebError(400, "websocket: unknown message type", errors.New(msg.Type))
		}

		reply := wsReply{Type: msg.Type, Step: resp}
		if err != nil {
			errResp := toWebError("websocket", err).Response()
			reply.Error = &errResp
		}

		if err := conn.WriteJSON(reply); err != nil {
			log.Warnf("websocket: session %s: write failed: %v", id, err)
			return
		}
	}
}

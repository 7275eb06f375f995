package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mileage/mq/mq"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type eventFrame struct {
	Kind   string `json:"kind"` // submission or record
	Action string `json:"action"`
	Data   any    `json:"data"`
}

// submissionFrame skips messages without an id.
func submissionFrame(msg mq.SubmissionMessage) (eventFrame, bool, error) {
	if msg.ID == uuid.Nil {
		return eventFrame{}, true, nil
	}
	return eventFrame{Kind: "submission", Action: msg.Action.String(), Data: msg}, false, nil
}

func recordFrame(msg mq.RecordMessage) (eventFrame, bool, error) {
	if msg.ID == uuid.Nil {
		return eventFrame{}, true, nil
	}
	return eventFrame{Kind: "record", Action: msg.Action.String(), Data: msg}, false, nil
}

// streamEvents streams submission and record changes over a websocket. Admins see
// every driver, employees only themselves.
func (h *handler) streamEvents(c *gin.Context) {
	if h.events == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Error: "event stream disabled", Code: "unavailable"})
		return
	}
	actor := actorOf(c)
	topic := actor.UserID
	if actor.IsAdmin() {
		topic = uuid.Nil
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	submissions := make(chan eventFrame)
	records := make(chan eventFrame)
	mq.SubscribeProcessor(topic, ctx, h.events.GetSubmissionMessageQueue(), submissionFrame, submissions)
	mq.SubscribeProcessor(topic, ctx, h.events.GetRecordMessageQueue(), recordFrame, records)

	// the read loop only exists to notice pongs and the client going away
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	log := h.log.WithField("user_id", actor.UserID)
	log.Debug("event stream opened")
	defer log.Debug("event stream closed")

	for {
		var frame eventFrame
		var ok bool
		select {
		case frame, ok = <-submissions:
		case frame, ok = <-records:
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		case <-ctx.Done():
			return
		}
		if !ok {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "event queue closed"))
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(frame); err != nil {
			log.WithError(err).Debug("event write failed")
			return
		}
	}
}

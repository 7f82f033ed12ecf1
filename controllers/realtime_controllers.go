package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/delivery-app/realtime"
	"github.com/yeremiapane/delivery-app/utils"
)

type RealtimeController struct {
	Hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewRealtimeController accepts websocket handshakes from the given origins.
// An empty list or "*" accepts any origin.
func NewRealtimeController(hub *realtime.Hub, origins []string) *RealtimeController {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &RealtimeController{
		Hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Connect upgrades an authenticated request and serves channel frames until
// the client goes away.
func (rc *RealtimeController) Connect(c *gin.Context) {
	me, ok := currentUser(c)
	if !ok {
		return
	}
	conn, err := rc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	rc.Hub.Serve(conn, realtime.Principal{
		UserID:       me.UserID,
		Role:         me.Role,
		RestaurantID: me.RestaurantID,
	})
}

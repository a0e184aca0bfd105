package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/JreyForFun/Whispr/internal/backend"
	"github.com/JreyForFun/Whispr/internal/protocol"
	"github.com/JreyForFun/Whispr/internal/server/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Peers are anonymous and rooms are unguessable UUIDs; any origin may
	// subscribe.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter builds the gin engine serving the coordination API and the
// signaling relay.
func NewRouter(cfg Config, st store.Store, hub *Hub) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := router.Group("/api")
	{
		api.GET("/rooms", findRoom(st))
		api.DELETE("/rooms/:id", deleteRoom(st, hub))
		api.POST("/queue", upsertQueue(st))
		api.POST("/match", matchSessions(st))
		api.POST("/reports", fileReport(st))
		api.GET("/stats", stats(st, hub))
	}

	router.GET("/ws", serveWs(hub))

	return router
}

func findRoom(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Query("session")
		if sessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing session parameter"})
			return
		}

		room, err := st.FindRoomBySession(c.Request.Context(), sessionID)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no room for session"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, room)
	}
}

func deleteRoom(st store.Store, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("id")

		err := st.DeleteRoom(c.Request.Context(), roomID)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// Whoever is still subscribed learns the pairing ended even if the
		// leaving peer's bye never arrived.
		hub.RoomDeleted(roomID)
		c.Status(http.StatusOK)
	}
}

func upsertQueue(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var entry backend.QueueEntry
		if err := c.ShouldBindJSON(&entry); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid queue entry"})
			return
		}
		if entry.SessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing session_id"})
			return
		}

		if err := st.UpsertQueueEntry(c.Request.Context(), entry); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusOK)
	}
}

func matchSessions(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			SessionID   string              `json:"session_id"`
			Constraints backend.Constraints `json:"constraints"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match request"})
			return
		}

		match, err := st.Match(c.Request.Context(), req.SessionID, req.Constraints)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if match == nil {
			c.Status(http.StatusNoContent)
			return
		}

		slog.Info("sessions paired", "room", match.RoomID)
		c.JSON(http.StatusOK, match)
	}
}

func fileReport(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var report backend.Report
		if err := c.ShouldBindJSON(&report); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report"})
			return
		}
		if report.ReporterID == "" || report.ReportedID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing reporter or reported id"})
			return
		}

		if err := st.InsertReport(c.Request.Context(), report); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusCreated)
	}
}

func stats(st store.Store, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		waiting, rooms, err := st.Counts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, backend.Stats{
			Online:  hub.Online(),
			Waiting: waiting,
			Rooms:   rooms,
		})
	}
}

func serveWs(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Query("room")
		sessionID := c.Query("session")
		if roomID == "" || sessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing room or session parameter"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := &Client{
			hub:       hub,
			conn:      conn,
			roomID:    roomID,
			sessionID: sessionID,
			send:      make(chan *protocol.SignalMessage, 256),
		}
		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

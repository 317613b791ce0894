package roomhandler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"collabnotes/internal/audit"
	"collabnotes/internal/room"
)

// Rooms is the read side of the coordinator plus server notices.
type Rooms interface {
	Rooms() []room.Snapshot
	Snapshot(roomID string) (room.Snapshot, bool)
	Notice(roomID, message string) error
}

// Counter reports the number of live connections.
type Counter interface {
	Len() int
}

type Handler struct {
	rooms   Rooms
	conns   Counter
	history audit.IHistory // nil when Postgres is disabled
}

func New(rooms Rooms, conns Counter, history audit.IHistory) *Handler {
	return &Handler{rooms: rooms, conns: conns, history: history}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.health)
	r.GET("/rooms", h.list)
	r.GET("/rooms/:id", h.info)
	r.GET("/rooms/:id/history", h.roomHistory)
	r.POST("/rooms/:id/notices", h.notice)
}

// @Summary		Health check
// @Tags			Ops
// @Success		200	{object}	HealthResponse
// @Router			/healthz [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Rooms:       len(h.rooms.Rooms()),
		Connections: h.conns.Len(),
	})
}

// @Summary		List live rooms
// @Description	Returns a snapshot of every room that currently has members.
// @Tags			Rooms
// @Success		200	{array}	room.Snapshot
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, h.rooms.Rooms())
}

// @Summary		Get room state
// @Description	Members, owner, host and lock state of a live room.
// @Tags			Rooms
// @Param			id	path		string	true	"Room ID"	default(note123)
// @Success		200	{object}	room.Snapshot
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id} [get]
func (h *Handler) info(c *gin.Context) {
	snap, ok := h.rooms.Snapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: room.ErrRoomNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary		Room lifecycle history
// @Description	Persisted lifecycle events (joins, leaves, host changes, locks), newest first.
// @Tags			Rooms
// @Param			id		path		string	true	"Room ID"	default(note123)
// @Param			limit	query		int		false	"Max results (0‑500)"	minimum(0)	maximum(500)	default(50)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		audit.Entry
// @Failure		400		{object}	ErrorResponse
// @Failure		503		{object}	ErrorResponse
// @Router			/rooms/{id}/history [get]
func (h *Handler) roomHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "history store disabled"})
		return
	}
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.history.RoomHistory(c.Request.Context(), c.Param("id"), q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Send a notice
// @Description	Delivers a server notice (e.g. "note saved") to every member of a live room.
// @Tags			Rooms
// @Param			id		path	string		true	"Room ID"	default(note123)
// @Param			body	body	NoticeBody	true	"Notice payload"
// @Success		202
// @Failure		400	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id}/notices [post]
func (h *Handler) notice(ginCtx *gin.Context) {
	var body NoticeBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.rooms.Notice(ginCtx.Param("id"), body.Message); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, room.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ginCtx.JSON(status, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

package http

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/dkeye/Venue/internal/adapters/signal"
	"github.com/dkeye/Venue/internal/app/orch"
	"github.com/dkeye/Venue/internal/auth"
	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch *orch.Orchestrator
	auth *auth.HostAuth
}

func (h *handlers) serveRoom(ctx context.Context, ctrl *signal.SignalWSController, c *gin.Context) {
	name, err := domain.ParseRoomName(c.Query("room"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	host := c.GetBool(ctxHost)
	if token := c.Query("token"); token != "" && !host {
		if err := h.auth.VerifyHostToken(token); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Str("room", string(name)).Msg("ws host token rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid host token"})
			return
		}
		host = true
	}
	ctrl.HandleSignal(ctx, c, name, core.JoinOptions{Name: c.Query("name"), Host: host})
}

func (h *handlers) room(c *gin.Context) (*core.Room, bool) {
	name, err := domain.ParseRoomName(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	room, ok := h.orch.Rooms.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return nil, false
	}
	return room, true
}

func (h *handlers) state(c *gin.Context) (core.RoomState, bool) {
	room, ok := h.room(c)
	if !ok {
		return core.RoomState{}, false
	}
	st, err := room.State()
	if errors.Is(err, core.ErrStoreUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "room unavailable"})
		return core.RoomState{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return core.RoomState{}, false
	}
	return st, true
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

func (h *handlers) getRoom(c *gin.Context) {
	room, ok := h.room(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room.Info(), "settings": room.Settings()})
}

func (h *handlers) participants(c *gin.Context) {
	st, ok := h.state(c)
	if !ok {
		return
	}
	users := make([]domain.Participant, 0, len(st.Participants))
	for _, p := range st.Participants {
		users = append(users, p)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	c.JSON(http.StatusOK, gin.H{"participants": users})
}

func (h *handlers) speakers(c *gin.Context) {
	st, ok := h.state(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"speakers": st.Speakers,
		"pending":  st.Pending,
	})
}

func (h *handlers) evictRoom(c *gin.Context) {
	name, err := domain.ParseRoomName(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.orch.EvictRoom(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Package user exposes the REST glue around the gateway: login, the user
// list with presence, and conversation history.
package user

import (
	"net/http"
	"strconv"

	"PRelay/logger"
	msgstore "PRelay/module/chat/message"
	storage "PRelay/service/storage"
	"PRelay/tools/errs"
	"PRelay/tools/security"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	store    *msgstore.Store
	presence *storage.PresenceManager
	jwtOpts  security.Options
	limit    int64
}

func NewHandler(store *msgstore.Store, presence *storage.PresenceManager, jwtOpts security.Options, historyLimit int64) *Handler {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &Handler{store: store, presence: presence, jwtOpts: jwtOpts, limit: historyLimit}
}

type loginRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// Login issues a bearer token for the given user id. Authentication
// backends are out of scope; any non-empty id gets a token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrBadRequest.WithDetail("userId is required"))
		return
	}
	token, expireAt, err := security.Generate(h.jwtOpts, req.UserID)
	if err != nil {
		logger.Errorf("[rest] token generate user=%s err=%v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, errs.NewCodeError(errs.ServerInternalError, "token generate failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"expireAt": expireAt.UnixMilli(),
		"user":     gin.H{"id": req.UserID},
	})
}

type presenceEntry struct {
	UserID   string `json:"userId"`
	Online   bool   `json:"online"`
	Activity string `json:"activity,omitempty"`
}

// Users returns every online user with its activity label, read from the
// redis mirror.
func (h *Handler) Users(c *gin.Context) {
	online, err := h.presence.OnlineUsers(c.Request.Context())
	if err != nil {
		logger.Errorf("[rest] online users err=%v", err)
		c.JSON(http.StatusInternalServerError, errs.NewCodeError(errs.ServerInternalError, "presence lookup failed"))
		return
	}
	activities, err := h.presence.Activities(c.Request.Context())
	if err != nil {
		logger.Errorf("[rest] activities err=%v", err)
		c.JSON(http.StatusInternalServerError, errs.NewCodeError(errs.ServerInternalError, "presence lookup failed"))
		return
	}

	out := make([]presenceEntry, 0, len(online))
	for _, id := range online {
		out = append(out, presenceEntry{UserID: id, Online: true, Activity: activities[id]})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "users": out})
}

// History returns the conversation between the authenticated user and
// :peer, oldest first. This is the history-fetch collaborator the live
// relay leans on for offline receivers.
func (h *Handler) History(c *gin.Context) {
	self := c.GetString("userId")
	peer := c.Param("peer")
	if self == "" || peer == "" {
		c.JSON(http.StatusBadRequest, errs.ErrBadRequest.WithDetail("peer is required"))
		return
	}

	limit := h.limit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	msgs, err := h.store.ListConversation(c.Request.Context(), self, peer, limit)
	if err != nil {
		logger.Errorf("[rest] history self=%s peer=%s err=%v", self, peer, err)
		c.JSON(http.StatusInternalServerError, errs.NewCodeError(errs.ServerInternalError, "history fetch failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

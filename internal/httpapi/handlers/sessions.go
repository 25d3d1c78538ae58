package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
)

// ListSessions returns the catalog. A store failure still answers 200 with
// only the new-chat entry and degraded=true.
func (h *Handler) ListSessions(c *gin.Context) {
	_, st, ok := h.state(c)
	if !ok {
		return
	}

	st.Lock()
	entries, err := h.Catalog.List(c.Request.Context(), st)
	active, isNew := st.ActiveID, st.IsNew()
	st.Unlock()

	degraded := err != nil
	if degraded && !errors.Is(err, common.ErrTransientStore) {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{
		"active_session_id": active,
		"active_is_new":     isNew,
		"entries":           entries,
		"degraded":          degraded,
	})
}

func (h *Handler) NewChat(c *gin.Context) {
	id, st, ok := h.state(c)
	if !ok {
		return
	}
	next, err := h.Catalog.NewChat(st)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.States.Replace(id, next)
	common.OK(c, gin.H{
		"session_id": next.ActiveID,
		"messages":   next.Snapshot(),
	})
}

type selectReq struct {
	SessionID string `json:"session_id" binding:"required"`
}

func (h *Handler) SelectSession(c *gin.Context) {
	_, st, ok := h.state(c)
	if !ok {
		return
	}
	var req selectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	st.Lock()
	err := h.Catalog.Select(context.WithoutCancel(c.Request.Context()), st, req.SessionID)
	display := append(st.Display[:0:0], st.Display...)
	st.Unlock()
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{
		"session_id": req.SessionID,
		"messages":   display,
	})
}

// DeleteSession removes the chat and leaves the caller on a fresh one.
// Deleting an unknown id succeeds.
func (h *Handler) DeleteSession(c *gin.Context) {
	id, st, ok := h.state(c)
	if !ok {
		return
	}
	sessionID := c.Param("session_id")

	st.Lock()
	next, err := h.Catalog.DeleteChat(context.WithoutCancel(c.Request.Context()), st, sessionID)
	st.Unlock()
	if err != nil {
		h.fail(c, err)
		return
	}
	h.States.Replace(id, next)
	common.OK(c, gin.H{
		"deleted":    sessionID,
		"session_id": next.ActiveID,
		"messages":   next.Snapshot(),
	})
}

// ListMessages returns the display list of the active chat.
func (h *Handler) ListMessages(c *gin.Context) {
	_, st, ok := h.state(c)
	if !ok {
		return
	}
	st.Lock()
	active := st.ActiveID
	display := append(st.Display[:0:0], st.Display...)
	st.Unlock()
	common.OK(c, gin.H{
		"session_id": active,
		"messages":   display,
	})
}

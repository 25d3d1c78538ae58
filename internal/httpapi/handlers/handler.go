package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sentinel-chat/internal/auth"
	"github.com/suPer8Hu/sentinel-chat/internal/chat"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"github.com/suPer8Hu/sentinel-chat/internal/config"
	"github.com/suPer8Hu/sentinel-chat/internal/docs"
	"github.com/suPer8Hu/sentinel-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/sentinel-chat/internal/identity"
	"github.com/suPer8Hu/sentinel-chat/internal/observability"
	"github.com/suPer8Hu/sentinel-chat/internal/turn"
	"go.uber.org/zap"
)

type Handler struct {
	Cfg     config.Config
	Catalog *chat.Catalog
	States  *States
	Turns   *turn.Orchestrator
	Docs    *docs.Service
	Logger  *zap.Logger
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func (h *Handler) UI(c *gin.Context) {
	common.OK(c, h.Cfg.UI)
}

type loginReq struct {
	Password string `json:"password"`
}

// Login exchanges the access password for a token bound to the caller's
// identity. Without a configured password every caller gets a token.
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if hash := h.Cfg.AccessPasswordHash; hash != "" && !auth.CheckPassword(hash, req.Password) {
		h.fail(c, common.Wrap(common.ErrUnauthorized, "invalid password"))
		return
	}

	id := identity.Resolve(h.Cfg.AnonymousAllowed, c.Request.Header, h.Cfg.IdentityHeader)
	token, err := auth.SignJWT(id, h.Cfg.JWTSecret, h.Cfg.TokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}
	middleware.SetTokenCookie(c, token, h.Cfg.TokenTTL)
	common.OK(c, gin.H{
		"identity":   id,
		"token":      token,
		"expires_at": time.Now().Add(h.Cfg.TokenTTL),
	})
}

func (h *Handler) Me(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	common.OK(c, gin.H{"identity": id})
}

// state loads the caller's SessionState; it writes the error response itself.
func (h *Handler) state(c *gin.Context) (string, *chat.SessionState, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return "", nil, false
	}
	st, err := h.States.Get(id)
	if err != nil {
		h.log(c).Error("open session state failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return "", nil, false
	}
	return id, st, true
}

func (h *Handler) log(c *gin.Context) *zap.Logger {
	return observability.FromContext(c.Request.Context(), h.Logger)
}

// status maps an error kind to the HTTP status and envelope code.
func status(err error) (int, int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, 10002, err.Error()
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, 40101, "unauthorized"
	case errors.Is(err, common.ErrUnknownSession):
		return http.StatusBadRequest, 10010, "session not in catalog"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, 40401, "not found"
	case errors.Is(err, common.ErrTurnInProgress):
		return http.StatusConflict, 40901, "a turn is already running for this session"
	case errors.Is(err, common.ErrAgentInvocation):
		return http.StatusBadGateway, 50201, "the assistant could not answer"
	case errors.Is(err, common.ErrStoreWrite), errors.Is(err, common.ErrStoreUnavailable),
		errors.Is(err, common.ErrTransientStore):
		return http.StatusServiceUnavailable, 50301, "storage unavailable"
	default:
		return http.StatusInternalServerError, 50001, "internal error"
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	httpStatus, code, msg := status(err)
	if httpStatus >= 500 {
		h.log(c).Error("request failed", zap.Error(err))
	}
	common.Fail(c, httpStatus, code, msg)
}

func diagnostics(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"github.com/suPer8Hu/sentinel-chat/internal/turn"
	"go.uber.org/zap"
)

type sendMessageReq struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) readTurnInput(c *gin.Context) (turn.Input, bool) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return turn.Input{}, false
	}

	// read idempotency key
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(key) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return turn.Input{}, false
	}
	return turn.Input{Text: req.Message, IdempotencyKey: key}, true
}

func turnPayload(res *turn.Result) gin.H {
	return gin.H{
		"session_id":  res.SessionID,
		"reply":       res.Assistant.Content,
		"message_id":  res.Assistant.ID,
		"agent":       res.Agent,
		"blocked":     res.Blocked,
		"replayed":    res.Replayed,
		"diagnostics": diagnostics(res.Diagnostics),
		"catalog":     res.Catalog,
	}
}

func (h *Handler) SendMessage(c *gin.Context) {
	_, st, ok := h.state(c)
	if !ok {
		return
	}
	in, ok := h.readTurnInput(c)
	if !ok {
		return
	}

	res, err := h.Turns.Submit(c.Request.Context(), st, in, nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, turnPayload(res))
}

// chanSink hands chunks to the SSE loop until the client is gone.
type chanSink struct {
	ctx    context.Context
	chunks chan<- string
}

func (s chanSink) Emit(chunk string) error {
	select {
	case s.chunks <- chunk:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

type turnOutcome struct {
	res *turn.Result
	err error
}

func (h *Handler) SendMessageStream(c *gin.Context) {
	_, st, ok := h.state(c)
	if !ok {
		return
	}
	in, ok := h.readTurnInput(c)
	if !ok {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		common.Fail(c, http.StatusInternalServerError, 50003, "streaming unsupported")
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	// avoid gin writing a JSON response later
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	chunks := make(chan string, 16)
	done := make(chan turnOutcome, 1)
	go func() {
		// the turn outlives the request; see turn.Orchestrator.Submit
		res, err := h.Turns.Submit(ctx, st, in, chanSink{ctx: ctx, chunks: chunks})
		done <- turnOutcome{res: res, err: err}
	}()

	// heartbeat ticker (keeps connections alive)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			// last-resort: send a simple error that won't break SSE framing
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	for {
		select {
		case ch := <-chunks:
			writeJSON("chunk", gin.H{
				"type":  "chunk",
				"delta": ch,
			})

		case <-ticker.C:
			writeJSON("ping", gin.H{
				"type": "ping",
				"ts":   time.Now().Unix(),
			})

		case out := <-done:
			// chunks emitted before Submit returned are already queued
			for drained := false; !drained; {
				select {
				case ch := <-chunks:
					writeJSON("chunk", gin.H{"type": "chunk", "delta": ch})
				default:
					drained = true
				}
			}
			if out.err != nil {
				h.log(c).Warn("stream turn failed", zap.Error(out.err))
				_, code, msg := status(out.err)
				writeJSON("error", gin.H{
					"type":    "error",
					"code":    code,
					"message": msg,
				})
				return
			}
			payload := turnPayload(out.res)
			payload["type"] = "done"
			writeJSON("done", payload)
			return

		case <-ctx.Done():
			return
		}
	}
}

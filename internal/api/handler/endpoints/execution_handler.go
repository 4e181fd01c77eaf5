package endpoints

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"clipflow"
	"clipflow/internal/api/handler/mapper"
	"clipflow/internal/api/handler/middleware"
	"clipflow/internal/api/service"
	"clipflow/internal/engine"
	"clipflow/internal/engine/stream"
	"clipflow/pkg"

	"github.com/gin-contrib/graceful"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const streamKeepAlive = 15 * time.Second

type executionHandler struct {
	executionService *service.ExecutionService
	config           clipflow.AppConfig
	logger           zerolog.Logger
	keepAlive        time.Duration
}

func newExecutionHandler(executions *service.ExecutionService, cfg clipflow.AppConfig) *executionHandler {
	return &executionHandler{
		executionService: executions,
		config:           cfg,
		logger:           clipflow.Logger,
		keepAlive:        streamKeepAlive,
	}
}

func ExecutionHandler(router *graceful.Graceful, e *service.Engine) {
	h := newExecutionHandler(service.NewExecutionService(e), clipflow.GetConfig())
	h.register(router.Engine)
}

func (slf *executionHandler) register(router gin.IRouter) {
	routes := router.Group("/api/v1/executions")
	routes.Use(middleware.AuthMiddleware(slf.config))
	{
		routes.GET("/:id", slf.getByID)
		routes.DELETE("/:id", slf.cancel)
		routes.GET("/:id/stream", slf.stream)
	}
}

func (slf *executionHandler) getByID(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	rec, err := slf.executionService.FindForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, slf.logger, err, "Failed to retrieve execution")
		return
	}
	c.JSON(http.StatusOK, mapper.ToExecutionResponse(rec))
}

func (slf *executionHandler) cancel(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	if err := slf.executionService.Cancel(c.Request.Context(), c.Param("id"), userID); err != nil {
		writeError(c, slf.logger, err, "Failed to cancel execution")
		return
	}
	c.Status(http.StatusNoContent)
}

// stream sends the execution as server-sent events: one "snapshot" event, then "node" events
// with the sequence number as id, then a single "execution" event after which the stream ends.
// A client dropped for being too slow gets a "resync" event and must reconnect.
func (slf *executionHandler) stream(c *gin.Context) {
	userID, ok := pkg.GetUserID(c)
	if !ok {
		return
	}
	id := c.Param("id")
	w, err := slf.executionService.Subscribe(c.Request.Context(), id, userID)
	if err != nil {
		writeError(c, slf.logger, err, "Failed to open execution stream")
		return
	}
	if w.Sub != nil {
		defer w.Sub.Close()
	}

	var lastSeq uint64
	if raw := c.GetHeader("Last-Event-ID"); raw != "" {
		lastSeq, _ = strconv.ParseUint(raw, 10, 64)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	slf.send(c, "snapshot", w.Snapshot.Seq, w.Snapshot)
	if w.Sub == nil {
		if w.Final != nil {
			slf.send(c, string(engine.EventExecution), 0, *w.Final)
		}
		return
	}

	ticker := time.NewTicker(slf.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-w.Sub.C:
			if !ok {
				if errors.Is(w.Sub.Err(), stream.ErrSlowSubscriber) {
					slf.logger.Warn().Str("executionId", id).Msg("Stream client fell behind")
					slf.send(c, "resync", 0, gin.H{"message": w.Sub.Err().Error()})
				}
				return
			}
			if ev.Seq <= lastSeq {
				continue
			}
			slf.send(c, string(ev.Type), ev.Seq, ev)
			if ev.Terminal() {
				return
			}
		case <-ticker.C:
			_, _ = c.Writer.WriteString(": keep-alive\n\n")
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (slf *executionHandler) send(c *gin.Context, event string, seq uint64, data any) {
	ev := sse.Event{Event: event, Data: data}
	if seq > 0 {
		ev.Id = strconv.FormatUint(seq, 10)
	}
	c.Render(-1, ev)
	c.Writer.Flush()
}

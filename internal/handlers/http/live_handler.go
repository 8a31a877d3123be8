package http

import (
	"fmt"
	"net/http"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/core/ports"
	"vigil/internal/infrastructure/display"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// LiveHandler serves the monitored feed: an MJPEG mirror of the latest
// frames, the session status, and a WebSocket that pushes status updates
// and accepts operator commands.
type LiveHandler struct {
	sink     *display.HTTPSink
	commands chan domain.Command
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

func NewLiveHandler(sink *display.HTTPSink, interval time.Duration, logger *zap.SugaredLogger) *LiveHandler {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &LiveHandler{
		sink:     sink,
		commands: make(chan domain.Command, 8),
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

var _ ports.CommandSource = (*LiveHandler)(nil)

// Commands feeds operator input from WebSocket clients into the session.
func (h *LiveHandler) Commands() <-chan domain.Command {
	return h.commands
}

func (h *LiveHandler) SetupRoutes(router *gin.Engine) {
	live := router.Group("/live")
	{
		live.GET("/mjpeg", h.StreamMJPEG)
		live.GET("/status", h.Status)
		live.GET("/ws", h.WebSocket)
	}
}

// StreamMJPEG mirrors the latest frames as multipart JPEG until the client
// disconnects.
func (h *LiveHandler) StreamMJPEG(c *gin.Context) {
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := h.sink.LatestJPEG()
			if frame == nil {
				continue
			}
			if _, err := fmt.Fprintf(c.Writer,
				"--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
				return
			}
			if _, err := c.Writer.Write(frame); err != nil {
				return
			}
			if _, err := c.Writer.Write([]byte("\r\n")); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func (h *LiveHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.sink.LatestStatus())
}

type wsCommand struct {
	Command string `json:"command"`
}

// WebSocket pushes the session status on an interval and turns incoming
// command messages into session commands.
func (h *LiveHandler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go h.readCommands(conn, done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(h.sink.LatestStatus()); err != nil {
				return
			}
		}
	}
}

func (h *LiveHandler) readCommands(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		var msg wsCommand
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		cmd, ok := parseCommand(msg.Command)
		if !ok {
			h.logger.Debugw("unknown command", "command", msg.Command)
			continue
		}
		select {
		case h.commands <- cmd:
		default:
			// Session is busy; dropping beats blocking the socket.
		}
	}
}

func parseCommand(name string) (domain.Command, bool) {
	switch name {
	case "quit":
		return domain.CommandQuit, true
	case "pause":
		return domain.CommandPause, true
	case "resume":
		return domain.CommandResume, true
	case "step_forward":
		return domain.CommandStepForward, true
	case "step_backward":
		return domain.CommandStepBackward, true
	case "reset":
		return domain.CommandReset, true
	case "save_frame":
		return domain.CommandSaveFrame, true
	case "increase_interval":
		return domain.CommandIncreaseInterval, true
	case "decrease_interval":
		return domain.CommandDecreaseInterval, true
	default:
		return 0, false
	}
}

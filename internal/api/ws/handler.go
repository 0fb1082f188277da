package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbox/internal/editor"
	"github.com/GriffinCanCode/devbox/internal/events"
	"github.com/GriffinCanCode/devbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devbox/internal/orchestrator"
	"github.com/GriffinCanCode/devbox/internal/shared/id"
	"github.com/GriffinCanCode/devbox/internal/terminal"
)

// MaxMessageSize bounds any single frame; edits carry the whole file.
const MaxMessageSize = 4 << 20

// Deps are the components a viewer connection talks to.
type Deps struct {
	Env      *orchestrator.Orchestrator
	Buffer   *editor.Buffer
	Terminal *terminal.Surface
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
	// CheckOrigin validates the Origin header. Nil allows every origin.
	CheckOrigin func(r *http.Request) bool
}

// Handler manages viewer WebSocket connections
type Handler struct {
	env      *orchestrator.Orchestrator
	buffer   *editor.Buffer
	term     *terminal.Surface
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	checkOrigin := deps.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Handler{
		env:     deps.Env,
		buffer:  deps.Buffer,
		term:    deps.Terminal,
		metrics: metrics,
		logger:  logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// HandleConnection upgrades the request and serves one viewer until it
// disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	vid := id.NewViewerID().String()
	v := newViewer(vid, conn, h.logger)
	h.metrics.IncWSConnections()
	h.logger.Info("Viewer connected", zap.String("viewer", vid), zap.String("remote", c.Request.RemoteAddr))

	go v.writePump()

	var subs events.Group
	subs.Add(h.env.States().Subscribe(func(s orchestrator.State) {
		h.send(v, Outbound{Type: TypeState, State: s.String()})
	}))
	subs.Add(h.env.Preview().Navigations().Subscribe(func(url string) {
		h.send(v, Outbound{Type: TypePreview, URL: url})
	}))

	tw := &terminalWriter{v: v}
	history, detach := h.term.Attach(tw)

	defer func() {
		detach()
		subs.Unsubscribe()
		v.close()
		h.metrics.DecWSConnections()
		h.logger.Info("Viewer disconnected", zap.String("viewer", vid))
	}()

	h.send(v, h.hello(vid))
	if err := tw.replay(history); err != nil {
		return
	}

	h.readLoop(v)
}

func (h *Handler) hello(vid string) Outbound {
	size := h.term.Size()
	f := Outbound{
		Type:     TypeHello,
		Viewer:   vid,
		State:    h.env.State().String(),
		URL:      h.env.Preview().URL(),
		Terminal: &size,
		Editor:   &Editor{Path: h.buffer.Path(), Content: h.buffer.Content()},
	}
	if err := h.env.Err(); err != nil {
		f.Error = err.Error()
	}
	return f
}

func (h *Handler) readLoop(v *viewer) {
	v.conn.SetReadLimit(MaxMessageSize)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := v.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Viewer read error", zap.String("viewer", v.id), zap.Error(err))
			}
			return
		}
		v.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch kind {
		case websocket.BinaryMessage:
			h.metrics.RecordWSMessage("in", "keystrokes")
			h.input(v, data)
		case websocket.TextMessage:
			h.control(v, data)
		}
	}
}

// input forwards keystrokes to the terminal verbatim.
func (h *Handler) input(v *viewer, data []byte) {
	if len(data) > MaxInputMessageSize {
		h.logger.Warn("Dropping oversized input",
			zap.String("viewer", v.id),
			zap.Int("bytes", len(data)),
		)
		h.sendError(v, "input too large")
		return
	}
	if len(data) == 0 {
		return
	}
	h.term.Input().Emit(data)
}

func (h *Handler) control(v *viewer, data []byte) {
	in, err := decode(data)
	if err != nil {
		h.metrics.RecordWSMessage("in", "malformed")
		h.sendError(v, "malformed frame")
		return
	}
	h.metrics.RecordWSMessage("in", in.Type)

	switch in.Type {
	case TypeResize:
		h.term.Resizes().Emit(in.Viewport())
	case TypeInput:
		h.input(v, []byte(in.Data))
	case TypeEdit:
		if in.Content == nil {
			h.sendError(v, "content is required")
			return
		}
		h.buffer.Set(*in.Content)
	case TypePing:
		h.send(v, Outbound{Type: TypePong})
	default:
		h.sendError(v, "unknown message type")
	}
}

func (h *Handler) send(v *viewer, f Outbound) {
	if err := v.sendFrame(f); err != nil {
		h.logger.Debug("Frame not sent",
			zap.String("viewer", v.id),
			zap.String("type", f.Type),
			zap.Error(err),
		)
		return
	}
	h.metrics.RecordWSMessage("out", f.Type)
}

func (h *Handler) sendError(v *viewer, message string) {
	h.send(v, Outbound{Type: TypeError, Message: message})
}

package http

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/GriffinCanCode/devbox/internal/editor"
	"github.com/GriffinCanCode/devbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devbox/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/devbox/internal/orchestrator"
	"github.com/GriffinCanCode/devbox/internal/sandbox"
	"github.com/GriffinCanCode/devbox/internal/terminal"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the root endpoint.
const Version = "0.1.0"

// FileReader reads files back out of the sandbox.
type FileReader interface {
	ReadFile(ctx context.Context, path string) (string, error)
}

// Deps are the components the handlers serve.
type Deps struct {
	Env      *orchestrator.Orchestrator
	Buffer   *editor.Buffer
	Terminal *terminal.Surface
	Files    FileReader
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	env     *orchestrator.Orchestrator
	buffer  *editor.Buffer
	term    *terminal.Surface
	files   FileReader
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		env:     deps.Env,
		buffer:  deps.Buffer,
		term:    deps.Terminal,
		files:   deps.Files,
		metrics: deps.Metrics,
		logger:  logger.Named("http"),
	}
}

// Register mounts the handlers on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/state", h.State)
	api.GET("/editor", h.GetEditor)
	api.PUT("/editor", h.PutEditor)
	api.GET("/preview", h.Preview)
	api.GET("/files/*path", h.ReadFile)
	api.POST("/logs", h.StreamLogs)
}

// Root handles the liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "devbox",
		"version": Version,
	})
}

// Health reports the environment state. A failed startup is a 503.
func (h *Handlers) Health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	body := gin.H{"state": h.env.State().String()}

	if err := h.env.Err(); err != nil {
		status, code = "failed", http.StatusServiceUnavailable
		body["error"] = err.Error()
	} else if h.env.State() != orchestrator.Running {
		status = "starting"
	}
	body["status"] = status
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(code, body)
}

// State describes the environment for a freshly loaded viewer.
func (h *Handlers) State(c *gin.Context) {
	body := gin.H{
		"id":          h.env.ID().String(),
		"state":       h.env.State().String(),
		"preview_url": h.env.Preview().URL(),
		"terminal":    h.term.Size(),
		"viewers":     h.term.Viewers(),
	}
	if err := h.env.Err(); err != nil {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// GetEditor returns the tracked file.
func (h *Handlers) GetEditor(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"path":    h.buffer.Path(),
		"content": h.buffer.Content(),
	})
}

// EditRequest replaces the editor content.
type EditRequest struct {
	Content *string `json:"content" binding:"required"`
}

// PutEditor replaces the editor content, which the editor sync writes
// through to the sandbox.
func (h *Handlers) PutEditor(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	h.buffer.Set(*req.Content)
	c.JSON(http.StatusOK, gin.H{
		"path":  h.buffer.Path(),
		"bytes": len(*req.Content),
	})
}

// Preview returns the current preview target and every URL it has had.
func (h *Handlers) Preview(c *gin.Context) {
	redirector := h.env.Preview()
	c.JSON(http.StatusOK, gin.H{
		"url":     redirector.URL(),
		"history": redirector.History(),
	})
}

// ReadFile serves a file from the sandbox workspace.
func (h *Handlers) ReadFile(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	contents, err := h.files.ReadFile(c.Request.Context(), path)
	if err != nil {
		code := fileErrorStatus(err)
		if code == http.StatusInternalServerError {
			tracing.Logger(c.Request.Context(), h.logger).Error("Read failed", zap.String("path", path), zap.Error(err))
		}
		c.JSON(code, gin.H{"error": err.Error(), "path": path})
		return
	}

	data := []byte(contents)
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}

func fileErrorStatus(err error) int {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, sandbox.ErrOutsideRoot):
		return http.StatusBadRequest
	case errors.Is(err, sandbox.ErrNotBooted), errors.Is(err, sandbox.ErrClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxLogBatch bounds the number of entries accepted per request.
const maxLogBatch = 100

// ViewerLogEntry is a log line reported by the viewer page.
type ViewerLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context"`
	Timestamp string                 `json:"timestamp"`
}

// ViewerLogRequest is a batch of viewer log lines.
type ViewerLogRequest struct {
	Viewer  string           `json:"viewer"`
	Entries []ViewerLogEntry `json:"entries"`
}

// StreamLogs writes log lines reported by the viewer page (xterm and
// iframe errors, mostly) into the server log.
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req ViewerLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log request"})
		return
	}
	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no log entries provided"})
		return
	}
	if len(req.Entries) > maxLogBatch {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too many log entries"})
		return
	}

	logger := h.logger.Named("viewer")
	if req.Viewer != "" {
		logger = logger.With(zap.String("viewer", req.Viewer))
	}
	for _, entry := range req.Entries {
		logViewerEntry(logger, entry)
	}

	c.JSON(http.StatusOK, gin.H{"entries_received": len(req.Entries)})
}

func logViewerEntry(logger *zap.Logger, entry ViewerLogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+1)
	if entry.Timestamp != "" {
		fields = append(fields, zap.String("viewer_timestamp", entry.Timestamp))
	}
	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch entry.Level {
	case "error":
		logger.Error(entry.Message, fields...)
	case "warn":
		logger.Warn(entry.Message, fields...)
	case "debug", "verbose":
		logger.Debug(entry.Message, fields...)
	default:
		logger.Info(entry.Message, fields...)
	}
}

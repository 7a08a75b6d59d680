package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"apartment-locator/internal/clientimport"
)

// ClientHandler handles client spreadsheet uploads
type ClientHandler struct {
	importer *clientimport.Importer
	maxBytes int64
	logger   *zap.Logger
}

// NewClientHandler creates a new client handler
func NewClientHandler(importer *clientimport.Importer, maxBytes int64, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{
		importer: importer,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Import parses an uploaded .xlsx or .csv and returns per-row results.
// Nothing is persisted; the caller creates clients from the valid rows.
func (h *ClientHandler) Import(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, fmt.Errorf("file not found in request: %w", err))
		return
	}

	file, err := header.Open()
	if err != nil {
		badRequest(c, fmt.Errorf("failed to read file: %w", err))
		return
	}
	defer file.Close()

	result, err := h.importer.Parse(file, header.Filename)
	if err != nil {
		h.logger.Warn("client import rejected",
			zap.String("filename", header.Filename),
			zap.String("user_id", userID(c)),
			zap.Error(err))
		status, _ := errorCode(err)
		if status == http.StatusInternalServerError {
			// unreadable workbook or CSV
			badRequest(c, err)
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

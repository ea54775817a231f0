package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mediaserver/broadcast"
	"mediaserver/logger"
	"mediaserver/services"
	"mediaserver/types"
)

// maxBodyBytes bounds request bodies read by the JSON endpoints
const maxBodyBytes = 1 << 20

// DownloadHandler serves the download history, new batches and live events
type DownloadHandler struct {
	store     services.RecordStore
	downloads services.DownloadService
	hub       *broadcast.Hub
	log       logger.Logger
	heartbeat time.Duration
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(store services.RecordStore, downloads services.DownloadService, hub *broadcast.Hub, log logger.Logger) *DownloadHandler {
	return &DownloadHandler{
		store:     store,
		downloads: downloads,
		hub:       hub,
		log:       log,
		heartbeat: broadcast.HeartbeatInterval,
	}
}

// ListDownloads returns every record, newest first
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	records, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list downloads", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list downloads"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// StartDownload validates a batch, runs it and returns the per-URL report
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	req, err := types.ParseDownloadRequest(body)
	if err != nil {
		writeBadRequest(c, err)
		return
	}

	// the batch runs to completion even if the client goes away
	ctx := context.WithoutCancel(c.Request.Context())
	report := h.downloads.Process(ctx, req)
	c.JSON(http.StatusOK, report)
}

// Stream sends live events as Server-Sent Events until the client leaves
func (h *DownloadHandler) Stream(c *gin.Context) {
	broadcast.SetSSEHeaders(c.Writer.Header())
	c.Status(http.StatusOK)
	c.Writer.Flush()

	inbox := h.hub.Subscribe()
	defer h.hub.Unsubscribe(inbox)

	h.log.Debug("SSE client connected", logger.String("remote_addr", c.ClientIP()))
	if err := broadcast.StreamSSE(c.Request.Context(), c.Writer, c.Writer.Flush, inbox, h.heartbeat); err != nil {
		h.log.Debug("SSE stream ended", logger.Error(err))
	}
}

// WebSocket streams live events over a websocket connection
func (h *DownloadHandler) WebSocket(c *gin.Context) {
	conn, err := broadcast.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", logger.Error(err))
		return
	}
	broadcast.NewClient(h.hub, conn, h.log).Run()
}

func writeBadRequest(c *gin.Context, err error) {
	if errors.Is(err, types.ErrBadRequest) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mediaserver/config"
)

// SettingsHandler handles settings-related endpoints
type SettingsHandler struct {
	settings *config.Settings
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *config.Settings) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetSettings returns the current settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.Current())
}

// UpdateSettings validates and persists new settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var next config.UserSettings
	if err := c.ShouldBindJSON(&next); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid settings format",
			"details": err.Error(),
		})
		return
	}

	if err := h.settings.Update(next); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid download location",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Settings updated successfully",
		"settings": h.settings.Current(),
	})
}

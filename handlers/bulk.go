package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"mediaserver/services"
	"mediaserver/types"
)

// BulkHandler serves bulk edits and deletes
type BulkHandler struct {
	bulk services.BulkService
}

// NewBulkHandler creates a new bulk handler
func NewBulkHandler(bulk services.BulkService) *BulkHandler {
	return &BulkHandler{bulk: bulk}
}

// BulkEdit applies a list of {id, title?, mediaType?} edits.
// Item failures are reported per item; status stays true.
func (h *BulkHandler) BulkEdit(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		writeBulkError(c, "failed to read body")
		return
	}
	items, err := types.ParseEditItems(body)
	if err != nil {
		writeBulkError(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, types.BulkResponse{
		Status: true,
		Data:   h.bulk.Edit(c.Request.Context(), items),
	})
}

// BulkDelete removes the ids in {ids: [...]}, once per distinct id
func (h *BulkHandler) BulkDelete(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		writeBulkError(c, "failed to read body")
		return
	}
	req, err := types.ParseBulkDeleteRequest(body)
	if err != nil {
		writeBulkError(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, types.BulkResponse{
		Status: true,
		Data:   h.bulk.Delete(c.Request.Context(), req.IDs),
	})
}

func writeBulkError(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, types.BulkResponse{
		Status: false,
		Error:  types.StringPtr(msg),
		Data:   []types.ItemResult{},
	})
}

package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrBadRequest marks a malformed request body
var ErrBadRequest = errors.New("bad request")

// requestError carries a client facing message and matches ErrBadRequest
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return ErrBadRequest }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// DownloadRequest is the validated body of POST /media/download
type DownloadRequest struct {
	URLs       []string  `json:"urls"`
	MediaType  MediaType `json:"mediaType"`
	RangeStart *int      `json:"rangeStart,omitempty"`
	RangeEnd   *int      `json:"rangeEnd,omitempty"`
}

// HasRange reports whether both range bounds were supplied
func (r DownloadRequest) HasRange() bool {
	return r.RangeStart != nil && r.RangeEnd != nil
}

// ParseDownloadRequest validates the shape of a download request body.
// Every returned error wraps ErrBadRequest.
func ParseDownloadRequest(body []byte) (DownloadRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return DownloadRequest{}, badRequest("body must be a JSON object")
	}

	var req DownloadRequest

	var urls []json.RawMessage
	if err := json.Unmarshal(raw["urls"], &urls); err != nil || len(urls) == 0 {
		return DownloadRequest{}, badRequest("'urls' must be a list of strings.")
	}
	for _, item := range urls {
		var u string
		if err := json.Unmarshal(item, &u); err != nil || strings.TrimSpace(u) == "" {
			return DownloadRequest{}, badRequest("'urls' must be a list of strings.")
		}
		req.URLs = append(req.URLs, strings.TrimSpace(u))
	}

	var mediaType string
	if err := json.Unmarshal(raw["mediaType"], &mediaType); err != nil || strings.TrimSpace(mediaType) == "" {
		return DownloadRequest{}, badRequest("'mediaType' must be a non-empty string.")
	}
	parsed, err := ParseMediaType(mediaType)
	if err != nil {
		return DownloadRequest{}, badRequest("'mediaType' is unknown.")
	}
	req.MediaType = parsed

	if req.RangeStart, err = optionalInt(raw, "rangeStart"); err != nil {
		return DownloadRequest{}, err
	}
	if req.RangeEnd, err = optionalInt(raw, "rangeEnd"); err != nil {
		return DownloadRequest{}, err
	}
	if (req.RangeStart == nil) != (req.RangeEnd == nil) {
		return DownloadRequest{}, badRequest("'rangeStart' and 'rangeEnd' must be supplied together")
	}
	if req.HasRange() && (*req.RangeStart < 1 || *req.RangeEnd < *req.RangeStart) {
		return DownloadRequest{}, badRequest("range must satisfy 1 <= rangeStart <= rangeEnd")
	}

	return req, nil
}

func optionalInt(raw map[string]json.RawMessage, key string) (*int, error) {
	value, ok := raw[key]
	if !ok || isNull(value) {
		return nil, nil
	}
	var n int
	if err := json.Unmarshal(value, &n); err != nil {
		return nil, badRequest("'%s' must be an integer", key)
	}
	return &n, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// ReportItem describes what happened to one URL of a download batch
type ReportItem struct {
	URL      string   `json:"url"`
	Status   bool     `json:"status"`
	Error    *string  `json:"error"`
	Warnings []string `json:"warnings"`
	Log      string   `json:"log"`
	Output   string   `json:"output"`
}

// NewReportItem starts a report for url in the successful state
func NewReportItem(url string) *ReportItem {
	return &ReportItem{URL: url, Status: true, Warnings: []string{}}
}

// Fail marks the item failed with msg
func (r *ReportItem) Fail(msg string) {
	r.Status = false
	r.Error = StringPtr(msg)
}

// Warn appends a non-fatal warning
func (r *ReportItem) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// ItemResult is the outcome of one bulk edit or delete item
type ItemResult struct {
	ID     *int64  `json:"id"`
	Status bool    `json:"status"`
	Error  *string `json:"error"`
}

// BulkResponse wraps per-item results of a bulk operation.
// Status reflects the request shape only, never individual items.
type BulkResponse struct {
	Status bool         `json:"status"`
	Error  *string      `json:"error"`
	Data   []ItemResult `json:"data"`
}

// BulkDeleteRequest is the body of POST /bulkDelete
type BulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

// ParseBulkDeleteRequest requires a non-empty integer list under "ids"
func ParseBulkDeleteRequest(body []byte) (BulkDeleteRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return BulkDeleteRequest{}, badRequest("Invalid or empty 'ids' list")
	}
	var req BulkDeleteRequest
	if err := json.Unmarshal(raw["ids"], &req.IDs); err != nil || len(req.IDs) == 0 {
		return BulkDeleteRequest{}, badRequest("Invalid or empty 'ids' list")
	}
	return req, nil
}

// ParseEditItems requires a JSON list. Individual items are never rejected
// here; their problems are kept on each EditItem.
func ParseEditItems(body []byte) ([]EditItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, badRequest("Payload must be a list")
	}
	var items []EditItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, badRequest("Payload must be a list")
	}
	return items, nil
}

// Field is an optional, nullable update value.
// Set is false when the key was absent; Null is true for an explicit null.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Ptr returns nil for a null field and a pointer to Value otherwise
func (f Field[T]) Ptr() *T {
	if f.Null {
		return nil
	}
	v := f.Value
	return &v
}

// Per-item problems found while decoding a bulk edit payload
const (
	MsgNotObject = "Item must be an object"
	MsgMissingID = "Missing 'id' field"
	MsgInvalidID = "Invalid 'id' field"
)

// EditItem is one entry of a PATCH /bulkEdit payload.
// Shape problems found while decoding are kept in Invalid so the item can be
// reported on its own without failing the whole batch.
type EditItem struct {
	ID        *int64
	Title     Field[string]
	MediaType Field[string]
	Invalid   string
}

// HasFields reports whether any updatable field was supplied
func (e EditItem) HasFields() bool {
	return e.Title.Set || e.MediaType.Set
}

// UnmarshalJSON decodes an edit item, tracking which keys were present.
func (e *EditItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		e.Invalid = MsgNotObject
		return nil
	}

	// id problems win over field problems
	if value, ok := raw["id"]; !ok || isNull(value) {
		e.Invalid = MsgMissingID
	} else {
		var id int64
		if err := json.Unmarshal(value, &id); err != nil {
			e.Invalid = MsgInvalidID
		} else {
			e.ID = &id
		}
	}

	if value, ok := raw["title"]; ok {
		e.Title.Set = true
		if isNull(value) {
			e.Title.Null = true
		} else if err := json.Unmarshal(value, &e.Title.Value); err != nil && e.Invalid == "" {
			e.Invalid = "Invalid 'title' field"
		}
	}

	if value, ok := raw["mediaType"]; ok {
		e.MediaType.Set = true
		if isNull(value) {
			e.MediaType.Null = true
		} else if err := json.Unmarshal(value, &e.MediaType.Value); err != nil && e.Invalid == "" {
			e.Invalid = fmt.Sprintf("Invalid mediaType: %s", strings.TrimSpace(string(value)))
		}
	}

	return nil
}

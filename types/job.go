package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the text form used for stored and broadcast timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// MediaType classifies what a download job fetches
type MediaType string

const (
	MediaTypeImage   MediaType = "image"
	MediaTypeVideo   MediaType = "video"
	MediaTypeGallery MediaType = "gallery"
	MediaTypeUnknown MediaType = "unknown"
)

// MediaTypes lists every accepted media type in display order
var MediaTypes = []MediaType{MediaTypeImage, MediaTypeVideo, MediaTypeGallery, MediaTypeUnknown}

// Valid reports whether m is one of the known media types
func (m MediaType) Valid() bool {
	for _, known := range MediaTypes {
		if m == known {
			return true
		}
	}
	return false
}

// ParseMediaType normalizes a raw value into a MediaType
func ParseMediaType(raw string) (MediaType, error) {
	m := MediaType(strings.ToLower(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown media type %q", raw)
	}
	return m, nil
}

// MarshalJSON encodes an empty media type as null, matching a NULL column.
func (m MediaType) MarshalJSON() ([]byte, error) {
	if m == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(m))
}

// DownloadRecord is one persisted download job.
// A record with EndTime set is complete; without it the job is in flight.
type DownloadRecord struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Title     *string   `json:"title"`
	MediaType MediaType `json:"mediaType"`
	StartTime string    `json:"startTime"`
	EndTime   *string   `json:"endTime"`
}

// Complete reports whether the record has been finalized
func (r DownloadRecord) Complete() bool {
	return r.EndTime != nil
}

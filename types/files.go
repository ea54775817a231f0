package types

// MediaFile represents a downloaded file found under the download directory
type MediaFile struct {
	Filename string         `json:"filename"`
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
	// Format is the lower-case extension without the dot
	Format   string         `json:"format"`
	Kind     MediaType      `json:"kind"`
	Metadata *MediaMetadata `json:"metadata,omitempty"`
}

// MediaMetadata holds tag metadata for files that carry it
type MediaMetadata struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Year   int    `json:"year,omitempty"`
}

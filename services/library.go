package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhowden/tag"

	"mediaserver/logger"
	"mediaserver/types"
)

// ErrPathNotAllowed is returned for paths that would leave the library root
var ErrPathNotAllowed = errors.New("path not allowed")

var mediaExtensions = map[string]struct {
	kind        types.MediaType
	contentType string
}{
	".jpg":  {types.MediaTypeImage, "image/jpeg"},
	".jpeg": {types.MediaTypeImage, "image/jpeg"},
	".png":  {types.MediaTypeImage, "image/png"},
	".gif":  {types.MediaTypeImage, "image/gif"},
	".webp": {types.MediaTypeImage, "image/webp"},
	".bmp":  {types.MediaTypeImage, "image/bmp"},
	".mp4":  {types.MediaTypeVideo, "video/mp4"},
	".m4v":  {types.MediaTypeVideo, "video/x-m4v"},
	".webm": {types.MediaTypeVideo, "video/webm"},
	".mkv":  {types.MediaTypeVideo, "video/x-matroska"},
	".mov":  {types.MediaTypeVideo, "video/quicktime"},
	".mp3":  {types.MediaTypeUnknown, "audio/mpeg"},
	".m4a":  {types.MediaTypeUnknown, "audio/mp4"},
	".flac": {types.MediaTypeUnknown, "audio/flac"},
	".ogg":  {types.MediaTypeUnknown, "audio/ogg"},
}

// taggedExtensions are the formats dhowden/tag can read
var taggedExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".mp4": true, ".m4v": true, ".flac": true, ".ogg": true,
}

// Library lists and resolves downloaded media files
type Library struct {
	log logger.Logger
}

// NewLibrary creates a library scanner
func NewLibrary(log logger.Logger) *Library {
	if log == nil {
		log = logger.NewNop()
	}
	return &Library{log: log}
}

// IsMedia reports whether the file extension is served by the library
func IsMedia(path string) bool {
	_, ok := mediaExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Scan walks root and returns every media file, sorted by relative path.
// A missing root yields an empty list.
func (l *Library) Scan(root string) ([]types.MediaFile, error) {
	files := []types.MediaFile{}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return files, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.log.Warn("Skipping unreadable path", logger.String("path", path), logger.Error(err))
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !IsMedia(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		relativePath, err := filepath.Rel(root, path)
		if err != nil {
			relativePath = path
		}

		ext := strings.ToLower(filepath.Ext(path))
		files = append(files, types.MediaFile{
			Filename: d.Name(),
			Path:     filepath.ToSlash(relativePath),
			Size:     info.Size(),
			Format:   strings.TrimPrefix(ext, "."),
			Kind:     mediaExtensions[ext].kind,
			Metadata: l.Metadata(path),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Metadata reads embedded tags. Files without readable tags return nil.
func (l *Library) Metadata(path string) *types.MediaMetadata {
	if !taggedExtensions[strings.ToLower(filepath.Ext(path))] {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		l.log.Debug("No readable tags", logger.String("path", path), logger.Error(err))
		return nil
	}

	metadata := &types.MediaMetadata{
		Title:  meta.Title(),
		Artist: meta.Artist(),
		Album:  meta.Album(),
		Year:   meta.Year(),
	}
	if *metadata == (types.MediaMetadata{}) {
		return nil
	}
	return metadata
}

// ContentType returns the MIME type used when streaming path
func ContentType(path string) string {
	if known, ok := mediaExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return known.contentType
	}
	return "application/octet-stream"
}

// Resolve maps a client supplied relative path onto root, rejecting
// traversal, absolute paths and non-media files.
func Resolve(root, requested string) (string, error) {
	requested = strings.TrimPrefix(requested, "/")
	if strings.TrimSpace(requested) == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathNotAllowed)
	}
	if strings.Contains(requested, "..") {
		return "", fmt.Errorf("%w: path traversal", ErrPathNotAllowed)
	}
	if filepath.IsAbs(requested) {
		return "", fmt.Errorf("%w: absolute path", ErrPathNotAllowed)
	}
	if !IsMedia(requested) {
		return "", fmt.Errorf("%w: file type", ErrPathNotAllowed)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	full := filepath.Join(absRoot, filepath.FromSlash(requested))
	if !strings.HasPrefix(full, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: outside library", ErrPathNotAllowed)
	}
	return full, nil
}

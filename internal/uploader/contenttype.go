package uploader

import (
	"mime"
	"path/filepath"
	"strings"
)

// NormalizeContentType strips codec parameters from a MIME type so the
// storage backend sees the bare media type. Recorders tag captures with
// values like "video/webm;codecs=vp8" which presigned endpoints reject.
func NormalizeContentType(contentType string) string {
	trimmed := strings.TrimSpace(contentType)
	if trimmed == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(trimmed)
	if err != nil {
		if idx := strings.IndexByte(trimmed, ';'); idx >= 0 {
			return strings.TrimSpace(trimmed[:idx])
		}
		return trimmed
	}
	return mediaType
}

// DetectContentType guesses a MIME type from the payload file extension,
// falling back to a generic stream type.
func DetectContentType(path string) string {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return NormalizeContentType(byExt)
	}
	return "application/octet-stream"
}

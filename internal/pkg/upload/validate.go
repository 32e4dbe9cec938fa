package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxImageBytes caps a single uploaded image.
const MaxImageBytes = 10 << 20

var (
	ErrUnsupportedFormat = errors.New("only JPG, JPEG, PNG, GIF, WEBP and HEIC images are supported")
	ErrScriptable        = errors.New("HTML, XML and SVG content is not allowed")
	ErrTooLarge          = errors.New("image exceeds the 10 MB limit")
)

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
}

// DetectImage checks filename and the first bytes of the file against the
// image whitelist and returns the content type to store it with.
func DetectImage(filename string, head []byte, size int64) (string, error) {
	if size > MaxImageBytes {
		return "", ErrTooLarge
	}
	ext := strings.ToLower(filepath.Ext(filename))
	byExt, ok := allowedExt[ext]
	if !ok {
		return "", ErrUnsupportedFormat
	}

	detected := http.DetectContentType(head)
	switch {
	case strings.HasPrefix(detected, "text/html"), strings.HasPrefix(detected, "application/xhtml"),
		strings.HasPrefix(detected, "text/xml"), strings.HasPrefix(detected, "application/xml"),
		detected == "image/svg+xml":
		return "", ErrScriptable
	case detected == "application/octet-stream":
		// HEIC is not sniffed by net/http
		return byExt, nil
	case strings.HasPrefix(detected, "image/"):
		for _, mime := range allowedExt {
			if mime == detected {
				return detected, nil
			}
		}
	}
	return "", ErrUnsupportedFormat
}

package product

import (
	"fmt"
	"mime"
	"strings"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

func sniffMimeType(value string) (string, error) {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return "", fmt.Errorf("mime type required")
	}
	mediaType, _, err := mime.ParseMediaType(clean)
	if err != nil {
		return "", fmt.Errorf("mime type invalid: %w", err)
	}
	return strings.ToLower(mediaType), nil
}

// checkImageType returns the normalized media type when it is an accepted image format.
func checkImageType(contentType string) (string, error) {
	mediaType, err := sniffMimeType(contentType)
	if err != nil {
		return "", err
	}
	if _, ok := allowedImageTypes[mediaType]; !ok {
		return "", fmt.Errorf("mime type %s not allowed; use jpeg, png, gif or webp", mediaType)
	}
	return mediaType, nil
}

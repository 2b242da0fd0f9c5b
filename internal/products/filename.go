package product

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// randomToken returns a short lowercase base36 token.
func randomToken() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return strconv.FormatUint(binary.BigEndian.Uint64(b[:]), 36), nil
}

// imageExtension keeps the uploaded file's extension and falls back to the one implied by
// its media type.
func imageExtension(filename, mediaType string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext != "" {
		return ext
	}
	return allowedImageTypes[mediaType]
}

// imagePath builds "<prefix>/<token>_<unix millis>.<ext>".
func imagePath(prefix, token string, now time.Time, ext string) string {
	name := fmt.Sprintf("%s_%d.%s", token, now.UnixMilli(), ext)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

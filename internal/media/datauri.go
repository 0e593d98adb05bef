package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

const fallbackMime = "image/jpeg"

var (
	ErrEmptyDataURI   = errors.New("empty data uri")
	ErrInvalidDataURI = errors.New("invalid data uri")
	ErrNotImage       = errors.New("not an image")
)

var dataURIRegex = regexp.MustCompile(`^data:([^;,]+)(;[^,]*)?,`)

func EncodeDataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// ParseDataURI returns the mime type and the base64 payload. A bare base64
// string is accepted and treated as image/jpeg.
func ParseDataURI(value string) (mimeType string, base64Data string, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", ErrEmptyDataURI
	}

	if !strings.HasPrefix(value, "data:") {
		return fallbackMime, value, nil
	}

	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", ErrInvalidDataURI
	}

	mimeType = fallbackMime
	if m := dataURIRegex.FindStringSubmatch(value); len(m) >= 2 && strings.TrimSpace(m[1]) != "" {
		mimeType = strings.TrimSpace(m[1])
	}
	return mimeType, parts[1], nil
}

// DecodeDataURI returns the mime type and raw bytes of a data URI.
func DecodeDataURI(value string) (string, []byte, error) {
	mimeType, payload, err := ParseDataURI(value)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64: %w", err)
	}
	return mimeType, data, nil
}

// DetectMime resolves the mime type of an uploaded file from its declared
// content type, sniffing the bytes when the declaration is missing or
// generic.
func DetectMime(declared string, data []byte) string {
	mimeType := cleanMime(declared)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = cleanMime(http.DetectContentType(data))
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = fallbackMime
	}
	return mimeType
}

// FromUpload turns raw uploaded bytes into a displayable data URI. It
// rejects payloads whose mime type is not an image.
func FromUpload(declared string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyDataURI
	}
	mimeType := DetectMime(declared, data)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mimeType)
	}
	return EncodeDataURI(mimeType, data), nil
}

func cleanMime(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ";") {
		value = strings.TrimSpace(strings.SplitN(value, ";", 2)[0])
	}
	return strings.ToLower(value)
}

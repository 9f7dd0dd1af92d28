// Package upload validates and stores uploaded scan images.
package upload

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// imageTypes maps acceptable sniffed content types to the stored extension.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
}

// Validate checks the filename extension, the byte size and the sniffed
// content type of an uploaded image.
func Validate(filename string, data []byte, maxSize int64, allowedExts []string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, e := range allowedExts {
		if ext == strings.ToLower(e) {
			allowed = true
			break
		}
	}
	if !allowed {
		return eris.Errorf("upload: file type %q not allowed", ext)
	}

	if int64(len(data)) > maxSize {
		return eris.Errorf("upload: file too large (%d bytes, max %d)", len(data), maxSize)
	}
	if len(data) == 0 {
		return eris.New("upload: empty file")
	}

	if _, ok := imageTypes[sniff(data)]; !ok {
		return eris.New("upload: not a valid image")
	}
	return nil
}

// Save writes the image into dir under a fresh uuid name and returns the
// stored filename. The extension follows the sniffed content type, not the
// client-supplied name.
func Save(dir string, data []byte) (string, error) {
	ext, ok := imageTypes[sniff(data)]
	if !ok {
		return "", eris.New("upload: not a valid image")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "upload: create dir %s", dir)
	}

	name := uuid.New().String() + ext
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", eris.Wrapf(err, "upload: write %s", name)
	}
	return name, nil
}

func sniff(data []byte) string {
	ct := http.DetectContentType(data)
	// DetectContentType may append charset parameters for text types.
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

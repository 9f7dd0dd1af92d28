package upload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	allowedExts = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"}
	// Minimal valid PNG header followed by padding; enough for sniffing.
	pngBytes = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)
	jpgBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 64)...)
)

func TestValidate_AcceptsImages(t *testing.T) {
	assert.NoError(t, Validate("leaf.png", pngBytes, 1<<20, allowedExts))
	assert.NoError(t, Validate("LEAF.JPG", jpgBytes, 1<<20, allowedExts))
}

func TestValidate_RejectsExtension(t *testing.T) {
	err := Validate("leaf.pdf", pngBytes, 1<<20, allowedExts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
}

func TestValidate_RejectsOversize(t *testing.T) {
	err := Validate("leaf.png", pngBytes, 8, allowedExts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestValidate_RejectsNonImageContent(t *testing.T) {
	err := Validate("leaf.png", []byte("<html>not an image</html>"), 1<<20, allowedExts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid image")
}

func TestValidate_RejectsEmpty(t *testing.T) {
	assert.Error(t, Validate("leaf.png", nil, 1<<20, allowedExts))
}

func TestSave(t *testing.T) {
	dir := t.TempDir()

	name, err := Save(dir, pngBytes)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".png"), "got %s", name)

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestSave_ExtensionFollowsContent(t *testing.T) {
	dir := t.TempDir()

	// Client may lie about the extension; the stored name follows bytes.
	name, err := Save(dir, jpgBytes)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".jpg"))
}

func TestSave_RejectsNonImage(t *testing.T) {
	_, err := Save(t.TempDir(), []byte("plain text"))
	require.Error(t, err)
}

package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasExtension(t *testing.T) {
	exts := []string{".png", ".jpg"}

	tests := []struct {
		name     string
		filename string
		expected bool
	}{
		{"png", "frame_0001.png", true},
		{"jpg", "frame_0001.jpg", true},
		{"upper case is not matched", "frame_0001.JPG", false},
		{"jpeg is a different extension", "frame_0001.jpeg", false},
		{"no extension", "frame_0001", false},
		{"extension only in the middle", "frame.png.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HasExtension(tt.filename, exts))
		})
	}
}

func TestHasExtensionIgnoresBlankEntries(t *testing.T) {
	assert.False(t, HasExtension("frame.png", []string{""}))
}

func TestNormalizeExtensions(t *testing.T) {
	got := NormalizeExtensions([]string{"png", ".jpg", " ", ".png", "webp"})
	assert.Equal(t, []string{".png", ".jpg", ".webp"}, got)
}

func TestGenerateOutputFilename(t *testing.T) {
	tests := []struct {
		input    string
		suffix   string
		format   string
		expected string
	}{
		{"frames/frame_0001.jpg", "_boxes", "png", filepath.Join("out", "frame_0001_boxes.png")},
		{"frame_0002.JPG", "", "", filepath.Join("out", "frame_0002.jpg")},
		{"frame", "_x", "", filepath.Join("out", "frame_x.png")},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, GenerateOutputFilename(tt.input, "out", tt.suffix, tt.format))
	}
}

func TestFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing.png")))

	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(file))
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, PathExists(file))
	assert.True(t, PathExists(dir))
	assert.False(t, PathExists(filepath.Join(dir, "missing.png")))

	link := filepath.Join(dir, "zz.png")
	if err := os.Symlink(t.TempDir(), link); err == nil {
		assert.True(t, PathExists(link), "symlink to a directory exists")
	}
	dangling := filepath.Join(dir, "gone.png")
	if err := os.Symlink(filepath.Join(dir, "nowhere"), dangling); err == nil {
		assert.False(t, PathExists(dangling))
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	assert.True(t, DirExists(dir))
	require.NoError(t, EnsureDir(dir))
}

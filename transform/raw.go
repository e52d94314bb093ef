package transform

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // registers the jpeg decoder
	_ "image/png"  // registers the png decoder
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ErrNotImage is returned when loaded bytes are neither jpeg nor png.
var ErrNotImage = errors.New("not a jpeg or png image")

// RawLoader loads image bytes. Relative paths are resolved against the image folder.
type RawLoader struct {
	fs     billy.Filesystem
	folder string
}

// NewRawLoader creates a loader reading from fs.
func NewRawLoader(fs billy.Filesystem, imageFolder string) *RawLoader {
	return &RawLoader{fs: fs, folder: imageFolder}
}

func (l *RawLoader) resolve(path string) string {
	if filepath.IsAbs(path) || l.folder == "" {
		return path
	}
	return filepath.Join(l.folder, path)
}

// Load reads the raw bytes at path and checks their content type.
func (l *RawLoader) Load(path string) ([]byte, error) {
	b, err := util.ReadFile(l.fs, l.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("transform: load %q: %w", path, err)
	}
	mt := mimetype.Detect(b)
	if !mt.Is("image/jpeg") && !mt.Is("image/png") {
		return nil, fmt.Errorf("transform: load %q (%s): %w", path, mt.String(), ErrNotImage)
	}
	return b, nil
}

// Decode decodes raw bytes previously returned by Load.
func Decode(path string, raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("transform: decode %q: %w", path, errors.Join(ErrNotImage, err))
	}
	return img, nil
}

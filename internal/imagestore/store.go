package imagestore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Source tells where an image came from. It selects the storage directory
// and is the first element of every reference.
type Source string

const (
	SourceUpload  Source = "upload"
	SourceCapture Source = "capture"
)

var (
	// ErrUnsupportedFormat is returned for payloads that are not png, jpeg, gif or bmp.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrInvalidRef is returned for references that do not point into the store.
	ErrInvalidRef = errors.New("invalid image reference")
)

// allowedUploadExtensions are the file extensions accepted for uploaded photos.
var allowedUploadExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

var contentTypeExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
}

// Store keeps enrollment images on local disk. References have the form
// "<source>/<uuid><ext>".
type Store struct {
	dirs map[Source]string
}

// New creates a store and makes sure both directories exist.
func New(uploadDir, captureDir string) (*Store, error) {
	s := &Store{dirs: map[Source]string{
		SourceUpload:  uploadDir,
		SourceCapture: captureDir,
	}}
	for src, dir := range s.dirs {
		if dir == "" {
			return nil, fmt.Errorf("no directory configured for %s images", src)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s directory: %w", src, err)
		}
	}
	return s, nil
}

// Save writes data under a fresh name and returns its reference.
func (s *Store) Save(source Source, data []byte) (string, error) {
	dir, ok := s.dirs[source]
	if !ok {
		return "", fmt.Errorf("unknown image source %q", source)
	}
	ext, err := DetectExtension(data)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return path.Join(string(source), name), nil
}

// Open returns the bytes behind ref.
func (s *Store) Open(ref string) ([]byte, error) {
	p, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", ref, err)
	}
	return data, nil
}

// Delete removes the file behind ref. Missing files are not an error.
func (s *Store) Delete(ref string) error {
	p, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing image %s: %w", ref, err)
	}
	return nil
}

func (s *Store) resolve(ref string) (string, error) {
	src, name, ok := strings.Cut(ref, "/")
	if !ok || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	dir, ok := s.dirs[Source(src)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return filepath.Join(dir, name), nil
}

// DetectExtension sniffs the image format of data.
func DetectExtension(data []byte) (string, error) {
	ext, ok := contentTypeExtensions[http.DetectContentType(data)]
	if !ok {
		return "", ErrUnsupportedFormat
	}
	return ext, nil
}

// AllowedUpload reports whether filename has an accepted photo extension.
func AllowedUpload(filename string) bool {
	return allowedUploadExtensions[strings.ToLower(filepath.Ext(filename))]
}

// DecodeDataURL decodes a base64 webcam capture. Both bare base64 and
// "data:image/...;base64," URLs are accepted.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errors.New("malformed data URL")
		}
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data, nil
}

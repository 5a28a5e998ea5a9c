package client

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Zereker/chat/message"
)

// Default directories for received payloads.
const (
	DefaultImagesDir = "incoming_images"
	DefaultFilesDir  = "incoming_files"
)

// Store writes received images and files to disk under timestamped names.
type Store struct {
	ImagesDir string
	FilesDir  string

	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewStore returns a Store writing into the given directories.
func NewStore(imagesDir, filesDir string) *Store {
	return &Store{ImagesDir: imagesDir, FilesDir: filesDir, now: time.Now}
}

// stamp returns a nanosecond wall-clock timestamp, strictly greater than any
// previous stamp from this Store.
func (s *Store) stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now
	if s.now != nil {
		now = s.now
	}

	t := now().UnixNano()
	if t <= s.last {
		t = s.last + 1
	}
	s.last = t
	return t
}

// SaveImage decodes data as the format named by ext and writes it as PNG.
// It returns the written path.
func (s *Store) SaveImage(name, ext string, data []byte) (string, error) {
	img, err := message.DecodeImage(data, ext)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.ImagesDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create images directory")
	}

	path := filepath.Join(s.ImagesDir, fmt.Sprintf("%d-%s.png", s.stamp(), safeName(name)))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create image")
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return "", errors.Wrap(err, "encode png")
	}
	return path, f.Close()
}

// SaveFile writes data unchanged and returns the written path.
func (s *Store) SaveFile(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.FilesDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create files directory")
	}

	path := filepath.Join(s.FilesDir, fmt.Sprintf("%d-%s", s.stamp(), safeName(name)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write file")
	}
	return path, nil
}

// safeName strips any directory part a peer may have put into a name.
func safeName(name string) string {
	name = filepath.Base(filepath.Clean("/" + filepath.ToSlash(name)))
	if name == "/" || name == "." {
		return "unnamed"
	}
	return name
}

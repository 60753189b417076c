// Package imagestore removes character images that are no longer referenced.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for image references that do not name a file.
var ErrInvalidName = errors.New("invalid image name")

// Store deletes image objects by the URL stored on a character.
type Store interface {
	Delete(ctx context.Context, imageURL string) error
}

// Local keeps images as files in one directory. Only the last path element
// of an image URL is used, so a URL can never reach outside the directory.
type Local struct {
	dir string
}

// NewLocal returns a store rooted at dir, creating it when missing.
func NewLocal(dir string) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("image dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

// ObjectName returns the name of the stored object an image URL refers to:
// the last element of its path.
func ObjectName(imageURL string) (string, error) {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" || name == ".." || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, imageURL)
	}
	return name, nil
}

// SameObject reports whether a and b refer to the same stored object.
// Invalid references only match themselves.
func SameObject(a, b string) bool {
	if a == b {
		return true
	}
	na, errA := ObjectName(a)
	nb, errB := ObjectName(b)
	return errA == nil && errB == nil && na == nb
}

// Path returns the file path an image URL maps to.
func (l *Local) Path(imageURL string) (string, error) {
	name, err := ObjectName(imageURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.dir, name), nil
}

// Delete removes the file behind imageURL. Missing files are not an error.
func (l *Local) Delete(ctx context.Context, imageURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := l.Path(imageURL)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete image %s: %w", imageURL, err)
	}
	return nil
}

// Package blob abstracts storage of uploaded room files. The rest of
// the service treats it as an opaque store with upload/url/delete
// operations; the disk implementation below is what a single-node
// deployment uses, and an object-store client can replace it without
// touching callers.
package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store is the boundary the handlers consume.
type Store interface {
	// Upload writes the object under key and returns its download URL
	// and stored size.
	Upload(ctx context.Context, key string, r io.Reader) (url string, size int64, err error)
	// Delete removes the object. Deleting a missing object is not an
	// error so room deletion can retry safely.
	Delete(ctx context.Context, key string) error
	// Path resolves a key to a local filesystem path for serving, or
	// an error when the implementation cannot serve from disk.
	Path(key string) (string, error)
}

// ErrBadKey is returned for keys that would escape the store root.
var ErrBadKey = errors.New("invalid blob key")

// DiskStore keeps objects as flat files under a root directory. Keys
// are opaque (uuid-based) and never contain separators, which keeps
// traversal out of the picture; cleanKey enforces that.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates the root directory if needed. baseURL prefixes
// the returned download URLs; empty means path-relative URLs.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") || key == "." || key == ".." {
		return "", ErrBadKey
	}
	return key, nil
}

// Upload implements Store.
func (s *DiskStore) Upload(ctx context.Context, key string, r io.Reader) (string, int64, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", 0, err
	}
	dst := filepath.Join(s.dir, k)
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, err
	}
	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(dst)
		return "", 0, copyErr
	}
	if closeErr != nil {
		_ = os.Remove(dst)
		return "", 0, closeErr
	}
	return s.baseURL + "/v1/files/" + k, n, nil
}

// Delete implements Store.
func (s *DiskStore) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, k)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path implements Store.
func (s *DiskStore) Path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, k), nil
}

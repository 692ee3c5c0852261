package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	appErr "gradebox/pkg/errors"
)

// LocalStore implements FileStore on a plain directory tree. It is meant for
// development and tests; production deployments use MinIOStore.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, appErr.ValidationError("dir", "required")
	}
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "create store root failed")
	}
	return &LocalStore{root: dir}, nil
}

func (s *LocalStore) blobPath(digest string) string {
	return filepath.Join(s.root, filepath.FromSlash(objectKey(digest)))
}

func (s *LocalStore) GetFileToWriter(ctx context.Context, digest string, w io.Writer) error {
	if err := ValidateDigest(digest); err != nil {
		return err
	}
	file, err := os.Open(s.blobPath(digest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return appErr.New(appErr.BlobNotFound).WithDetail("digest", digest)
		}
		return appErr.Wrapf(err, appErr.StorageError, "open blob failed")
	}
	defer file.Close()

	if _, err := io.Copy(w, file); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "read blob failed")
	}
	return nil
}

func (s *LocalStore) PutFileFromReader(ctx context.Context, r io.Reader, description string) (string, error) {
	temp, err := os.CreateTemp(filepath.Join(s.root, "tmp"), "blob-*")
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "create temp blob failed")
	}
	tempPath := temp.Name()
	defer func() {
		_ = os.Remove(tempPath)
	}()

	hasher := NewDigester()
	if _, err := io.Copy(io.MultiWriter(temp, hasher), r); err != nil {
		_ = temp.Close()
		return "", appErr.Wrapf(err, appErr.StorageError, "write temp blob failed")
	}
	if err := temp.Close(); err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "close temp blob failed")
	}

	digest := DigestString(hasher)
	target := s.blobPath(digest)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "create blob dir failed")
	}
	if err := os.Rename(tempPath, target); err != nil {
		// A concurrent writer may have stored the same content already.
		if _, statErr := os.Stat(target); statErr == nil {
			return digest, nil
		}
		return "", appErr.Wrapf(err, appErr.StorageError, "store blob failed")
	}
	if description != "" {
		_ = os.WriteFile(target+".desc", []byte(description), 0644)
	}
	return digest, nil
}

func (s *LocalStore) Describe(ctx context.Context, digest string) (string, error) {
	if err := ValidateDigest(digest); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.blobPath(digest) + ".desc")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", appErr.Wrapf(err, appErr.StorageError, "read blob description failed")
	}
	return string(data), nil
}

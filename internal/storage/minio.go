package storage

import (
	"context"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	appErr "gradebox/pkg/errors"
)

const descriptionMetaKey = "Description"

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
	Bucket    string `yaml:"bucket"`

	// Compress stores blob bodies zstd-compressed. The flag must be uniform
	// across every reader and writer of the same bucket.
	Compress bool `yaml:"compress"`

	// SpoolDir holds temporary files while digests are computed; defaults to
	// the system temp directory.
	SpoolDir string `yaml:"spoolDir"`
}

// MinIOStore implements FileStore using MinIO S3-compatible APIs, with
// objects keyed by content digest.
type MinIOStore struct {
	client *minio.Client
	cfg    MinIOConfig
}

func NewMinIOStore(cfg MinIOConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, appErr.ValidationError("endpoint", "required")
	}
	if cfg.AccessKey == "" {
		return nil, appErr.ValidationError("accessKey", "required")
	}
	if cfg.SecretKey == "" {
		return nil, appErr.ValidationError("secretKey", "required")
	}
	if cfg.Bucket == "" {
		return nil, appErr.ValidationError("bucket", "required")
	}
	if cfg.SpoolDir == "" {
		cfg.SpoolDir = os.TempDir()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "create minio client failed")
	}
	return &MinIOStore{client: client, cfg: cfg}, nil
}

func (s *MinIOStore) GetFileToWriter(ctx context.Context, digest string, w io.Writer) error {
	if err := ValidateDigest(digest); err != nil {
		return err
	}
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, objectKey(digest), minio.GetObjectOptions{})
	if err != nil {
		return mapObjectError(err, digest, "minio get object failed")
	}
	defer obj.Close()

	// GetObject is lazy; a missing key only surfaces on first read. Stat the
	// handle before any compression wrapper hides the storage error.
	if _, err := obj.Stat(); err != nil {
		return mapObjectError(err, digest, "minio stat object failed")
	}

	var body io.Reader = obj
	if s.cfg.Compress {
		zr, err := zstd.NewReader(obj)
		if err != nil {
			return appErr.Wrapf(err, appErr.StorageError, "create zstd reader failed")
		}
		defer zr.Close()
		body = zr
	}
	if _, err := io.Copy(w, body); err != nil {
		return mapObjectError(err, digest, "read object failed")
	}
	return nil
}

// mapObjectError translates MinIO object errors into store errors, keeping
// the missing-blob case distinct from transport failures.
func mapObjectError(err error, digest, msg string) error {
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
		return appErr.New(appErr.BlobNotFound).WithDetail("digest", digest)
	}
	return appErr.Wrapf(err, appErr.StorageError, msg)
}

func (s *MinIOStore) PutFileFromReader(ctx context.Context, r io.Reader, description string) (string, error) {
	// The object key is the content digest, so the blob is spooled to a
	// local file first: digest and size must be known before the upload.
	temp, err := os.CreateTemp(s.cfg.SpoolDir, "gradebox-blob-*")
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "create spool file failed")
	}
	tempPath := temp.Name()
	defer func() {
		_ = os.Remove(tempPath)
	}()

	hasher := NewDigester()
	var sink io.Writer = temp
	var zw *zstd.Encoder
	if s.cfg.Compress {
		zw, err = zstd.NewWriter(temp)
		if err != nil {
			_ = temp.Close()
			return "", appErr.Wrapf(err, appErr.StorageError, "create zstd writer failed")
		}
		sink = zw
	}
	if _, err := io.Copy(io.MultiWriter(sink, hasher), r); err != nil {
		_ = temp.Close()
		return "", appErr.Wrapf(err, appErr.StorageError, "spool blob failed")
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			_ = temp.Close()
			return "", appErr.Wrapf(err, appErr.StorageError, "flush zstd writer failed")
		}
	}
	if err := temp.Close(); err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "close spool file failed")
	}

	digest := DigestString(hasher)
	key := objectKey(digest)

	// Content addressing makes uploads idempotent; skip when present.
	if _, err := s.client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{}); err == nil {
		return digest, nil
	}

	opts := minio.PutObjectOptions{}
	if description != "" {
		opts.UserMetadata = map[string]string{descriptionMetaKey: description}
	}
	if _, err := s.client.FPutObject(ctx, s.cfg.Bucket, key, tempPath, opts); err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "minio put object failed")
	}
	return digest, nil
}

func (s *MinIOStore) Describe(ctx context.Context, digest string) (string, error) {
	if err := ValidateDigest(digest); err != nil {
		return "", err
	}
	info, err := s.client.StatObject(ctx, s.cfg.Bucket, objectKey(digest), minio.StatObjectOptions{})
	if err != nil {
		return "", mapObjectError(err, digest, "minio stat object failed")
	}
	return info.UserMetadata[descriptionMetaKey], nil
}

// hashFile recomputes the digest of a local file, used by the caching layer
// to verify blobs fetched from the backing store.
func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "open file for hashing failed")
	}
	defer file.Close()
	hasher := NewDigester()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "hash file failed")
	}
	return DigestString(hasher), nil
}
